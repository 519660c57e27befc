package user

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/marketplace/internal/domain"
	"github.com/xenking/marketplace/internal/storage/memory"
)

func TestUser_Validate(t *testing.T) {
	for _, tt := range []struct {
		name  string
		user  User
		field string
	}{
		{"Valid", User{Name: "Ada", Email: "ada@example.com"}, ""},
		{"NoName", User{Email: "ada@example.com"}, "name"},
		{"NoEmail", User{Name: "Ada"}, "email"},
		{"BadEmail", User{Name: "Ada", Email: "ada.example.com"}, "email"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.New())
	faker := gofakeit.New(42)

	var ids []string
	for range 3 {
		u := &User{Name: faker.Name(), Email: faker.Email(), IsVendor: faker.Bool()}
		id, err := repo.Create(ctx, u)
		require.NoError(t, err)
		ids = append(ids, id)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		u.ID = id
		assert.Equal(t, u, got)
	}

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	two, err := repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, ids[:2], []string{two[0].ID, two[1].ID})

	_, err = repo.Create(ctx, &User{Name: "No Mail"})
	assert.Error(t, err)
}
