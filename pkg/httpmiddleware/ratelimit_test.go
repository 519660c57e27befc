package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// testLimiter returns a limiter whose clock is controlled by the test.
func testLimiter(cfg RateLimitConfig) (http.Handler, *time.Time) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(cfg)
	rl.now = func() time.Time { return now }
	return rl.middleware(okHandler()), &now
}

func hit(h http.Handler, remoteAddr string, edit ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = remoteAddr
	for _, fn := range edit {
		fn(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Budget(t *testing.T) {
	h, _ := testLimiter(RateLimitConfig{Max: 4, Window: 4 * time.Second})

	for i, wantRemaining := range []string{"3", "2", "1", "0"} {
		w := hit(h, "192.168.1.1:1234")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, wantRemaining, w.Header().Get("X-RateLimit-Remaining"))
	}

	w := hit(h, "192.168.1.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var (
		code    int
		message string
	)
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			v, err := d.Int()
			code = v
			return err
		case "message":
			v, err := d.Str()
			message = v
			return err
		default:
			return d.Skip()
		}
	}))
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many requests", message)
}

func TestRateLimit_Refill(t *testing.T) {
	h, now := testLimiter(RateLimitConfig{Max: 2, Window: 2 * time.Second})

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)

	*now = now.Add(500 * time.Millisecond)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)

	*now = now.Add(500 * time.Millisecond)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code, "one token per Window/Max")
}

func TestRateLimit_Keys(t *testing.T) {
	for _, tt := range []struct {
		name   string
		cfg    RateLimitConfig
		first  func(*http.Request)
		same   func(*http.Request)
		other  func(*http.Request)
		remote [3]string
	}{
		{
			name:   "RemoteAddr",
			remote: [3]string{"10.0.0.1:1234", "10.0.0.1:5678", "10.0.0.2:1234"},
		},
		{
			name:   "XForwardedForFromTrustedProxy",
			cfg:    RateLimitConfig{KeyFunc: ProxiedClientIP([]netip.Prefix{netip.MustParsePrefix("192.168.1.0/24")})},
			first:  func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50") },
			same:   func(r *http.Request) { r.Header.Set("X-Forwarded-For", "198.51.100.1, 203.0.113.50") },
			other:  func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.51") },
			remote: [3]string{"192.168.1.1:1", "192.168.1.2:2", "192.168.1.1:1"},
		},
		{
			name:   "XForwardedForIgnoredByDefault",
			first:  func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50") },
			same:   func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.99") },
			other:  func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50") },
			remote: [3]string{"10.0.0.1:1", "10.0.0.1:2", "10.0.0.2:1"},
		},
		{
			name: "UserHeader",
			cfg: RateLimitConfig{KeyFunc: func(r *http.Request) string {
				return r.Header.Get("X-User-ID")
			}},
			first:  func(r *http.Request) { r.Header.Set("X-User-ID", "u1") },
			same:   func(r *http.Request) { r.Header.Set("X-User-ID", "u1") },
			other:  func(r *http.Request) { r.Header.Set("X-User-ID", "u2") },
			remote: [3]string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.1:1"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Max, cfg.Window = 1, time.Minute
			h, _ := testLimiter(cfg)
			edit := func(fn func(*http.Request)) []func(*http.Request) {
				if fn == nil {
					return nil
				}
				return []func(*http.Request){fn}
			}

			assert.Equal(t, http.StatusOK, hit(h, tt.remote[0], edit(tt.first)...).Code)
			assert.Equal(t, http.StatusTooManyRequests, hit(h, tt.remote[1], edit(tt.same)...).Code)
			assert.Equal(t, http.StatusOK, hit(h, tt.remote[2], edit(tt.other)...).Code)
		})
	}
}

func TestRateLimit_Skip(t *testing.T) {
	h, _ := testLimiter(RateLimitConfig{Max: 1, Window: time.Minute, Skip: SkipPaths("/livez", "/readyz")})
	readyz := func(r *http.Request) { r.URL.Path = "/readyz" }

	for range 5 {
		w := hit(h, "10.0.0.9:1", readyz)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.9:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.9:1").Code)
}

func TestRateLimit_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, ok := rl.reserve("a", start)
	require.True(t, ok)
	_, _, ok = rl.reserve("b", start.Add(30*time.Second))
	require.True(t, ok)

	rl.evict(start.Add(time.Minute))
	assert.NotContains(t, rl.clients, "a")
	assert.Contains(t, rl.clients, "b")
}

func TestRateLimit_StopsEviction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := RateLimit(ctx, RateLimitConfig{Max: 1, Window: time.Millisecond})(okHandler())
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	cancel()
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:8080"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.0.2.1", ClientIP(req), "forwarding headers are ignored")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", ClientIP(req))
}

func TestProxiedClientIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.10 ", ""})
	require.NoError(t, err)
	key := ProxiedClientIP(proxies)

	for _, tt := range []struct {
		name   string
		remote string
		xff    []string
		realIP string
		want   string
	}{
		{"UntrustedPeer", "198.51.100.3:1", []string{"203.0.113.9"}, "203.0.113.8", "198.51.100.3"},
		{"TrustedPeer", "10.1.2.3:1", []string{"203.0.113.9"}, "", "203.0.113.9"},
		{"SingleHostProxy", "192.0.2.10:443", []string{"203.0.113.9"}, "", "203.0.113.9"},
		{"SpoofedLeftHop", "10.1.2.3:1", []string{"1.2.3.4, 203.0.113.9"}, "", "203.0.113.9"},
		{"ProxyChain", "10.1.2.3:1", []string{"203.0.113.9, 10.9.9.9"}, "", "203.0.113.9"},
		{"RepeatedHeader", "10.1.2.3:1", []string{"1.2.3.4", "203.0.113.9"}, "", "203.0.113.9"},
		{"RealIPFallback", "10.1.2.3:1", []string{" , 10.0.0.2"}, "203.0.113.8", "203.0.113.8"},
		{"PeerFallback", "10.1.2.3:1", nil, "", "10.1.2.3"},
		{"MappedPeer", "[::ffff:10.1.2.3]:1", []string{"203.0.113.9"}, "", "203.0.113.9"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, key(req))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.1.2.3/8", "2001:db8::1", "::ffff:192.0.2.1"})
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("2001:db8::1/128"),
		netip.MustParsePrefix("192.0.2.1/32"),
	}, got)

	_, err = ParseTrustedProxies([]string{"10.0.0.0/40"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}
