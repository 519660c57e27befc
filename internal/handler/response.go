package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/order"
)

// writeRaw writes an already encoded JSON body.
func writeRaw(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes {"code": status, "message": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeRaw(w, status, &e)
}

// writeID answers a create call with {"id": id}.
func writeID(w http.ResponseWriter, id string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(id) })
	})
	writeRaw(w, http.StatusOK, &e)
}

// writeOK answers {"ok": true}.
func writeOK(w http.ResponseWriter) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("ok", func(e *jx.Encoder) { e.Bool(true) })
	})
	writeRaw(w, http.StatusOK, &e)
}

func writeMessage(w http.ResponseWriter, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeRaw(w, http.StatusOK, &e)
}

// writeCheckout answers {"id", "total", "status"} with total as a number.
func writeCheckout(w http.ResponseWriter, res *order.CheckoutResult) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(res.OrderID) })
		e.Field("total", func(e *jx.Encoder) { e.Num(money(res.Total)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(res.Status) })
	})
	writeRaw(w, http.StatusOK, &e)
}

func money(d decimal.Decimal) jx.Num {
	return jx.Num(d.String())
}

// fail maps a domain error to its HTTP response. entity names the resource
// for not-found messages, e.g. "Product".
func fail(w http.ResponseWriter, r *http.Request, entity string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.Is(err, docstore.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "Invalid id")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "Cart is empty")
	case errors.Is(err, cart.ErrCartNotFound):
		writeError(w, http.StatusNotFound, "Cart not found")
	case errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, cart.ErrLocked):
		writeError(w, http.StatusConflict, "Cart is busy, retry later")
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
