// Package handler exposes the coupon service over HTTP with a JSON API.
package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Handler serves the coupon API.
type Handler struct {
	coupons *coupon.Service
}

// NewHandler returns a Handler backed by svc.
func NewHandler(svc *coupon.Service) *Handler {
	return &Handler{coupons: svc}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupons", h.CreateCoupon)
	mux.HandleFunc("GET /api/coupons", h.ListCoupons)
	mux.HandleFunc("GET /api/coupons/{code}", h.GetCoupon)
	mux.HandleFunc("POST /api/coupons/best", h.BestCoupon)
}

// CreateCoupon handles POST /api/coupons and answers 201 with the stored
// coupon.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := decodeCouponData(d)
	if err != nil {
		writeError(w, r, &decodeError{err: err})
		return
	}

	c, err := h.coupons.CreateCoupon(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

// ListCoupons handles GET /api/coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons := h.coupons.ListCoupons(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range coupons {
				encodeCoupon(e, &coupons[i])
			}
		})
	})
}

// GetCoupon handles GET /api/coupons/{code}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.GetCoupon(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

// BestCoupon handles POST /api/coupons/best. A request no coupon applies to
// is answered 200 with a null coupon and a zero discount.
func (h *Handler) BestCoupon(w http.ResponseWriter, r *http.Request) {
	d, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeBestRequest(d)
	if err != nil {
		writeError(w, r, &decodeError{err: err})
		return
	}
	if err := req.User.Validate(); err != nil {
		writeError(w, r, &coupon.ValidationError{Err: errors.Wrap(err, "user")})
		return
	}
	if err := req.Cart.Validate(); err != nil {
		writeError(w, r, &coupon.ValidationError{Err: errors.Wrap(err, "cart")})
		return
	}

	sel, err := h.coupons.FindBestCoupon(r.Context(), req.User, req.Cart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSelection(e, sel) })
}

func readBody(w http.ResponseWriter, r *http.Request) (*jx.Decoder, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, &decodeError{err: errors.Wrap(err, "read body")}
	}
	if len(body) == 0 {
		return nil, &decodeError{err: errors.New("empty body")}
	}
	return jx.DecodeBytes(body), nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
