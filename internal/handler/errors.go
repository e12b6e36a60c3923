package handler

import (
	"maps"
	"net/http"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	reasonBusiness   = "Business rule violation"
	reasonValidation = "Validation failed"
	reasonInternal   = "Internal Server Error"
)

// decodeError marks a request body that is not the expected JSON shape.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "malformed request body: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

// apiError is the rendered form of an error response.
type apiError struct {
	Status    int
	Message   string
	Reason    string
	Retryable bool
	Fields    map[string]string
}

// mapError converts err into the response sent to the client.
func mapError(err error) apiError {
	var decErr *decodeError
	if errors.As(err, &decErr) {
		return apiError{Status: http.StatusBadRequest, Message: decErr.Error(), Reason: reasonValidation}
	}

	var valErr *coupon.ValidationError
	if errors.As(err, &valErr) {
		return apiError{
			Status:  http.StatusBadRequest,
			Message: valErr.Error(),
			Reason:  reasonValidation,
			Fields:  fieldErrors(valErr.Err),
		}
	}

	switch {
	case errors.Is(err, coupon.ErrDuplicateCoupon):
		return apiError{Status: http.StatusConflict, Message: err.Error(), Reason: reasonBusiness}
	case errors.Is(err, coupon.ErrCouponNotFound):
		return apiError{Status: http.StatusNotFound, Message: err.Error(), Reason: reasonBusiness}
	case errors.Is(err, coupon.ErrLedgerConflict):
		return apiError{Status: http.StatusConflict, Message: err.Error(), Reason: reasonBusiness, Retryable: true}
	default:
		return apiError{Status: http.StatusInternalServerError, Message: "internal server error", Reason: reasonInternal}
	}
}

// fieldErrors flattens ozzo validation errors into field -> message.
// Nested errors are keyed with dotted paths.
func fieldErrors(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	var walk func(prefix string, errs validation.Errors)
	walk = func(prefix string, errs validation.Errors) {
		for field, fe := range errs {
			var nested validation.Errors
			if errors.As(fe, &nested) {
				walk(prefix+field+".", nested)
				continue
			}
			out[prefix+field] = fe.Error()
		}
	}
	walk("", verrs)
	return out
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := mapError(err)

	lg := zctx.From(r.Context())
	if resp.Status >= http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err))
	} else {
		lg.Debug("Request rejected", zap.Int("status", resp.Status), zap.Error(err))
	}

	writeJSON(w, resp.Status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(resp.Status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(resp.Message) })
			e.Field("reason", func(e *jx.Encoder) { e.Str(resp.Reason) })
			if resp.Retryable {
				e.Field("retryable", func(e *jx.Encoder) { e.Bool(true) })
			}
			if len(resp.Fields) > 0 {
				e.Field("fields", func(e *jx.Encoder) {
					e.Obj(func(e *jx.Encoder) {
						for _, name := range slices.Sorted(maps.Keys(resp.Fields)) {
							e.Field(name, func(e *jx.Encoder) { e.Str(resp.Fields[name]) })
						}
					})
				})
			}
		})
	})
}
