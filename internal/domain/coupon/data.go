package coupon

import (
	"time"

	"github.com/go-faster/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// dateLayouts are the accepted ISO-8601 local date-time forms. Fractional
// seconds are accepted after the seconds field by time.Parse itself.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// MaxItemQuantity bounds a single cart line.
const MaxItemQuantity = 1_000_000

// DateLayout is the layout coupons' dates are rendered with.
const DateLayout = "2006-01-02T15:04:05"

// ParseLocalDateTime parses an ISO-8601 date-time without zone offset in loc.
func ParseLocalDateTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("%q is not a local date-time (expected yyyy-MM-ddTHH:mm[:ss[.fff]])", s)
}

// CouponData is the caller-supplied shape of a coupon before validation.
// Discount type and dates are raw strings.
type CouponData struct {
	Code              string           `json:"code"`
	Description       string           `json:"description"`
	DiscountType      string           `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount"`
	StartDate         string           `json:"startDate"`
	EndDate           string           `json:"endDate"`
	UsageLimitPerUser *int             `json:"usageLimitPerUser"`
	Eligibility       *Eligibility     `json:"eligibility"`
}

// Validate checks d field by field, interpreting dates in loc. The returned
// error is a *ValidationError.
func (d CouponData) Validate(loc *time.Location) error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Code, validation.Required.Error("code is required")),
		validation.Field(&d.DiscountType,
			validation.Required.Error("discountType is required"),
			validation.By(knownDiscountType),
		),
		validation.Field(&d.DiscountValue, validation.By(nonNegative)),
		validation.Field(&d.MaxDiscountAmount, validation.By(nonNegative)),
		validation.Field(&d.StartDate, validation.Required, validation.By(localDateTime(loc))),
		validation.Field(&d.EndDate, validation.Required, validation.By(localDateTime(loc))),
		validation.Field(&d.UsageLimitPerUser, validation.Min(0)),
		validation.Field(&d.Eligibility),
	)
	if err != nil {
		return &ValidationError{Err: err}
	}

	start, _ := ParseLocalDateTime(d.StartDate, loc)
	end, _ := ParseLocalDateTime(d.EndDate, loc)
	if end.Before(start) {
		return &ValidationError{Err: validation.Errors{
			"endDate": errors.New("must not be before startDate"),
		}}
	}
	return nil
}

// Build validates d and converts it into a Coupon.
func (d CouponData) Build(loc *time.Location) (Coupon, error) {
	if err := d.Validate(loc); err != nil {
		return Coupon{}, err
	}

	discountType, _ := ParseDiscountType(d.DiscountType)
	start, _ := ParseLocalDateTime(d.StartDate, loc)
	end, _ := ParseLocalDateTime(d.EndDate, loc)

	return Coupon{
		Code:              d.Code,
		Description:       d.Description,
		DiscountType:      discountType,
		DiscountValue:     d.DiscountValue,
		MaxDiscountAmount: d.MaxDiscountAmount,
		StartDate:         start,
		EndDate:           end,
		UsageLimitPerUser: d.UsageLimitPerUser,
		Eligibility:       d.Eligibility,
	}, nil
}

// Validate rejects negative thresholds.
func (e Eligibility) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.MinLifetimeSpend, validation.By(nonNegative)),
		validation.Field(&e.MinOrdersPlaced, validation.Min(0)),
		validation.Field(&e.MinCartValue, validation.By(nonNegative)),
		validation.Field(&e.MinItemsCount, validation.Min(0)),
	)
}

// Validate checks the request-scoped user fields the evaluator relies on.
func (u UserContext) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.UserID, validation.Required.Error("userId is required")),
		validation.Field(&u.LifetimeSpend, validation.By(nonNegative)),
		validation.Field(&u.OrdersPlaced, validation.Min(0)),
	)
}

// Validate checks every cart line has a non-negative price and quantity.
func (c Cart) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Items, validation.Each(validation.By(validCartItem))),
	)
}

func validCartItem(value any) error {
	item, ok := value.(CartItem)
	if !ok {
		return errors.Errorf("unexpected cart item type %T", value)
	}
	if item.UnitPrice.IsNegative() {
		return errors.New("unitPrice must be no less than 0")
	}
	if item.Quantity < 0 {
		return errors.New("quantity must be no less than 0")
	}
	if item.Quantity > MaxItemQuantity {
		return errors.Errorf("quantity must be no greater than %d", MaxItemQuantity)
	}
	return nil
}

func knownDiscountType(value any) error {
	s, _ := value.(string)
	if _, ok := ParseDiscountType(s); !ok {
		return errors.Errorf("must be FLAT or PERCENT, got %q", s)
	}
	return nil
}

func nonNegative(value any) error {
	var d *decimal.Decimal
	switch v := value.(type) {
	case decimal.Decimal:
		d = &v
	case *decimal.Decimal:
		d = v
	}
	if d != nil && d.IsNegative() {
		return errors.New("must be no less than 0")
	}
	return nil
}

func localDateTime(loc *time.Location) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		_, err := ParseLocalDateTime(s, loc)
		return err
	}
}
