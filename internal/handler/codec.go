package handler

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// bestRequest is the body of POST /api/coupons/best.
type bestRequest struct {
	User coupon.UserContext
	Cart coupon.Cart
}

func decodeCouponData(d *jx.Decoder) (coupon.CouponData, error) {
	var out coupon.CouponData
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			out.Code, err = d.Str()
		case "description":
			out.Description, err = decodeOptStr(d)
		case "discountType":
			out.DiscountType, err = d.Str()
		case "discountValue":
			out.DiscountValue, err = decodeDecimal(d)
		case "maxDiscountAmount":
			out.MaxDiscountAmount, err = decodeOptDecimal(d)
		case "startDate":
			out.StartDate, err = d.Str()
		case "endDate":
			out.EndDate, err = d.Str()
		case "usageLimitPerUser":
			out.UsageLimitPerUser, err = decodeOptInt(d)
		case "eligibility":
			out.Eligibility, err = decodeEligibility(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	return out, err
}

func decodeEligibility(d *jx.Decoder) (*coupon.Eligibility, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	var e coupon.Eligibility
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "allowedUserTiers":
			e.AllowedUserTiers, err = decodeStrings(d)
		case "minLifetimeSpend":
			e.MinLifetimeSpend, err = decodeOptDecimal(d)
		case "minOrdersPlaced":
			e.MinOrdersPlaced, err = decodeOptInt(d)
		case "firstOrderOnly":
			e.FirstOrderOnly, err = decodeOptBool(d)
		case "allowedCountries":
			e.AllowedCountries, err = decodeStrings(d)
		case "minCartValue":
			e.MinCartValue, err = decodeOptDecimal(d)
		case "minItemsCount":
			e.MinItemsCount, err = decodeOptInt(d)
		case "applicableCategories":
			e.ApplicableCategories, err = decodeStrings(d)
		case "excludedCategories":
			e.ExcludedCategories, err = decodeStrings(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	return &e, err
}

func decodeBestRequest(d *jx.Decoder) (bestRequest, error) {
	var out bestRequest
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "user":
			if err := decodeUser(d, &out.User); err != nil {
				return errors.Wrap(err, "user")
			}
		case "cart":
			if err := decodeCart(d, &out.Cart); err != nil {
				return errors.Wrap(err, "cart")
			}
		default:
			return d.Skip()
		}
		return nil
	})
	return out, err
}

func decodeUser(d *jx.Decoder, u *coupon.UserContext) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "userId":
			u.UserID, err = d.Str()
		case "userTier":
			u.UserTier, err = decodeOptStr(d)
		case "country":
			u.Country, err = decodeOptStr(d)
		case "lifetimeSpend":
			var v *decimal.Decimal
			if v, err = decodeOptDecimal(d); v != nil {
				u.LifetimeSpend = *v
			}
		case "ordersPlaced":
			var v *int
			if v, err = decodeOptInt(d); v != nil {
				u.OrdersPlaced = *v
			}
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
}

func decodeCart(d *jx.Decoder, c *coupon.Cart) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "items" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var item coupon.CartItem
			err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				var err error
				switch string(key) {
				case "category":
					item.Category, err = decodeOptStr(d)
				case "unitPrice":
					item.UnitPrice, err = decodeDecimal(d)
				case "quantity":
					item.Quantity, err = d.Int()
				default:
					return d.Skip()
				}
				if err != nil {
					return errors.Wrap(err, string(key))
				}
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "items[%d]", len(c.Items))
			}
			c.Items = append(c.Items, item)
			return nil
		})
	})
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
}

func decodeOptDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := decodeDecimal(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptBool(d *jx.Decoder) (*bool, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Bool()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeStrings keeps null and [] apart: null yields a nil slice, [] an
// empty non-nil one.
func decodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		out = append(out, s)
		return err
	})
	return out, err
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("description", func(e *jx.Encoder) { e.Str(c.Description) })
		e.Field("discountType", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("discountValue", func(e *jx.Encoder) { encodeDecimal(e, c.DiscountValue) })
		e.Field("maxDiscountAmount", func(e *jx.Encoder) { encodeOptDecimal(e, c.MaxDiscountAmount) })
		e.Field("startDate", func(e *jx.Encoder) { e.Str(c.StartDate.Format(coupon.DateLayout)) })
		e.Field("endDate", func(e *jx.Encoder) { e.Str(c.EndDate.Format(coupon.DateLayout)) })
		e.Field("usageLimitPerUser", func(e *jx.Encoder) {
			if c.UsageLimitPerUser == nil {
				e.Null()
				return
			}
			e.Int(*c.UsageLimitPerUser)
		})
		e.Field("eligibility", func(e *jx.Encoder) { encodeEligibility(e, c.Eligibility) })
	})
}

func encodeEligibility(e *jx.Encoder, el *coupon.Eligibility) {
	if el == nil {
		e.Null()
		return
	}
	e.Obj(func(e *jx.Encoder) {
		strs := func(name string, v []string) {
			if v == nil {
				return
			}
			e.Field(name, func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, s := range v {
						e.Str(s)
					}
				})
			})
		}
		dec := func(name string, v *decimal.Decimal) {
			if v != nil {
				e.Field(name, func(e *jx.Encoder) { encodeDecimal(e, *v) })
			}
		}
		num := func(name string, v *int) {
			if v != nil {
				e.Field(name, func(e *jx.Encoder) { e.Int(*v) })
			}
		}

		strs("allowedUserTiers", el.AllowedUserTiers)
		dec("minLifetimeSpend", el.MinLifetimeSpend)
		num("minOrdersPlaced", el.MinOrdersPlaced)
		if el.FirstOrderOnly != nil {
			e.Field("firstOrderOnly", func(e *jx.Encoder) { e.Bool(*el.FirstOrderOnly) })
		}
		strs("allowedCountries", el.AllowedCountries)
		dec("minCartValue", el.MinCartValue)
		num("minItemsCount", el.MinItemsCount)
		strs("applicableCategories", el.ApplicableCategories)
		strs("excludedCategories", el.ExcludedCategories)
	})
}

func encodeSelection(e *jx.Encoder, sel coupon.Selection) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("coupon", func(e *jx.Encoder) {
			if !sel.Found() {
				e.Null()
				return
			}
			encodeCoupon(e, sel.Coupon)
		})
		e.Field("discount", func(e *jx.Encoder) { encodeDecimal(e, sel.Discount) })
	})
}

// encodeDecimal writes d as a JSON number without rounding.
func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.String())
}

func encodeOptDecimal(e *jx.Encoder, d *decimal.Decimal) {
	if d == nil {
		e.Null()
		return
	}
	encodeDecimal(e, *d)
}
