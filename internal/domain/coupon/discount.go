package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CalculateDiscount returns the amount c takes off a cart worth cartValue.
// FLAT coupons grant their value unconditionally, even above the cart value.
// PERCENT coupons grant value/100 of the cart, limited by MaxDiscountAmount
// when one is set. No rounding is applied.
func CalculateDiscount(c *Coupon, cartValue decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case DiscountFlat:
		return c.DiscountValue
	case DiscountPercent:
		amount := cartValue.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount != nil {
			amount = decimal.Min(amount, *c.MaxDiscountAmount)
		}
		return amount
	default:
		return decimal.Zero
	}
}
