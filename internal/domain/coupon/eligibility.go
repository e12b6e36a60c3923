package coupon

import (
	"slices"

	"github.com/shopspring/decimal"
)

// IsEligible reports whether user and cart satisfy every rule of c's
// eligibility set. cartValue and itemCount are the precomputed totals of
// items. A coupon without eligibility rules admits everyone.
func IsEligible(c *Coupon, user UserContext, cartValue decimal.Decimal, itemCount int, items []CartItem) bool {
	e := c.Eligibility
	if e == nil {
		return true
	}

	switch {
	case e.AllowedUserTiers != nil && !slices.Contains(e.AllowedUserTiers, user.UserTier):
		return false
	case e.MinLifetimeSpend != nil && user.LifetimeSpend.LessThan(*e.MinLifetimeSpend):
		return false
	case e.MinOrdersPlaced != nil && user.OrdersPlaced < *e.MinOrdersPlaced:
		return false
	case e.FirstOrderOnly != nil && *e.FirstOrderOnly && user.OrdersPlaced > 0:
		return false
	case e.AllowedCountries != nil && !slices.Contains(e.AllowedCountries, user.Country):
		return false
	case e.MinCartValue != nil && cartValue.LessThan(*e.MinCartValue):
		return false
	case e.MinItemsCount != nil && itemCount < *e.MinItemsCount:
		return false
	case e.ApplicableCategories != nil && !anyCategoryIn(items, e.ApplicableCategories):
		return false
	case e.ExcludedCategories != nil && anyCategoryIn(items, e.ExcludedCategories):
		return false
	}
	return true
}

func anyCategoryIn(items []CartItem, categories []string) bool {
	return slices.ContainsFunc(items, func(item CartItem) bool {
		return slices.Contains(categories, item.Category)
	})
}
