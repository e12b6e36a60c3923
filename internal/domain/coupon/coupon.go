package coupon

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountFlat grants a fixed monetary amount regardless of the cart.
	DiscountFlat DiscountType = "FLAT"
	// DiscountPercent grants a percentage of the cart value, optionally capped.
	DiscountPercent DiscountType = "PERCENT"
)

// ParseDiscountType resolves s case-insensitively to a known DiscountType.
func ParseDiscountType(s string) (DiscountType, bool) {
	switch t := DiscountType(strings.ToUpper(strings.TrimSpace(s))); t {
	case DiscountFlat, DiscountPercent:
		return t, true
	default:
		return "", false
	}
}

// Status is the lifecycle phase of a coupon relative to a point in time.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
)

// Coupon is an immutable promotional rule. Catalogs store a private copy
// and the Service hands out copies, so callers may modify what they get.
type Coupon struct {
	Code              string
	Description       string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	StartDate         time.Time
	EndDate           time.Time
	UsageLimitPerUser *int
	Eligibility       *Eligibility
}

// Status reports the phase of the coupon at now. Both window bounds are
// inclusive.
func (c *Coupon) Status(now time.Time) Status {
	switch {
	case now.Before(c.StartDate):
		return StatusPending
	case now.After(c.EndDate):
		return StatusExpired
	default:
		return StatusActive
	}
}

// Clone returns a deep copy of c sharing no memory with it.
func (c *Coupon) Clone() *Coupon {
	out := *c
	out.MaxDiscountAmount = clonePtr(c.MaxDiscountAmount)
	out.UsageLimitPerUser = clonePtr(c.UsageLimitPerUser)
	if c.Eligibility != nil {
		out.Eligibility = c.Eligibility.Clone()
	}
	return &out
}

// Exhausted reports whether used redemptions reach the per-user limit.
func (c *Coupon) Exhausted(used int) bool {
	return c.UsageLimitPerUser != nil && used >= *c.UsageLimitPerUser
}

// Eligibility is a conjunction of optional predicates. A nil field places
// no constraint. For the set fields a nil slice is absent, while a non-nil
// empty slice is present: an empty allow-list admits nobody and an empty
// deny-list denies nothing.
type Eligibility struct {
	AllowedUserTiers     []string         `json:"allowedUserTiers"`
	MinLifetimeSpend     *decimal.Decimal `json:"minLifetimeSpend"`
	MinOrdersPlaced      *int             `json:"minOrdersPlaced"`
	FirstOrderOnly       *bool            `json:"firstOrderOnly"`
	AllowedCountries     []string         `json:"allowedCountries"`
	MinCartValue         *decimal.Decimal `json:"minCartValue"`
	MinItemsCount        *int             `json:"minItemsCount"`
	ApplicableCategories []string         `json:"applicableCategories"`
	ExcludedCategories   []string         `json:"excludedCategories"`
}

// Clone returns a deep copy of e. Nil and empty sets stay distinct.
func (e *Eligibility) Clone() *Eligibility {
	return &Eligibility{
		AllowedUserTiers:     slices.Clone(e.AllowedUserTiers),
		MinLifetimeSpend:     clonePtr(e.MinLifetimeSpend),
		MinOrdersPlaced:      clonePtr(e.MinOrdersPlaced),
		FirstOrderOnly:       clonePtr(e.FirstOrderOnly),
		AllowedCountries:     slices.Clone(e.AllowedCountries),
		MinCartValue:         clonePtr(e.MinCartValue),
		MinItemsCount:        clonePtr(e.MinItemsCount),
		ApplicableCategories: slices.Clone(e.ApplicableCategories),
		ExcludedCategories:   slices.Clone(e.ExcludedCategories),
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// UserContext describes the shopper a selection is made for.
type UserContext struct {
	UserID        string          `json:"userId"`
	UserTier      string          `json:"userTier"`
	Country       string          `json:"country"`
	LifetimeSpend decimal.Decimal `json:"lifetimeSpend"`
	OrdersPlaced  int             `json:"ordersPlaced"`
}

// CartItem is a single line of a cart.
type CartItem struct {
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Cart is an ordered list of line items.
type Cart struct {
	Items []CartItem `json:"items"`
}

// Value returns the sum of unit price * quantity across all items.
func (c Cart) Value() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// ItemCount returns the sum of quantities across all items, saturating at
// math.MaxInt. Negative quantities are not counted.
func (c Cart) ItemCount() int {
	total := 0
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			continue
		}
		if total > math.MaxInt-item.Quantity {
			return math.MaxInt
		}
		total += item.Quantity
	}
	return total
}

// Selection is the outcome of a best-coupon lookup. A nil Coupon with a
// zero Discount means no coupon applied.
type Selection struct {
	Coupon   *Coupon
	Discount decimal.Decimal
	// Conflicts counts redemptions refused by the ledger because the
	// coupon was exhausted concurrently after the usage pre-check.
	Conflicts int
}

// Found reports whether a coupon was selected and redeemed.
func (s Selection) Found() bool {
	return s.Coupon != nil
}

// Catalog stores coupons keyed by their unique code.
type Catalog interface {
	// Insert stores c unless its code is taken, in which case it returns
	// an error matching ErrDuplicateCoupon.
	Insert(c Coupon) error
	Get(code string) (Coupon, bool)
	Exists(code string) bool
	Snapshot() []Coupon
}

// Ledger tracks per-user redemption counts.
type Ledger interface {
	Usage(userID, code string) int
	// TryIncrement atomically increments the (userID, code) counter if the
	// result would not exceed limit. A nil limit is unbounded.
	TryIncrement(userID, code string, limit *int) bool
}
