// Package memory implements the coupon catalog and usage ledger in process
// memory. Both are safe for concurrent use and neither takes a global lock.
package memory

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

var _ coupon.Catalog = (*Catalog)(nil)

// Catalog is a map from coupon code to coupon. Codes are compared exactly.
type Catalog struct {
	coupons sync.Map // string -> coupon.Coupon
	size    atomic.Int64
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Insert stores a deep copy of cp if no coupon with the same code exists.
// The check and the store are a single atomic step, so of two concurrent
// inserts with one code exactly one succeeds.
func (c *Catalog) Insert(cp coupon.Coupon) error {
	if _, loaded := c.coupons.LoadOrStore(cp.Code, *cp.Clone()); loaded {
		return &coupon.DuplicateCouponError{Code: cp.Code}
	}
	c.size.Add(1)
	return nil
}

// Get returns the coupon stored under code.
func (c *Catalog) Get(code string) (coupon.Coupon, bool) {
	v, ok := c.coupons.Load(code)
	if !ok {
		return coupon.Coupon{}, false
	}
	return v.(coupon.Coupon), true
}

// Exists reports whether code is taken.
func (c *Catalog) Exists(code string) bool {
	_, ok := c.coupons.Load(code)
	return ok
}

// Snapshot returns the stored coupons ordered by code. Coupons inserted
// while the snapshot is taken may or may not be included.
func (c *Catalog) Snapshot() []coupon.Coupon {
	out := make([]coupon.Coupon, 0, c.size.Load())
	c.coupons.Range(func(_, v any) bool {
		out = append(out, v.(coupon.Coupon))
		return true
	})
	slices.SortFunc(out, func(a, b coupon.Coupon) int {
		return cmp.Compare(a.Code, b.Code)
	})
	return out
}

// Len returns the number of stored coupons.
func (c *Catalog) Len() int {
	return int(c.size.Load())
}
