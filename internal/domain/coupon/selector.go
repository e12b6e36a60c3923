package coupon

import (
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultMaxAttempts bounds the redemption attempts of a single selection.
const DefaultMaxAttempts = 5

// Selector picks the best applicable coupon for a user and cart and
// redeems it against the ledger.
type Selector struct {
	catalog     Catalog
	ledger      Ledger
	now         func() time.Time
	maxAttempts int
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithClock replaces time.Now as the source of the evaluation instant.
func WithClock(now func() time.Time) SelectorOption {
	return func(s *Selector) { s.now = now }
}

// WithMaxAttempts sets how many ledger increments a selection may try
// before giving up with ErrLedgerConflict. Values below 1 are ignored.
func WithMaxAttempts(n int) SelectorOption {
	return func(s *Selector) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewSelector creates a Selector reading coupons from catalog and recording
// redemptions in ledger.
func NewSelector(catalog Catalog, ledger Ledger, opts ...SelectorOption) *Selector {
	s := &Selector{
		catalog:     catalog,
		ledger:      ledger,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// candidate is a coupon that passed every filter, with its discount.
type candidate struct {
	coupon   *Coupon
	discount decimal.Decimal
}

// outranks reports whether c beats other: higher discount first, then the
// earlier end date, then the lexicographically smaller code.
func (c candidate) outranks(other candidate) bool {
	if cmp := c.discount.Cmp(other.discount); cmp != 0 {
		return cmp > 0
	}
	if !c.coupon.EndDate.Equal(other.coupon.EndDate) {
		return c.coupon.EndDate.Before(other.coupon.EndDate)
	}
	return c.coupon.Code < other.coupon.Code
}

// FindBest selects the highest-ranked active, available and eligible coupon
// and records one redemption of it for user.
//
// When the ledger refuses the increment (the coupon was exhausted by a
// concurrent redemption after the usage pre-check) the coupon is dropped and
// the next-ranked candidate is tried. After the configured number of refused
// attempts FindBest returns ErrLedgerConflict. A selection with no candidate
// left is the empty Selection, not an error.
func (s *Selector) FindBest(user UserContext, cart Cart) (Selection, error) {
	now := s.now()
	candidates := s.candidates(user, cart, now)

	var sel Selection
	for len(candidates) > 0 {
		if sel.Conflicts >= s.maxAttempts {
			return sel, errors.Wrapf(ErrLedgerConflict,
				"%d redemption attempts refused for user %q", sel.Conflicts, user.UserID)
		}

		i := bestIndex(candidates)
		winner := candidates[i]
		if s.ledger.TryIncrement(user.UserID, winner.coupon.Code, winner.coupon.UsageLimitPerUser) {
			sel.Coupon = winner.coupon
			sel.Discount = winner.discount
			return sel, nil
		}

		sel.Conflicts++
		candidates = slices.Delete(candidates, i, i+1)
	}
	return sel, nil
}

// candidates filters the catalog snapshot down to coupons that are active
// at now, not exhausted for user, eligible for cart and worth a positive
// discount.
func (s *Selector) candidates(user UserContext, cart Cart, now time.Time) []candidate {
	snapshot := s.catalog.Snapshot()
	cartValue := cart.Value()
	itemCount := cart.ItemCount()

	var out []candidate
	for i := range snapshot {
		c := &snapshot[i]
		if c.Status(now) != StatusActive {
			continue
		}
		// Optimistic pre-check; TryIncrement is authoritative.
		if c.UsageLimitPerUser != nil && c.Exhausted(s.ledger.Usage(user.UserID, c.Code)) {
			continue
		}
		if !IsEligible(c, user, cartValue, itemCount, cart.Items) {
			continue
		}
		discount := CalculateDiscount(c, cartValue)
		if !discount.IsPositive() {
			continue
		}
		out = append(out, candidate{coupon: c, discount: discount})
	}
	return out
}

func bestIndex(candidates []candidate) int {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].outranks(candidates[best]) {
			best = i
		}
	}
	return best
}
