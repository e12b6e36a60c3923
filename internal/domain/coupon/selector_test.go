package coupon

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type fakeCatalog struct {
	coupons []Coupon
}

func (f *fakeCatalog) Insert(c Coupon) error {
	if f.Exists(c.Code) {
		return &DuplicateCouponError{Code: c.Code}
	}
	f.coupons = append(f.coupons, c)
	return nil
}

func (f *fakeCatalog) Get(code string) (Coupon, bool) {
	for _, c := range f.coupons {
		if c.Code == code {
			return c, true
		}
	}
	return Coupon{}, false
}

func (f *fakeCatalog) Exists(code string) bool {
	_, ok := f.Get(code)
	return ok
}

func (f *fakeCatalog) Snapshot() []Coupon {
	out := make([]Coupon, len(f.coupons))
	copy(out, f.coupons)
	return out
}

type fakeLedger struct {
	mu     sync.Mutex
	counts map[string]int
	// refuse makes TryIncrement fail for the listed codes regardless of
	// the counter, simulating a concurrent redemption.
	refuse map[string]bool
	calls  []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{counts: map[string]int{}, refuse: map[string]bool{}}
}

func (f *fakeLedger) Usage(userID, code string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[userID+"/"+code]
}

func (f *fakeLedger) TryIncrement(userID, code string, limit *int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, code)
	if f.refuse[code] {
		return false
	}
	key := userID + "/" + code
	if limit != nil && f.counts[key]+1 > *limit {
		return false
	}
	f.counts[key]++
	return true
}

// --- Helpers ---

var (
	testNow  = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	lastWeek = testNow.Add(-7 * 24 * time.Hour)
	nextWeek = testNow.Add(7 * 24 * time.Hour)
)

func activeCoupon(code string, typ DiscountType, value string) Coupon {
	return Coupon{
		Code:          code,
		DiscountType:  typ,
		DiscountValue: d(value),
		StartDate:     lastWeek,
		EndDate:       nextWeek,
	}
}

func shoesCart() Cart {
	return Cart{Items: []CartItem{{Category: "shoes", UnitPrice: d("50"), Quantity: 2}}}
}

func newTestSelector(ledger Ledger, coupons ...Coupon) *Selector {
	return NewSelector(&fakeCatalog{coupons: coupons}, ledger, WithClock(func() time.Time { return testNow }))
}

var testUser = UserContext{UserID: "u1", UserTier: "GOLD", Country: "IN", OrdersPlaced: 2}

// --- Tests ---

func TestFindBest_PercentExample(t *testing.T) {
	ledger := newFakeLedger()
	s := newTestSelector(ledger, activeCoupon("SAVE10", DiscountPercent, "10"))

	sel, err := s.FindBest(testUser, shoesCart())
	require.NoError(t, err)
	require.True(t, sel.Found())
	assert.Equal(t, "SAVE10", sel.Coupon.Code)
	assert.True(t, d("10").Equal(sel.Discount), "got %s", sel.Discount)
	assert.Equal(t, 1, ledger.Usage("u1", "SAVE10"))
}

func TestFindBest_HigherDiscountWins(t *testing.T) {
	s := newTestSelector(newFakeLedger(),
		activeCoupon("FLAT20", DiscountFlat, "20"),
		activeCoupon("PCT25", DiscountPercent, "25"),
	)

	sel, err := s.FindBest(testUser, shoesCart())
	require.NoError(t, err)
	require.True(t, sel.Found())
	assert.Equal(t, "PCT25", sel.Coupon.Code)
	assert.True(t, d("25").Equal(sel.Discount))
}

func TestFindBest_FirstOrderOnlyExcluded(t *testing.T) {
	big := activeCoupon("WELCOME", DiscountFlat, "90")
	big.Eligibility = &Eligibility{FirstOrderOnly: boolp(true)}
	small := activeCoupon("SMALL", DiscountFlat, "5")

	sel, err := newTestSelector(newFakeLedger(), big, small).FindBest(testUser, shoesCart())
	require.NoError(t, err)
	require.True(t, sel.Found())
	assert.Equal(t, "SMALL", sel.Coupon.Code)
}

func TestFindBest_TieBreak(t *testing.T) {
	t.Run("earlier end date wins", func(t *testing.T) {
		late := activeCoupon("AAA", DiscountFlat, "10")
		early := activeCoupon("ZZZ", DiscountFlat, "10")
		early.EndDate = testNow.Add(time.Hour)

		sel, err := newTestSelector(newFakeLedger(), late, early).FindBest(testUser, shoesCart())
		require.NoError(t, err)
		assert.Equal(t, "ZZZ", sel.Coupon.Code)
	})

	t.Run("smaller code wins on equal end date", func(t *testing.T) {
		b := activeCoupon("BETA", DiscountFlat, "10")
		a := activeCoupon("ALPHA", DiscountPercent, "10")

		sel, err := newTestSelector(newFakeLedger(), b, a).FindBest(testUser, shoesCart())
		require.NoError(t, err)
		assert.Equal(t, "ALPHA", sel.Coupon.Code)
	})

	t.Run("order of catalog does not matter", func(t *testing.T) {
		coupons := []Coupon{
			activeCoupon("C3", DiscountFlat, "10"),
			activeCoupon("C1", DiscountFlat, "10"),
			activeCoupon("C2", DiscountFlat, "10"),
		}
		for i := range coupons {
			rotated := append(append([]Coupon{}, coupons[i:]...), coupons[:i]...)
			sel, err := newTestSelector(newFakeLedger(), rotated...).FindBest(testUser, shoesCart())
			require.NoError(t, err)
			assert.Equal(t, "C1", sel.Coupon.Code)
		}
	})
}

func TestFindBest_ValidityWindow(t *testing.T) {
	expired := activeCoupon("OLD", DiscountFlat, "50")
	expired.StartDate = testNow.Add(-48 * time.Hour)
	expired.EndDate = testNow.Add(-time.Second)

	pending := activeCoupon("SOON", DiscountFlat, "50")
	pending.StartDate = testNow.Add(time.Second)

	edge := activeCoupon("EDGE", DiscountFlat, "1")
	edge.StartDate = testNow
	edge.EndDate = testNow

	sel, err := newTestSelector(newFakeLedger(), expired, pending, edge).FindBest(testUser, shoesCart())
	require.NoError(t, err)
	require.True(t, sel.Found())
	assert.Equal(t, "EDGE", sel.Coupon.Code)
}

func TestFindBest_UsageLimit(t *testing.T) {
	limited := activeCoupon("ONCE", DiscountFlat, "50")
	limited.UsageLimitPerUser = intp(1)
	fallback := activeCoupon("ALWAYS", DiscountFlat, "5")

	ledger := newFakeLedger()
	s := newTestSelector(ledger, limited, fallback)

	first, err := s.FindBest(testUser, shoesCart())
	require.NoError(t, err)
	assert.Equal(t, "ONCE", first.Coupon.Code)

	second, err := s.FindBest(testUser, shoesCart())
	require.NoError(t, err)
	assert.Equal(t, "ALWAYS", second.Coupon.Code)
	assert.Equal(t, 1, ledger.Usage("u1", "ONCE"))

	// Another user is unaffected.
	other, err := s.FindBest(UserContext{UserID: "u2"}, shoesCart())
	require.NoError(t, err)
	assert.Equal(t, "ONCE", other.Coupon.Code)
}

func TestFindBest_ZeroLimitNeverSelected(t *testing.T) {
	c := activeCoupon("NEVER", DiscountFlat, "50")
	c.UsageLimitPerUser = intp(0)

	sel, err := newTestSelector(newFakeLedger(), c).FindBest(testUser, shoesCart())
	require.NoError(t, err)
	assert.False(t, sel.Found())
}

func TestFindBest_NoCandidate(t *testing.T) {
	ledger := newFakeLedger()

	sel, err := newTestSelector(ledger).FindBest(testUser, shoesCart())
	require.NoError(t, err)
	assert.False(t, sel.Found())
	assert.True(t, decimal.Zero.Equal(sel.Discount))
	assert.Empty(t, ledger.calls)
}

func TestFindBest_ZeroDiscountNotSelected(t *testing.T) {
	ledger := newFakeLedger()
	s := newTestSelector(ledger,
		activeCoupon("NOTHING", DiscountFlat, "0"),
		activeCoupon("PCT", DiscountPercent, "10"),
	)

	sel, err := s.FindBest(testUser, Cart{})
	require.NoError(t, err)
	assert.False(t, sel.Found())
	assert.Empty(t, ledger.calls)
}

func TestFindBest_ReselectsOnConflict(t *testing.T) {
	ledger := newFakeLedger()
	ledger.refuse["BEST"] = true

	s := newTestSelector(ledger,
		activeCoupon("BEST", DiscountFlat, "30"),
		activeCoupon("NEXT", DiscountFlat, "20"),
		activeCoupon("LAST", DiscountFlat, "10"),
	)

	sel, err := s.FindBest(testUser, shoesCart())
	require.NoError(t, err)
	require.True(t, sel.Found())
	assert.Equal(t, "NEXT", sel.Coupon.Code)
	assert.Equal(t, 1, sel.Conflicts)
	assert.Equal(t, []string{"BEST", "NEXT"}, ledger.calls)
	assert.Equal(t, 0, ledger.Usage("u1", "BEST"))
}

func TestFindBest_AllCandidatesRefused(t *testing.T) {
	ledger := newFakeLedger()
	ledger.refuse["A"] = true
	ledger.refuse["B"] = true

	s := newTestSelector(ledger,
		activeCoupon("A", DiscountFlat, "30"),
		activeCoupon("B", DiscountFlat, "20"),
	)

	sel, err := s.FindBest(testUser, shoesCart())
	require.NoError(t, err)
	assert.False(t, sel.Found())
	assert.Equal(t, 2, sel.Conflicts)
}

func TestFindBest_AttemptsExhausted(t *testing.T) {
	ledger := newFakeLedger()
	ledger.refuse["A"] = true
	ledger.refuse["B"] = true

	s := NewSelector(&fakeCatalog{coupons: []Coupon{
		activeCoupon("A", DiscountFlat, "30"),
		activeCoupon("B", DiscountFlat, "20"),
		activeCoupon("C", DiscountFlat, "10"),
	}}, ledger,
		WithClock(func() time.Time { return testNow }),
		WithMaxAttempts(2),
	)

	sel, err := s.FindBest(testUser, shoesCart())
	require.ErrorIs(t, err, ErrLedgerConflict)
	assert.False(t, sel.Found())
	assert.Equal(t, 2, sel.Conflicts)
	assert.Equal(t, 0, ledger.Usage("u1", "C"))
}

func TestCouponStatus(t *testing.T) {
	c := activeCoupon("S", DiscountFlat, "1")

	assert.Equal(t, StatusPending, c.Status(lastWeek.Add(-time.Nanosecond)))
	assert.Equal(t, StatusActive, c.Status(lastWeek))
	assert.Equal(t, StatusActive, c.Status(testNow))
	assert.Equal(t, StatusActive, c.Status(nextWeek))
	assert.Equal(t, StatusExpired, c.Status(nextWeek.Add(time.Nanosecond)))
}
