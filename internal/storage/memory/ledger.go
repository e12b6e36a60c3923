package memory

import (
	"sync"
	"sync/atomic"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

var _ coupon.Ledger = (*Ledger)(nil)

type usageKey struct {
	userID string
	code   string
}

// Ledger counts redemptions per (user, coupon) pair. Counters only grow.
type Ledger struct {
	counts sync.Map // usageKey -> *atomic.Int64
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Usage returns how many times userID redeemed code. Reading an unknown
// pair does not create it.
func (l *Ledger) Usage(userID, code string) int {
	v, ok := l.counts.Load(usageKey{userID: userID, code: code})
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int64).Load())
}

// TryIncrement adds one redemption for the pair unless that would exceed
// limit. A nil limit never refuses.
func (l *Ledger) TryIncrement(userID, code string, limit *int) bool {
	counter := l.counter(usageKey{userID: userID, code: code})
	if limit == nil {
		counter.Add(1)
		return true
	}

	ceiling := int64(*limit)
	for {
		cur := counter.Load()
		if cur+1 > ceiling {
			return false
		}
		if counter.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (l *Ledger) counter(key usageKey) *atomic.Int64 {
	if v, ok := l.counts.Load(key); ok {
		return v.(*atomic.Int64)
	}
	v, _ := l.counts.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}
