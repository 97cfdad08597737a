// Session cost accounting
package gateway

import (
	"math"
	"sync"
	"time"
)

// microsPerUSD is the fixed-point scale the ledger accumulates in. One
// micro-USD resolves every per-call cost the pricing tables or the control
// plane produce, and integer addition keeps N accumulated calls exactly equal
// to the sum of their individual costs.
const microsPerUSD = 1e6

// CostLedger tracks cumulative session spend against an optional cap.
//
// The consumed total is monotonically non-decreasing and is mutated only by
// the gateway that owns the session. All read-modify-write sequences are
// serialized by the ledger's own lock, so concurrent invocations on one
// session never lose an update; ledgers of different sessions share no state.
type CostLedger struct {
	mu        sync.Mutex
	capMicros int64
	consumed  int64
	updatedAt time.Time
}

// NewCostLedger creates a ledger with the given cap in USD. A zero or
// negative cap means the session is uncapped.
func NewCostLedger(capUSD float64) *CostLedger {
	return &CostLedger{capMicros: usdToMicros(capUSD)}
}

// CheckCap returns a *CostCapExceededError when recorded spend has reached
// the cap, nil otherwise. Uncapped ledgers always pass. The check consults
// recorded spend only: a single in-flight call may carry the total past the
// cap, in which case this call is what makes the next invocation fail fast.
func (l *CostLedger) CheckCap() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.capMicros > 0 && l.consumed >= l.capMicros {
		return &CostCapExceededError{
			CapUSD:      microsToUSD(l.capMicros),
			ConsumedUSD: microsToUSD(l.consumed),
		}
	}
	return nil
}

// Add records the authoritative cost of one completed call. Negative values
// are ignored: the total never decreases.
func (l *CostLedger) Add(costUSD float64) {
	micros := usdToMicros(costUSD)
	if micros <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumed += micros
	l.updatedAt = time.Now()
}

// Reconcile raises the recorded total to at least the authoritative figure.
// Used when the control plane reports spend the local ledger has not seen,
// such as a call that was billed but whose response was lost to cancellation.
// Never lowers the total.
func (l *CostLedger) Reconcile(authoritativeUSD float64) {
	micros := usdToMicros(authoritativeUSD)
	l.mu.Lock()
	defer l.mu.Unlock()
	if micros > l.consumed {
		l.consumed = micros
		l.updatedAt = time.Now()
	}
}

// Consumed returns the recorded session spend in USD.
func (l *CostLedger) Consumed() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return microsToUSD(l.consumed)
}

// Cap returns the configured cap in USD, zero when uncapped.
func (l *CostLedger) Cap() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return microsToUSD(l.capMicros)
}

// UpdatedAt returns when the total last changed, zero time if never.
func (l *CostLedger) UpdatedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updatedAt
}

// Reset clears recorded spend. Development-variant sessions use this when
// their history is reset; the cap is retained.
func (l *CostLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumed = 0
	l.updatedAt = time.Now()
}

func usdToMicros(usd float64) int64 {
	if usd <= 0 {
		return 0
	}
	return int64(math.Round(usd * microsPerUSD))
}

func microsToUSD(micros int64) float64 {
	return float64(micros) / microsPerUSD
}
