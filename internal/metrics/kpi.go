// Package metrics is the engine's process-wide KPI accumulator. One writer
// (the tick loop) mutates it under a single lock; readers take
// snapshot-consistent copies, so a torn read can never show an impossible
// combination such as wins exceeding closed trades.
package metrics

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/minkyupark/arbpaper/internal/domain"
)

// Reject reasons form a closed key set; reject_total always equals the sum
// of the histogram. Anything outside the set is folded into RejectOther.
const (
	RejectPriceMissing  = "price_missing"
	RejectFXStale       = "fx_stale"
	RejectRatelimitA    = "ratelimit_venue_a"
	RejectRatelimitB    = "ratelimit_venue_b"
	RejectUnitsMismatch = "units_mismatch"
	RejectOBIThreshold  = "obi_threshold"
	RejectEdgeThreshold = "edge_threshold"
	RejectNotProfitable = "not_profitable"
	RejectRankCut       = "rank_cut"
	RejectSimReject     = "sim_reject"
	RejectBlacklisted   = "blacklisted"
	RejectQtyMismatch   = "qty_mismatch"
	RejectOther         = "other"
)

// RejectReasons is the authoritative closed key set, in stable order.
var RejectReasons = []string{
	RejectPriceMissing, RejectFXStale, RejectRatelimitA, RejectRatelimitB,
	RejectUnitsMismatch, RejectOBIThreshold, RejectEdgeThreshold,
	RejectNotProfitable, RejectRankCut, RejectSimReject, RejectBlacklisted,
	RejectQtyMismatch, RejectOther,
}

// latencyRingCap bounds the per-tick latency sample buffer.
const latencyRingCap = 512

// PaperMetrics is the run-wide KPI accumulator. Created once at run start,
// mutated by every tick, serialized at shutdown, never read back.
type PaperMetrics struct {
	mu sync.Mutex

	startedAt time.Time

	opportunities int64
	intents       int64
	executions    int64
	closedTrades  int64
	wins          int64
	losses        int64
	lossStreak    int64

	rejects map[string]int64

	feesTotal        decimal.Decimal
	slippageTotal    decimal.Decimal
	latencyCostTotal decimal.Decimal
	partialFillTotal decimal.Decimal
	spreadCostTotal  decimal.Decimal
	grossPnL         decimal.Decimal
	netPnL           decimal.Decimal

	fxSource string
	fxRate   decimal.Decimal
	fxAsOf   time.Time

	dbIntegrityOK  bool
	dbIntegrityMsg string

	latencies []float64 // ms, bounded ring
	latIdx    int
	latFull   bool
}

// New creates a PaperMetrics anchored at now.
func New(now time.Time) *PaperMetrics {
	m := &PaperMetrics{
		startedAt:     now,
		rejects:       make(map[string]int64, len(RejectReasons)),
		latencies:     make([]float64, 0, latencyRingCap),
		dbIntegrityOK: true,
	}
	for _, r := range RejectReasons {
		m.rejects[r] = 0
	}
	return m
}

// IncOpportunities counts detected candidates.
func (m *PaperMetrics) IncOpportunities(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opportunities += n
}

// IncIntents counts built order intents.
func (m *PaperMetrics) IncIntents(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents += n
}

// IncExecutions counts simulated fills.
func (m *PaperMetrics) IncExecutions(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions += n
}

// Reject counts one reject under the given reason, folding unknown reasons
// into RejectOther so the histogram's key set stays closed.
func (m *PaperMetrics) Reject(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rejects[reason]; !ok {
		reason = RejectOther
	}
	m.rejects[reason]++
}

// RecordTrade folds one welded trade into the friction and PnL totals and
// the win/loss tallies. This is a single atomic commit: every derived field
// moves together under the one lock.
func (m *PaperMetrics) RecordTrade(tr domain.TradeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closedTrades++
	if tr.NetPnLFull.IsPositive() {
		m.wins++
		m.lossStreak = 0
	} else {
		m.losses++
		m.lossStreak++
	}

	m.feesTotal = m.feesTotal.Add(tr.FeesTotal)
	m.slippageTotal = m.slippageTotal.Add(tr.SlippageCost)
	m.latencyCostTotal = m.latencyCostTotal.Add(tr.LatencyCost)
	m.partialFillTotal = m.partialFillTotal.Add(tr.PartialFillPenalty)
	m.spreadCostTotal = m.spreadCostTotal.Add(tr.SpreadCost)
	m.grossPnL = m.grossPnL.Add(tr.GrossPnL)
	m.netPnL = m.netPnL.Add(tr.NetPnLFull)
}

// RecordFX stores the provenance of the FX rate used this tick.
func (m *PaperMetrics) RecordFX(source string, rate decimal.Decimal, asOf time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fxSource = source
	m.fxRate = rate
	m.fxAsOf = asOf
}

// ObserveTickLatency appends one tick duration to the bounded sample ring.
func (m *PaperMetrics) ObserveTickLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms := float64(d.Microseconds()) / 1000.0
	if len(m.latencies) < latencyRingCap {
		m.latencies = append(m.latencies, ms)
		return
	}
	m.latencies[m.latIdx] = ms
	m.latIdx = (m.latIdx + 1) % latencyRingCap
	m.latFull = true
}

// SetDBIntegrity degrades (or restores) the persistence-integrity flag.
func (m *PaperMetrics) SetDBIntegrity(ok bool, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dbIntegrityOK = ok
	m.dbIntegrityMsg = msg
}
