package metrics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time, internally consistent copy of the KPI state.
// It is what the RunWatcher polls and what kpi.json serializes.
type Snapshot struct {
	StartedAt  time.Time `json:"started_at"`
	SnapshotAt time.Time `json:"snapshot_at"`

	Opportunities int64 `json:"opportunities"`
	Intents       int64 `json:"intents"`
	Executions    int64 `json:"executions"`
	ClosedTrades  int64 `json:"closed_trades"`
	Wins          int64 `json:"wins"`
	Losses        int64 `json:"losses"`
	LossStreak    int64 `json:"loss_streak"`

	RejectTotal   int64            `json:"reject_total"`
	RejectReasons map[string]int64 `json:"reject_reasons"`

	FeesTotal          decimal.Decimal `json:"fees_total"`
	SlippageTotal      decimal.Decimal `json:"slippage_total"`
	LatencyCostTotal   decimal.Decimal `json:"latency_cost_total"`
	PartialFillPenalty decimal.Decimal `json:"partial_fill_penalty_total"`
	SpreadCostTotal    decimal.Decimal `json:"spread_cost_total"`
	GrossPnL           decimal.Decimal `json:"gross_pnl"`
	NetPnL             decimal.Decimal `json:"net_pnl"`
	Winrate            float64         `json:"winrate"`

	FXSource string          `json:"fx_source"`
	FXRate   decimal.Decimal `json:"fx_rate"`
	FXAsOf   time.Time       `json:"fx_as_of"`

	DBIntegrityOK  bool   `json:"db_integrity_ok"`
	DBIntegrityMsg string `json:"db_integrity_msg,omitempty"`

	TickLatenciesMs []float64 `json:"tick_latencies_ms"`
}

// Snapshot takes a consistent copy of every KPI field under one lock
// acquisition. The reject histogram and latency ring are deep-copied so the
// caller can hold the snapshot indefinitely.
func (m *PaperMetrics) Snapshot(now time.Time) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	rejects := make(map[string]int64, len(m.rejects))
	var rejectTotal int64
	for k, v := range m.rejects {
		rejects[k] = v
		rejectTotal += v
	}

	lats := make([]float64, len(m.latencies))
	copy(lats, m.latencies)

	var winrate float64
	if m.closedTrades > 0 {
		winrate = float64(m.wins) / float64(m.closedTrades)
	}

	return Snapshot{
		StartedAt:          m.startedAt,
		SnapshotAt:         now,
		Opportunities:      m.opportunities,
		Intents:            m.intents,
		Executions:         m.executions,
		ClosedTrades:       m.closedTrades,
		Wins:               m.wins,
		Losses:             m.losses,
		LossStreak:         m.lossStreak,
		RejectTotal:        rejectTotal,
		RejectReasons:      rejects,
		FeesTotal:          m.feesTotal,
		SlippageTotal:      m.slippageTotal,
		LatencyCostTotal:   m.latencyCostTotal,
		PartialFillPenalty: m.partialFillTotal,
		SpreadCostTotal:    m.spreadCostTotal,
		GrossPnL:           m.grossPnL,
		NetPnL:             m.netPnL,
		Winrate:            winrate,
		FXSource:           m.fxSource,
		FXRate:             m.fxRate,
		FXAsOf:             m.fxAsOf,
		DBIntegrityOK:      m.dbIntegrityOK,
		DBIntegrityMsg:     m.dbIntegrityMsg,
		TickLatenciesMs:    lats,
	}
}

// AvgPnLPerTrade returns net PnL divided by closed trades, zero when no
// trades have closed.
func (s Snapshot) AvgPnLPerTrade() decimal.Decimal {
	if s.ClosedTrades == 0 {
		return decimal.Zero
	}
	return s.NetPnL.Div(decimal.NewFromInt(s.ClosedTrades))
}

// LatencyPercentileMs returns the p-th percentile (0..1) of the tick
// latency samples, zero when no samples exist.
func (s Snapshot) LatencyPercentileMs(p float64) float64 {
	if len(s.TickLatenciesMs) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.TickLatenciesMs))
	copy(sorted, s.TickLatenciesMs)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
