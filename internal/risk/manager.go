package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/artbotdev/art-trader/internal/consensus"
	"github.com/artbotdev/art-trader/internal/signal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RISK MANAGER - Gatekeeper for all trades
// ═══════════════════════════════════════════════════════════════════════════════
//
// Signal → approve/reject with a position fraction, in ONE serialized
// decision. The open-exposure ledger, daily approval count, and cooldown
// stamps are the only mutable shared state in the pipeline; every
// read-then-write against them happens inside the same critical section, so
// two signals in one cycle can never double-spend the exposure or daily
// budget.
//
// Position tiers by agreement breadth:
//   single 1.0%  ·  dual 1.5%  ·  triple 2.0%  of account equity
//
// Final fraction = tier base × confidence.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Status of an order intent.
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// RejectionReason enumerates the expected rejection outcomes. Rejections
// are first-class results, never errors.
type RejectionReason string

const (
	ReasonNone              RejectionReason = ""
	ReasonLowConfidence     RejectionReason = "low_confidence"
	ReasonDuplicateExposure RejectionReason = "duplicate_exposure"
	ReasonDailyCapReached   RejectionReason = "daily_cap_reached"
	ReasonExposureCap       RejectionReason = "exposure_cap_reached"
	ReasonCooldownActive    RejectionReason = "cooldown_active"
)

// OrderIntent is the manager's final output for one signal, approved or not.
type OrderIntent struct {
	Instrument       string
	Side             signal.Side
	PositionFraction decimal.Decimal // of account equity; zero when rejected
	Status           Status
	Reason           RejectionReason
	Signal           signal.Signal
	DecidedAt        time.Time
}

// Approved is a convenience accessor.
func (o OrderIntent) Approved() bool { return o.Status == StatusApproved }

// Config for the risk manager.
type Config struct {
	TierFraction    map[consensus.Tier]decimal.Decimal
	ConfidenceFloor decimal.Decimal
	MinFraction     decimal.Decimal // smallest tradable position fraction
	DailyCap        int             // approved intents per trading day
	ExposureCap     decimal.Decimal // sum of open fractions across instruments
	Cooldown        time.Duration   // wait after closing before re-entering an instrument
}

func DefaultConfig() Config {
	return Config{
		TierFraction: map[consensus.Tier]decimal.Decimal{
			consensus.TierSingle: decimal.NewFromFloat(0.010),
			consensus.TierDual:   decimal.NewFromFloat(0.015),
			consensus.TierTriple: decimal.NewFromFloat(0.020),
		},
		ConfidenceFloor: decimal.NewFromFloat(0.50),
		MinFraction:     decimal.NewFromFloat(0.0025),
		DailyCap:        10,
		ExposureCap:     decimal.NewFromFloat(0.20),
	}
}

// Manager owns the risk ledger.
type Manager struct {
	mu  sync.Mutex
	cfg Config

	open          map[string]decimal.Decimal // instrument -> open fraction
	approvedToday int
	lastResetDay  int
	lastClosed    map[string]time.Time

	now func() time.Time // injectable clock for tests
}

func NewManager(cfg Config) *Manager {
	m := &Manager{
		cfg:        cfg,
		open:       make(map[string]decimal.Decimal),
		lastClosed: make(map[string]time.Time),
		now:        time.Now,
	}

	log.Info().
		Int("daily_cap", cfg.DailyCap).
		Str("exposure_cap", cfg.ExposureCap.Mul(decimal.NewFromInt(100)).StringFixed(0)+"%").
		Dur("cooldown", cfg.Cooldown).
		Msg("🛡️ Risk manager initialized")

	return m
}

// Evaluate converts one signal into an order intent. Checks run in a fixed
// order and the first failure wins; an approval is recorded before the
// intent is returned, so concurrent callers see the updated ledger.
func (m *Manager) Evaluate(sig signal.Signal) OrderIntent {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkDayReset()

	reject := func(reason RejectionReason) OrderIntent {
		log.Debug().
			Str("instrument", sig.Instrument).
			Str("reason", string(reason)).
			Msg("🚫 Intent rejected")
		return OrderIntent{
			Instrument: sig.Instrument,
			Side:       sig.Side,
			Status:     StatusRejected,
			Reason:     reason,
			Signal:     sig,
			DecidedAt:  m.now(),
		}
	}

	// 1. Confidence floor.
	if sig.Confidence.LessThan(m.cfg.ConfidenceFloor) {
		return reject(ReasonLowConfidence)
	}

	// 2. One signal-driven position per instrument.
	if _, held := m.open[sig.Instrument]; held {
		return reject(ReasonDuplicateExposure)
	}

	// 3. Daily approval cap.
	if m.approvedToday >= m.cfg.DailyCap {
		return reject(ReasonDailyCapReached)
	}

	// 4. Portfolio exposure cap.
	if m.totalExposure().GreaterThanOrEqual(m.cfg.ExposureCap) {
		return reject(ReasonExposureCap)
	}

	// 5. Re-entry cooldown after a close on the same instrument.
	if m.cfg.Cooldown > 0 {
		if closed, ok := m.lastClosed[sig.Instrument]; ok {
			if m.now().Sub(closed) < m.cfg.Cooldown {
				return reject(ReasonCooldownActive)
			}
		}
	}

	// Size: tier base scaled by confidence, floor-clamped to zero below the
	// minimum tradable fraction.
	base, ok := m.cfg.TierFraction[sig.Tier]
	if !ok {
		return reject(ReasonLowConfidence)
	}
	fraction := base.Mul(sig.Confidence)
	if fraction.LessThan(m.cfg.MinFraction) {
		return reject(ReasonLowConfidence)
	}

	// Commit before returning: the ledger must reflect this approval for the
	// next evaluation, same cycle or not.
	m.open[sig.Instrument] = fraction
	m.approvedToday++

	log.Info().
		Str("instrument", sig.Instrument).
		Str("side", string(sig.Side)).
		Str("fraction", fraction.Mul(decimal.NewFromInt(100)).StringFixed(2)+"%").
		Int("approved_today", m.approvedToday).
		Msg("✅ Intent approved")

	return OrderIntent{
		Instrument:       sig.Instrument,
		Side:             sig.Side,
		PositionFraction: fraction,
		Status:           StatusApproved,
		Signal:           sig,
		DecidedAt:        m.now(),
	}
}

// Release closes the open position on an instrument, freeing its exposure
// and starting the re-entry cooldown. Unknown instruments are a no-op.
func (m *Manager) Release(instrument string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.open[instrument]; !held {
		return
	}
	delete(m.open, instrument)
	m.lastClosed[instrument] = m.now()

	log.Info().Str("instrument", instrument).Msg("🔓 Position released")
}

// Exposure returns the current sum of open position fractions.
func (m *Manager) Exposure() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalExposure()
}

// OpenPositions returns a copy of the open ledger.
func (m *Manager) OpenPositions() map[string]decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]decimal.Decimal, len(m.open))
	for k, v := range m.open {
		out[k] = v
	}
	return out
}

// ApprovedToday returns the day's approval count.
func (m *Manager) ApprovedToday() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkDayReset()
	return m.approvedToday
}

// totalExposure must be called with the lock held.
func (m *Manager) totalExposure() decimal.Decimal {
	total := decimal.Zero
	for _, f := range m.open {
		total = total.Add(f)
	}
	return total
}

// checkDayReset rolls the daily approval counter at midnight. Must be
// called with the lock held. Open positions survive the rollover.
func (m *Manager) checkDayReset() {
	today := m.now().YearDay()
	if m.lastResetDay != today {
		if m.lastResetDay != 0 {
			log.Info().Msg("📅 Daily approval counter reset")
		}
		m.approvedToday = 0
		m.lastResetDay = today
	}
}
