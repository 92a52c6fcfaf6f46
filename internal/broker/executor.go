package broker

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/artbotdev/art-trader/internal/risk"
)

// Executor bridges the engine's intent stream to the gateway: approved
// intents become orders, rejected ones pass through untouched. It
// implements engine.IntentSink.
type Executor struct {
	gateway Gateway
}

func NewExecutor(gateway Gateway) *Executor {
	return &Executor{gateway: gateway}
}

// RecordIntent submits approved intents. A submission failure is reported
// to the caller for logging but does not undo the risk ledger commit; the
// operator reconciles via the audit store.
func (e *Executor) RecordIntent(ctx context.Context, intent risk.OrderIntent) error {
	if !intent.Approved() {
		return nil
	}

	orderID, err := e.gateway.Submit(ctx, intent)
	if err != nil {
		return err
	}

	log.Info().
		Str("order_id", orderID).
		Str("instrument", intent.Instrument).
		Str("side", string(intent.Side)).
		Msg("📬 Intent executed")
	return nil
}
