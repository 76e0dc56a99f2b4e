package bulk

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cardrail/cardrail/card"
	"github.com/cardrail/cardrail/logger"
)

// PassBuilder creates a wallet pass for a card via the external provider
type PassBuilder interface {
	BuildPass(ctx context.Context, c *card.Card) error
}

// WalletKind drains wallet sync jobs. Wallet jobs never expire: a stuck job
// is always resumed on a later tick, because the pass provider is slow and
// abandoning half-synced companies would strand them.
type WalletKind struct {
	cards     *card.Store
	builder   PassBuilder
	batchSize int
	log       *zap.SugaredLogger
}

// NewWalletKind creates the wallet sync job kind
func NewWalletKind(cards *card.Store, builder PassBuilder, batchSize int, log *zap.SugaredLogger) *WalletKind {
	return &WalletKind{
		cards:     cards,
		builder:   builder,
		batchSize: batchSize,
		log:       log,
	}
}

func (k *WalletKind) Name() KindName {
	return KindWalletSync
}

func (k *WalletKind) BatchSize() int {
	return k.batchSize
}

func (k *WalletKind) ExpireAfter() time.Duration {
	return 0
}

// ProcessItem builds a wallet pass for one card. Every business failure is
// contained to the item with a human-readable reason; the job keeps
// draining regardless.
func (k *WalletKind) ProcessItem(ctx context.Context, item *Item) (Outcome, error) {
	c, err := k.cards.Get(item.CardID)
	if err != nil {
		// The card may have been deleted between enqueue and processing
		return Outcome{Status: ItemStatusFailed, Reason: "Card not found"}, nil
	}

	if c.IsSynced() {
		return Outcome{Status: ItemStatusFailed, Reason: "Already synced"}, nil
	}

	if elig := c.SyncEligibility(); !elig.Eligible {
		return Outcome{
			Status: ItemStatusFailed,
			Reason: "Not eligible: missing " + strings.Join(elig.MissingFields, ", "),
		}, nil
	}

	// Best effort: the flag is advisory for UI and a second worker guard,
	// not a correctness requirement
	if _, err := k.cards.SetSyncing(c.ID, true); err != nil {
		k.log.Warnw("failed to mark card syncing",
			logger.FieldCardID, c.ID,
			logger.FieldError, err,
		)
	}
	defer func() {
		if _, err := k.cards.SetSyncing(c.ID, false); err != nil {
			k.log.Warnw("failed to clear card syncing flag",
				logger.FieldCardID, c.ID,
				logger.FieldError, err,
			)
		}
	}()

	if err := k.builder.BuildPass(ctx, c); err != nil {
		if uerr := k.cards.UpdateWalletStatus(c.ID, card.WalletStatusFailed); uerr != nil {
			k.log.Errorw("failed to record wallet failure",
				logger.FieldCardID, c.ID,
				logger.FieldError, uerr,
			)
		}
		// The provider's message is surfaced verbatim as the item reason
		return Outcome{Status: ItemStatusFailed, Reason: err.Error()}, nil
	}

	// The pass now exists at the provider, so the item is done even if the
	// local status write fails. Surfacing an error here would leave the item
	// pending and a later tick would build the same pass again.
	if err := k.cards.UpdateWalletStatus(c.ID, card.WalletStatusSynced); err != nil {
		k.log.Errorw("failed to record wallet sync",
			logger.FieldCardID, c.ID,
			logger.FieldError, err,
		)
	}
	return Outcome{Status: ItemStatusDone}, nil
}
