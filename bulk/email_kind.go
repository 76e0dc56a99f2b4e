package bulk

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cardrail/cardrail/card"
)

// MailSender delivers a card's share link to its holder
type MailSender interface {
	SendCardEmail(ctx context.Context, c *card.Card) error
}

// EmailKind drains card email jobs. Unlike wallet jobs, email jobs expire:
// a job whose heartbeat goes stale past expireAfter is terminally failed,
// since re-sending a partially delivered campaign hours later surprises
// recipients more than an explicit failure does.
type EmailKind struct {
	cards       *card.Store
	sender      MailSender
	batchSize   int
	expireAfter time.Duration
	log         *zap.SugaredLogger
}

// NewEmailKind creates the card email job kind
func NewEmailKind(cards *card.Store, sender MailSender, batchSize int, expireAfter time.Duration, log *zap.SugaredLogger) *EmailKind {
	return &EmailKind{
		cards:       cards,
		sender:      sender,
		batchSize:   batchSize,
		expireAfter: expireAfter,
		log:         log,
	}
}

func (k *EmailKind) Name() KindName {
	return KindEmail
}

func (k *EmailKind) BatchSize() int {
	return k.batchSize
}

func (k *EmailKind) ExpireAfter() time.Duration {
	return k.expireAfter
}

// ProcessItem emails one card's share link to its holder
func (k *EmailKind) ProcessItem(ctx context.Context, item *Item) (Outcome, error) {
	c, err := k.cards.Get(item.CardID)
	if err != nil {
		return Outcome{Status: ItemStatusFailed, Reason: "Card not found"}, nil
	}

	if c.Email == "" {
		return Outcome{Status: ItemStatusFailed, Reason: "Card has no email address"}, nil
	}

	if err := k.sender.SendCardEmail(ctx, c); err != nil {
		return Outcome{Status: ItemStatusFailed, Reason: err.Error()}, nil
	}
	return Outcome{Status: ItemStatusDone}, nil
}
