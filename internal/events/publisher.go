// Package events delivers completed-transaction notifications to the
// consumers outside the core: the front-end display and the receipt printer.
// The ledger never depends on a consumer being present; publishing is
// best-effort.
package events

import (
	"context"

	"github.com/torkelsen/cardledger/internal/model"
)

// Publisher receives every completed transaction after the ledger append
type Publisher interface {
	PublishTransaction(ctx context.Context, tx model.Transaction) error
}

// ChannelPublisher delivers transactions on an in-process channel. A slow or
// absent consumer never blocks an operation: when the buffer is full the
// event is dropped.
type ChannelPublisher struct {
	ch chan model.Transaction
}

// NewChannelPublisher creates a ChannelPublisher with the given buffer size
func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelPublisher{ch: make(chan model.Transaction, buffer)}
}

// Events returns the receive side of the channel
func (p *ChannelPublisher) Events() <-chan model.Transaction {
	return p.ch
}

// PublishTransaction delivers the transaction or drops it when the buffer is
// full
func (p *ChannelPublisher) PublishTransaction(_ context.Context, tx model.Transaction) error {
	select {
	case p.ch <- tx:
	default:
	}
	return nil
}
