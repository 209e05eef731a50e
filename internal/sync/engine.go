// Package sync writes inbound messages, reactions and receipts into the
// conversation stores. Producers either call Engine.Apply directly, as
// convctl import does, or publish *Inbound payloads under the "inbound."
// namespace once the engine is started. Every stored message is announced
// as EventMessageInserted on the bus.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/threadstore/internal/bus"
	"github.com/matheus3301/threadstore/internal/conversation"
	"github.com/matheus3301/threadstore/internal/message"
	"github.com/matheus3301/threadstore/internal/store"
	"go.uber.org/zap"
)

// Inbound event kinds the engine consumes.
const (
	KindSMS             = "inbound.sms"
	KindMMS             = "inbound.mms"
	KindReaction        = "inbound.reaction"
	KindDeliveryReceipt = "inbound.delivery_receipt"
	KindReadReceipt     = "inbound.read_receipt"
)

// EventMessageInserted is published after a message row was written.
const EventMessageInserted = "conversation.message_inserted"

// MMSMessage is a multimedia message with its parts.
type MMSMessage struct {
	Row   *store.MMSRow    `json:"row"`
	Parts []*store.PartRow `json:"parts,omitempty"`
}

// Receipt names the messages a delivery or read receipt applies to.
type Receipt struct {
	SyncID    message.SyncID `json:"sync_id"`
	Timestamp int64          `json:"timestamp"`
}

// Inbound is one change arriving from outside, as read by Apply. Exactly one
// payload is set, matching Kind.
type Inbound struct {
	Kind     string             `json:"kind"`
	SMS      *store.SMSRow      `json:"sms,omitempty"`
	MMS      *MMSMessage        `json:"mms,omitempty"`
	Reaction *store.ReactionRow `json:"reaction,omitempty"`
	Receipt  *Receipt           `json:"receipt,omitempty"`
}

// Engine writes inbound messages, reactions and receipts into the stores.
// It subscribes to "inbound." events on the bus and processes them.
type Engine struct {
	sms       *store.SMSStore
	mms       *store.MMSStore
	reactions *store.ReactionStore
	conv      *conversation.Store
	bus       *bus.Bus
	logger    *zap.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewEngine creates a new ingest engine.
func NewEngine(db *store.DB, conv *conversation.Store, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sms:       store.NewSMSStore(db),
		mms:       store.NewMMSStore(db),
		reactions: store.NewReactionStore(db),
		conv:      conv,
		bus:       b,
		logger:    logger,
	}
}

// Start subscribes to inbound events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("inbound.", 256)
	e.done = make(chan struct{})

	go func() {
		defer close(e.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event in flight, if any, to be
// applied.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.done != nil {
		<-e.done
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	in, ok := evt.Payload.(*Inbound)
	if !ok {
		e.logger.Warn("dropping inbound event with unexpected payload", zap.String("kind", evt.Kind))
		return
	}
	if in.Kind == "" {
		in.Kind = evt.Kind
	}
	if err := e.Apply(in); err != nil {
		e.logger.Error("failed to apply inbound event", zap.Error(err), zap.String("kind", in.Kind))
	}
}

// Apply writes one inbound change.
func (e *Engine) Apply(in *Inbound) error {
	switch in.Kind {
	case KindSMS:
		if in.SMS == nil {
			return fmt.Errorf("%s: missing payload", in.Kind)
		}
		return e.IngestSMS(in.SMS)
	case KindMMS:
		if in.MMS == nil || in.MMS.Row == nil {
			return fmt.Errorf("%s: missing payload", in.Kind)
		}
		return e.IngestMMS(in.MMS)
	case KindReaction:
		if in.Reaction == nil {
			return fmt.Errorf("%s: missing payload", in.Kind)
		}
		if _, err := e.reactions.Add(in.Reaction); err != nil {
			return err
		}
		return nil
	case KindDeliveryReceipt, KindReadReceipt:
		if in.Receipt == nil {
			return fmt.Errorf("%s: missing payload", in.Kind)
		}
		return e.ApplyReceipt(in.Kind, in.Receipt)
	}
	return fmt.Errorf("unknown inbound kind %q", in.Kind)
}

// IngestSMS stores a short message.
func (e *Engine) IngestSMS(row *store.SMSRow) error {
	id, err := e.sms.Insert(row)
	if err != nil {
		return err
	}
	e.publishInserted(message.ShortMessage, row.ThreadID, id, row.DateSent)
	return nil
}

// IngestMMS stores a multimedia message and its parts atomically.
func (e *Engine) IngestMMS(m *MMSMessage) error {
	id, err := e.mms.InsertWithParts(m.Row, m.Parts)
	if err != nil {
		return err
	}
	e.publishInserted(message.MultimediaMessage, m.Row.ThreadID, id, m.Row.DateSent)
	return nil
}

// ApplyReceipt increments the receipt counters named by kind.
func (e *Engine) ApplyReceipt(kind string, r *Receipt) error {
	var (
		upd *conversation.ReceiptUpdate
		err error
	)
	if kind == KindReadReceipt {
		upd, err = e.conv.IncrementReadReceiptCount(r.SyncID, r.Timestamp)
	} else {
		upd, err = e.conv.IncrementDeliveryReceiptCount(r.SyncID, r.Timestamp)
	}
	if err != nil {
		return err
	}
	if upd.SMSUpdated+upd.MMSUpdated == 0 {
		e.logger.Debug("receipt matched no messages",
			zap.String("address", r.SyncID.Address), zap.Int64("sync_timestamp", r.SyncID.Timestamp))
	}
	return nil
}

func (e *Engine) publishInserted(t message.Transport, threadID, id, sent int64) {
	e.bus.Publish(bus.Event{
		Kind:      EventMessageInserted,
		Timestamp: time.Now(),
		Payload: map[string]any{
			"thread_id":     threadID,
			"unique_row_id": message.UniqueRowID(t, id, sent),
		},
	})
}
