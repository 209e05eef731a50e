package conversation

import (
	"fmt"
	"time"

	"github.com/matheus3301/threadstore/internal/bus"
	"github.com/matheus3301/threadstore/internal/message"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// EventReceiptUpdated is published after a receipt changed at least one row.
const EventReceiptUpdated = "conversation.receipt_updated"

// ReceiptKind says which counter a receipt increments.
type ReceiptKind string

const (
	DeliveryReceipt ReceiptKind = "delivery"
	ReadReceipt     ReceiptKind = "read"
)

// ReceiptUpdate is the payload of EventReceiptUpdated.
type ReceiptUpdate struct {
	SyncID      message.SyncID
	Kind        ReceiptKind
	SMSUpdated  int64
	MMSUpdated  int64
	ReceiptTime int64
}

// PartialWriteError reports that one store applied a receipt and the other
// did not. The applied write is not rolled back.
type PartialWriteError struct {
	Transport message.Transport
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("receipt applied partially: %s store failed: %v", e.Transport, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// IncrementDeliveryReceiptCount records a delivery receipt for the outgoing
// messages named by id in both stores.
func (s *Store) IncrementDeliveryReceiptCount(id message.SyncID, timestamp int64) (*ReceiptUpdate, error) {
	return s.incrementReceipt(id, timestamp, DeliveryReceipt)
}

// IncrementReadReceiptCount records a read receipt for the outgoing messages
// named by id in both stores.
func (s *Store) IncrementReadReceiptCount(id message.SyncID, timestamp int64) (*ReceiptUpdate, error) {
	return s.incrementReceipt(id, timestamp, ReadReceipt)
}

// incrementReceipt attempts both stores independently. Matching no rows is
// not an error.
func (s *Store) incrementReceipt(id message.SyncID, timestamp int64, kind ReceiptKind) (*ReceiptUpdate, error) {
	delivery, read := kind == DeliveryReceipt, kind == ReadReceipt
	upd := &ReceiptUpdate{SyncID: id, Kind: kind, ReceiptTime: timestamp}

	smsN, smsErr := s.sms.IncrementReceiptCount(id, delivery, read)
	mmsN, mmsErr := s.mms.IncrementReceiptCount(id, timestamp, delivery, read)
	if smsErr == nil {
		upd.SMSUpdated = smsN
	}
	if mmsErr == nil {
		upd.MMSUpdated = mmsN
	}

	var err error
	switch {
	case smsErr != nil && mmsErr != nil:
		err = multierr.Combine(
			fmt.Errorf("sms receipt: %w", smsErr),
			fmt.Errorf("mms receipt: %w", mmsErr),
		)
		s.logger.Error("receipt update failed in both stores", zap.Error(err), zap.String("kind", string(kind)))
		return nil, err
	case smsErr != nil:
		err = &PartialWriteError{Transport: message.ShortMessage, Err: smsErr}
	case mmsErr != nil:
		err = &PartialWriteError{Transport: message.MultimediaMessage, Err: mmsErr}
	}
	if err != nil {
		s.logger.Warn("receipt applied to one store only",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("address", id.Address),
			zap.Int64("sync_timestamp", id.Timestamp),
		)
	}

	if upd.SMSUpdated+upd.MMSUpdated > 0 {
		s.bus.Publish(bus.Event{
			Kind:      EventReceiptUpdated,
			Timestamp: time.Now(),
			Payload:   *upd,
		})
	}
	return upd, err
}
