package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/threadstore/internal/bus"
	"github.com/matheus3301/threadstore/internal/conversation"
	"github.com/matheus3301/threadstore/internal/message"
	"github.com/matheus3301/threadstore/internal/store"
	"go.uber.org/zap"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newEngine(t *testing.T, b *bus.Bus, logger *zap.Logger) (*Engine, *conversation.Store) {
	t.Helper()
	db := testDB(t)
	conv := conversation.New(db, store.NewSMSStore(db), store.NewMMSStore(db), message.NewLocalIdentity("05self"), b, logger)
	return NewEngine(db, conv, b, logger), conv
}

func TestEngineIngestSMS(t *testing.T) {
	b := bus.New()
	e, conv := newEngine(t, b, nil)

	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	row := &store.SMSRow{ThreadID: 3, Address: "05bob", DateSent: 1000, Type: message.BaseInboxType, Body: "hello"}
	if err := e.Apply(&Inbound{Kind: KindSMS, SMS: row}); err != nil {
		t.Fatal(err)
	}

	rec, err := conv.MessageForTimestamp(1000)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Body != "hello" {
		t.Fatalf("got %+v, want stored message with body=hello", rec)
	}

	select {
	case evt := <-ch:
		if evt.Kind != EventMessageInserted {
			t.Errorf("event kind = %q, want %s", evt.Kind, EventMessageInserted)
		}
		payload := evt.Payload.(map[string]any)
		if payload["unique_row_id"] != "SMS::1::1000" {
			t.Errorf("unique_row_id = %v, want SMS::1::1000", payload["unique_row_id"])
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message_inserted event")
	}
}

func TestEngineIngestMMSWithParts(t *testing.T) {
	e, conv := newEngine(t, bus.New(), nil)

	in := &Inbound{Kind: KindMMS, MMS: &MMSMessage{
		Row:   &store.MMSRow{ThreadID: 3, Address: "05bob", DateSent: 2000, MessageBox: message.BaseInboxType},
		Parts: []*store.PartRow{{UniqueID: 1, ContentType: "image/png"}, {UniqueID: 2, ContentType: "audio/aac", VoiceNote: true}},
	}}
	if err := e.Apply(in); err != nil {
		t.Fatal(err)
	}
	if err := e.Apply(&Inbound{Kind: KindReaction, Reaction: &store.ReactionRow{MessageID: 1, IsMMS: true, Author: "05self", Emoji: "😂"}}); err != nil {
		t.Fatal(err)
	}

	rec, err := conv.MessageForTimestamp(2000)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("mms not stored")
	}
	if len(rec.Attachments) != 2 {
		t.Errorf("got %d attachments, want 2", len(rec.Attachments))
	}
	if len(rec.Reactions) != 1 || rec.Reactions[0].Emoji != "😂" {
		t.Errorf("reactions = %+v, want one 😂", rec.Reactions)
	}
}

func TestEngineApplyReceipt(t *testing.T) {
	e, conv := newEngine(t, bus.New(), nil)

	if err := e.IngestSMS(&store.SMSRow{ThreadID: 3, Address: "05bob", DateSent: 3000, Type: message.BaseSentType}); err != nil {
		t.Fatal(err)
	}
	receipt := &Receipt{SyncID: message.SyncID{Address: "05bob", Timestamp: 3000}, Timestamp: 3500}
	if err := e.Apply(&Inbound{Kind: KindDeliveryReceipt, Receipt: receipt}); err != nil {
		t.Fatal(err)
	}
	if err := e.Apply(&Inbound{Kind: KindReadReceipt, Receipt: receipt}); err != nil {
		t.Fatal(err)
	}

	rec, err := conv.MessageForTimestamp(3000)
	if err != nil {
		t.Fatal(err)
	}
	if rec.DeliveryReceiptCount != 1 || rec.ReadReceiptCount != 1 {
		t.Errorf("receipts = %d/%d, want 1/1", rec.DeliveryReceiptCount, rec.ReadReceiptCount)
	}
}

func TestEngineApplyRejectsBadInput(t *testing.T) {
	e, _ := newEngine(t, bus.New(), nil)

	tests := []struct {
		name string
		in   *Inbound
	}{
		{"unknown kind", &Inbound{Kind: "inbound.fax"}},
		{"sms without payload", &Inbound{Kind: KindSMS}},
		{"mms without row", &Inbound{Kind: KindMMS, MMS: &MMSMessage{}}},
		{"receipt without payload", &Inbound{Kind: KindReadReceipt}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.Apply(tt.in); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestEngineBusSubscription verifies the engine processes events from the bus.
func TestEngineBusSubscription(t *testing.T) {
	b := bus.New()
	logger, _ := zap.NewDevelopment()
	e, conv := newEngine(t, b, logger)

	e.Start(context.Background())
	defer e.Stop()

	b.Publish(bus.Event{
		Kind:      KindSMS,
		Timestamp: time.Now(),
		Payload:   &Inbound{SMS: &store.SMSRow{ThreadID: 9, Address: "05bob", DateSent: 5000, Body: "from bus"}},
	})

	// Give the engine time to process.
	time.Sleep(100 * time.Millisecond)

	r, err := conv.Conversation(9, false, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := r.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d messages, want 1 (bus subscription)", len(recs))
	}
	if recs[0].Body != "from bus" {
		t.Errorf("body = %q, want 'from bus'", recs[0].Body)
	}
}

func TestEngineIngestMMSPartFailureWritesNothing(t *testing.T) {
	b := bus.New()
	db := testDB(t)
	conv := conversation.New(db, store.NewSMSStore(db), store.NewMMSStore(db), message.NewLocalIdentity("05self"), b, nil)
	e := NewEngine(db, conv, b, nil)

	if _, err := db.Exec(`CREATE TRIGGER reject_part BEFORE INSERT ON part WHEN NEW.ct = 'bad/type'
		BEGIN SELECT RAISE(ABORT, 'part rejected'); END`); err != nil {
		t.Fatal(err)
	}

	ch, unsub := b.Subscribe("conversation.", 10)
	defer unsub()

	in := &Inbound{Kind: KindMMS, MMS: &MMSMessage{
		Row:   &store.MMSRow{ThreadID: 3, Address: "05bob", DateSent: 2000, MessageBox: message.BaseInboxType},
		Parts: []*store.PartRow{{UniqueID: 1, ContentType: "image/png"}, {UniqueID: 2, ContentType: "bad/type"}},
	}}
	if err := e.Apply(in); err == nil {
		t.Fatal("expected error from rejected part")
	}

	count, err := store.NewMMSStore(db).MessageCountForThread(3)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("mms count = %d, want 0 after failed ingest", count)
	}
	var parts int
	if err := db.QueryRow(`SELECT COUNT(*) FROM part`).Scan(&parts); err != nil {
		t.Fatal(err)
	}
	if parts != 0 {
		t.Errorf("part count = %d, want 0 after failed ingest", parts)
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event %q after failed ingest", evt.Kind)
	default:
	}
}

func TestEngineStopWaitsForConsumer(t *testing.T) {
	e, _ := newEngine(t, bus.New(), nil)

	e.Start(context.Background())
	e.Stop()

	select {
	case <-e.done:
	default:
		t.Fatal("consumer still running after Stop")
	}
	e.Stop()
}
