package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/threadstore/internal/message"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + indexes)", result.Version)
	}

	version, dirty, err := db.SchemaVersion()
	if err != nil {
		t.Fatal(err)
	}
	if version != 2 || dirty {
		t.Errorf("SchemaVersion() = %d, dirty=%v; want 2, false", version, dirty)
	}
}

// TestMigrateSchemaHasRequiredColumns verifies the migration creates every
// column the merged relation projects from each store.
func TestMigrateSchemaHasRequiredColumns(t *testing.T) {
	db := testDB(t)

	requiredOps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"insert sms", "INSERT INTO sms (thread_id, address, date, date_sent, type, body, reactions_unread, has_mention) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", []any{1, "05a", 10, 9, message.BaseInboxType, "hi", 0, 0}},
		{"insert mms", "INSERT INTO mms (thread_id, address, date, date_received, msg_box, quote_id, quote_author, previews, receipt_timestamp) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", []any{1, "05a", 9, 10, message.BaseSentType, 0, nil, "[]", 0}},
		{"insert part", "INSERT INTO part (mid, unique_id, ct, quote, sticker_id) SELECT _id, 1, 'image/png', 0, -1 FROM mms LIMIT 1", nil},
		{"insert reaction", "INSERT INTO reaction (message_id, is_mms, author_id, emoji, date_sent, date_received) VALUES (?, ?, ?, ?, ?, ?)", []any{1, 0, "05a", "👍", 1, 2}},
	}

	for _, op := range requiredOps {
		t.Run(op.desc, func(t *testing.T) {
			if _, err := db.Exec(op.query, op.args...); err != nil {
				t.Fatalf("%s failed: %v", op.desc, err)
			}
		})
	}
}

func TestSMSInsertCountDelete(t *testing.T) {
	db := testDB(t)
	sms := NewSMSStore(db)
	reactions := NewReactionStore(db)

	id, err := sms.Insert(&SMSRow{ThreadID: 4, Address: "05bob", DateSent: 100, DateReceived: 101, Type: message.BaseInboxType, Body: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sms.Insert(&SMSRow{ThreadID: 5, Address: "05bob", DateSent: 200, Type: message.BaseInboxType}); err != nil {
		t.Fatal(err)
	}
	if _, err := reactions.Add(&ReactionRow{MessageID: id, Author: "05me", Emoji: "❤️", DateSent: 1}); err != nil {
		t.Fatal(err)
	}

	count, err := sms.MessageCountForThread(4)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	if err := sms.Delete(id); err != nil {
		t.Fatal(err)
	}
	count, _ = sms.MessageCountForThread(4)
	if count != 0 {
		t.Errorf("count after delete = %d, want 0", count)
	}
	var left int
	if err := db.QueryRow(`SELECT COUNT(*) FROM reaction`).Scan(&left); err != nil {
		t.Fatal(err)
	}
	if left != 0 {
		t.Errorf("reactions after delete = %d, want 0", left)
	}
}

func TestMMSDeleteCascadesParts(t *testing.T) {
	db := testDB(t)
	mms := NewMMSStore(db)

	id, err := mms.Insert(&MMSRow{ThreadID: 1, Address: "05bob", DateSent: 100, MessageBox: message.BaseInboxType})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mms.InsertPart(&PartRow{MessageID: id, UniqueID: 1, ContentType: "image/jpeg"}); err != nil {
		t.Fatal(err)
	}
	if err := mms.Delete(id); err != nil {
		t.Fatal(err)
	}
	var parts int
	if err := db.QueryRow(`SELECT COUNT(*) FROM part`).Scan(&parts); err != nil {
		t.Fatal(err)
	}
	if parts != 0 {
		t.Errorf("parts after delete = %d, want 0", parts)
	}
}

func TestMMSInsertWithParts(t *testing.T) {
	db := testDB(t)
	mms := NewMMSStore(db)

	parts := []*PartRow{{UniqueID: 1, ContentType: "image/jpeg"}, {UniqueID: 2, ContentType: "text/plain"}}
	id, err := mms.InsertWithParts(&MMSRow{ThreadID: 1, Address: "05bob", DateSent: 100, MessageBox: message.BaseInboxType}, parts)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range parts {
		if p.MessageID != id {
			t.Errorf("part MessageID = %d, want %d", p.MessageID, id)
		}
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM part WHERE mid = ?`, id).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("parts = %d, want 2", n)
	}
}

func TestMMSInsertWithPartsRollsBack(t *testing.T) {
	db := testDB(t)
	mms := NewMMSStore(db)

	if _, err := db.Exec(`CREATE TRIGGER reject_part BEFORE INSERT ON part WHEN NEW.unique_id = 2
		BEGIN SELECT RAISE(ABORT, 'part rejected'); END`); err != nil {
		t.Fatal(err)
	}

	parts := []*PartRow{{UniqueID: 1, ContentType: "image/jpeg"}, {UniqueID: 2, ContentType: "text/plain"}}
	if _, err := mms.InsertWithParts(&MMSRow{ThreadID: 1, Address: "05bob", DateSent: 100}, parts); err == nil {
		t.Fatal("expected error from rejected part")
	}

	count, err := mms.MessageCountForThread(1)
	if err != nil {
		t.Fatal(err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM part`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if count != 0 || n != 0 {
		t.Errorf("after rollback: mms = %d, parts = %d, want 0/0", count, n)
	}
}

func TestSMSIncrementReceiptCount(t *testing.T) {
	db := testDB(t)
	sms := NewSMSStore(db)

	outgoing, _ := sms.Insert(&SMSRow{ThreadID: 1, Address: "05bob", DateSent: 500, Type: message.BaseSentType | message.SecureMessageBit})
	incoming, _ := sms.Insert(&SMSRow{ThreadID: 1, Address: "05bob", DateSent: 500, Type: message.BaseInboxType})
	otherAddr, _ := sms.Insert(&SMSRow{ThreadID: 2, Address: "05carol", DateSent: 500, Type: message.BaseSentType})
	group, _ := sms.Insert(&SMSRow{ThreadID: 3, Address: "__textsecure_group__!aa", DateSent: 500, Type: message.BaseSentType})

	n, err := sms.IncrementReceiptCount(message.SyncID{Address: "05bob", Timestamp: 500}, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("updated = %d, want 2 (outgoing + group)", n)
	}

	want := map[int64]int{outgoing: 1, incoming: 0, otherAddr: 0, group: 1}
	for id, wantCount := range want {
		var got int
		if err := db.QueryRow(`SELECT delivery_receipt_count FROM sms WHERE _id = ?`, id).Scan(&got); err != nil {
			t.Fatal(err)
		}
		if got != wantCount {
			t.Errorf("row %d delivery count = %d, want %d", id, got, wantCount)
		}
	}

	n, err = sms.IncrementReceiptCount(message.SyncID{Address: "05bob", Timestamp: 999}, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("updated for unknown timestamp = %d, want 0", n)
	}
}

func TestMMSIncrementReceiptCount(t *testing.T) {
	db := testDB(t)
	mms := NewMMSStore(db)

	id, _ := mms.Insert(&MMSRow{ThreadID: 1, Address: "05bob", DateSent: 700, MessageBox: message.BaseSentType})

	n, err := mms.IncrementReceiptCount(message.SyncID{Address: "05bob", Timestamp: 700}, 900, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("updated = %d, want 1", n)
	}
	// An older receipt must not move the recorded time backwards.
	if _, err := mms.IncrementReceiptCount(message.SyncID{Address: "05bob", Timestamp: 700}, 800, false, true); err != nil {
		t.Fatal(err)
	}

	var reads int
	if err := db.QueryRow(`SELECT read_receipt_count FROM mms WHERE _id = ?`, id).Scan(&reads); err != nil {
		t.Fatal(err)
	}
	if reads != 2 {
		t.Errorf("read receipts = %d, want 2", reads)
	}
	ts, err := mms.ReceiptTimestamp(id)
	if err != nil {
		t.Fatal(err)
	}
	if ts != 900 {
		t.Errorf("receipt timestamp = %d, want 900", ts)
	}
}

func TestReactionUpsert(t *testing.T) {
	db := testDB(t)
	reactions := NewReactionStore(db)

	r := &ReactionRow{MessageID: 1, IsMMS: true, Author: "05a", Emoji: "👍", Count: 1, SortID: 1}
	if _, err := reactions.Add(r); err != nil {
		t.Fatal(err)
	}
	r.Count = 3
	if _, err := reactions.Add(r); err != nil {
		t.Fatal(err)
	}

	var rows, count int
	if err := db.QueryRow(`SELECT COUNT(*), MAX(count) FROM reaction`).Scan(&rows, &count); err != nil {
		t.Fatal(err)
	}
	if rows != 1 || count != 3 {
		t.Errorf("rows=%d count=%d, want 1 and 3", rows, count)
	}

	if err := reactions.Remove(1, true, "05a", "👍"); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM reaction`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 0 {
		t.Errorf("rows after remove = %d, want 0", rows)
	}
}

func TestDecoderMissingColumn(t *testing.T) {
	_, err := NewSMSDecoder([]string{ColID, ColDateSent})
	var decErr *message.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("NewSMSDecoder error = %v, want DecodeError", err)
	}
	if decErr.Column == "" {
		t.Error("DecodeError should name the missing column")
	}

	_, err = NewMMSDecoder(smsOnlyColumns(), true)
	if !errors.As(err, &decErr) {
		t.Fatalf("NewMMSDecoder error = %v, want DecodeError", err)
	}
}

func smsOnlyColumns() []string {
	return []string{
		ColID, ColUniqueRowID, ColThreadID, ColDateSent, ColDateReceived, ColAddress,
		ColAddressDeviceID, ColBody, ColRead, ColNotified, ColUnidentified, ColHasMention,
		ColReactionsUnread, ColDeliveryReceiptCount, ColReadReceiptCount, ColMismatchedIdentities,
		ColSubscriptionID, ColExpiresIn, ColExpireStarted, ColReactionJSON,
		ColType, ColStatus, ColSubject,
	}
}

func TestSMSDecoderDecode(t *testing.T) {
	cols := smsOnlyColumns()
	d, err := NewSMSDecoder(cols)
	if err != nil {
		t.Fatal(err)
	}
	vals := []any{
		int64(3), "SMS::3::100", int64(9), int64(100), int64(101), "05bob",
		int64(1), []byte("hello"), int64(1), int64(0), int64(0), int64(0),
		int64(0), int64(2), int64(1), nil,
		int64(-1), int64(0), int64(0),
		`[{"reaction_id":2,"message_id":3,"is_mms":0,"author_id":"05b","emoji":"b","sort_id":2},` +
			`{"reaction_id":1,"message_id":3,"is_mms":0,"author_id":"05a","emoji":"a","sort_id":1}]`,
		message.BaseSentType, int64(-1), nil,
	}
	rec, err := d.Decode(vals)
	if err != nil {
		t.Fatal(err)
	}

	want := &message.Record{
		ID: 3, Transport: message.ShortMessage, UniqueRowID: "SMS::3::100", ThreadID: 9,
		DateSent: 100, DateReceived: 101, Address: "05bob", AddressDeviceID: 1, Body: "hello",
		IsOutgoing: true, Read: true, DeliveryReceiptCount: 2, ReadReceiptCount: 1, SubscriptionID: -1,
		Reactions: []message.Reaction{
			{RowID: 1, MessageID: 3, Author: "05a", Emoji: "a", SortID: 1},
			{RowID: 2, MessageID: 3, Author: "05b", Emoji: "b", SortID: 2},
		},
		SMS: &message.SMSFields{Type: message.BaseSentType, Status: -1},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestSMSDecoderBadValue(t *testing.T) {
	cols := smsOnlyColumns()
	d, err := NewSMSDecoder(cols)
	if err != nil {
		t.Fatal(err)
	}
	vals := make([]any, len(cols))
	vals[0] = "not-a-number"
	_, err = d.Decode(vals)
	var decErr *message.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("Decode error = %v, want DecodeError", err)
	}
	if decErr.Column != ColID {
		t.Errorf("column = %q, want %q", decErr.Column, ColID)
	}
}

func TestParseAttachmentsSkipsNullEntries(t *testing.T) {
	got, err := parseAttachments(`[{"_id":null,"mid":null}]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d attachments, want 0", len(got))
	}

	got, err = parseAttachments(`[{"_id":7,"mid":1,"ct":"image/png","voice_note":1},{"_id":5,"mid":1,"quote":1}]`)
	if err != nil {
		t.Fatal(err)
	}
	want := []message.Attachment{
		{RowID: 5, MessageID: 1, Quote: true},
		{RowID: 7, MessageID: 1, ContentType: "image/png", VoiceNote: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attachments mismatch (-want +got):\n%s", diff)
	}

	if _, err := parseAttachments(`{broken`); err == nil {
		t.Error("expected error for malformed json")
	}
}
