package store

import (
	"database/sql"
	"fmt"

	"github.com/matheus3301/threadstore/internal/message"
)

// MMSStore owns the multimedia-message table and its attachment parts.
type MMSStore struct {
	db *DB
}

// NewMMSStore returns the multimedia-message store on db.
func NewMMSStore(db *DB) *MMSStore {
	return &MMSStore{db: db}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Insert writes a multimedia message and returns its row id.
func (s *MMSStore) Insert(m *MMSRow) (int64, error) {
	return insertMMS(s.db, m)
}

// InsertWithParts writes a multimedia message and its parts in one
// transaction and returns the message row id. Each part's MessageID is set
// to the new id. Nothing is written when any insert fails.
func (s *MMSStore) InsertWithParts(m *MMSRow, parts []*PartRow) (int64, error) {
	var id int64
	err := s.db.withTx(func(tx *sql.Tx) error {
		var err error
		if id, err = insertMMS(tx, m); err != nil {
			return err
		}
		for _, p := range parts {
			p.MessageID = id
			if _, err := insertPart(tx, p); err != nil {
				return fmt.Errorf("part of mms %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertMMS(db execer, m *MMSRow) (int64, error) {
	deviceID := m.AddressDeviceID
	if deviceID == 0 {
		deviceID = 1
	}
	quoteAuthor := sql.NullString{String: m.QuoteAuthor, Valid: m.QuoteAuthor != ""}
	res, err := db.Exec(`
		INSERT INTO mms (thread_id, address, address_device_id, date, date_received, msg_box, m_type, body,
			part_count, ct_l, tr_id, m_size, exp, st, read, notified, unidentified, has_mention,
			subscription_id, expires_in, expire_started, network_failures, shared_contacts, previews,
			quote_id, quote_author, quote_body, quote_missing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ThreadID, m.Address, deviceID, m.DateSent, m.DateReceived, m.MessageBox, m.MessageType, m.Body,
		m.PartCount, m.ContentLocation, m.TransactionID, m.MessageSize, m.Expiry, m.Status,
		m.Read, m.Notified, m.Unidentified, m.HasMention,
		m.SubscriptionID, m.ExpiresIn, m.ExpireStarted, m.NetworkFailures, m.SharedContacts, m.LinkPreviews,
		m.QuoteID, quoteAuthor, m.QuoteBody, m.QuoteMissing)
	if err != nil {
		return 0, fmt.Errorf("insert mms: %w", err)
	}
	return res.LastInsertId()
}

// Delete removes a multimedia message with its parts and reactions.
func (s *MMSStore) Delete(id int64) error {
	return s.db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM reaction WHERE message_id = ? AND is_mms = 1`, id); err != nil {
			return fmt.Errorf("delete mms reactions: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM mms WHERE _id = ?`, id); err != nil {
			return fmt.Errorf("delete mms: %w", err)
		}
		return nil
	})
}

// MessageCountForThread returns the number of multimedia messages in a thread.
func (s *MMSStore) MessageCountForThread(threadID int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM mms WHERE thread_id = ?`, threadID).Scan(&count)
	return count, err
}

// IncrementReceiptCount bumps receipt counters of the outgoing multimedia
// messages matching id and records timestamp as the latest receipt time.
// It returns the number of rows updated; zero is not an error.
func (s *MMSStore) IncrementReceiptCount(id message.SyncID, timestamp int64, delivery, read bool) (int64, error) {
	var updated int64
	err := s.db.withTx(func(tx *sql.Tx) error {
		ids, err := matchOutgoing(tx, `SELECT _id, address, msg_box FROM mms WHERE date = ?`, id)
		if err != nil {
			return fmt.Errorf("match mms receipts: %w", err)
		}
		for _, rowID := range ids {
			if _, err := tx.Exec(`
				UPDATE mms SET
					delivery_receipt_count = delivery_receipt_count + ?,
					read_receipt_count = read_receipt_count + ?,
					receipt_timestamp = MAX(receipt_timestamp, ?)
				WHERE _id = ?`, boolInt(delivery), boolInt(read), timestamp, rowID); err != nil {
				return fmt.Errorf("update mms receipt %d: %w", rowID, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// ReceiptTimestamp returns the latest receipt time recorded for a message,
// or 0 when the message does not exist.
func (s *MMSStore) ReceiptTimestamp(id int64) (int64, error) {
	var ts int64
	err := s.db.QueryRow(`SELECT receipt_timestamp FROM mms WHERE _id = ?`, id).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return ts, err
}

// InsertPart attaches a part to a multimedia message and returns its row id.
func (s *MMSStore) InsertPart(p *PartRow) (int64, error) {
	return insertPart(s.db, p)
}

func insertPart(db execer, p *PartRow) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO part (mid, unique_id, ct, name, cd, cl, pending_push, _data, data_size, file_name,
			thumbnail, fast_preflight_id, voice_note, width, height, quote, caption,
			sticker_pack_id, sticker_pack_key, sticker_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.MessageID, p.UniqueID, p.ContentType, p.Name, p.ContentDisposition, p.ContentLocation,
		p.TransferState, p.DataPath, p.Size, p.FileName, p.Thumbnail, p.FastPreflightID,
		p.VoiceNote, p.Width, p.Height, p.Quote, p.Caption,
		p.StickerPackID, p.StickerPackKey, p.StickerID)
	if err != nil {
		return 0, fmt.Errorf("insert part: %w", err)
	}
	return res.LastInsertId()
}
