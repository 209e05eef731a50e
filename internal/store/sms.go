package store

import (
	"database/sql"
	"fmt"

	"github.com/matheus3301/threadstore/internal/message"
)

// SMSStore owns the short-message table.
type SMSStore struct {
	db *DB
}

// NewSMSStore returns the short-message store on db.
func NewSMSStore(db *DB) *SMSStore {
	return &SMSStore{db: db}
}

// Insert writes a short message and returns its row id.
func (s *SMSStore) Insert(m *SMSRow) (int64, error) {
	deviceID := m.AddressDeviceID
	if deviceID == 0 {
		deviceID = 1
	}
	res, err := s.db.Exec(`
		INSERT INTO sms (thread_id, address, address_device_id, date, date_sent, type, status, subject, body,
			read, notified, unidentified, has_mention, subscription_id, expires_in, expire_started)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ThreadID, m.Address, deviceID, m.DateReceived, m.DateSent, m.Type, m.Status, m.Subject, m.Body,
		m.Read, m.Notified, m.Unidentified, m.HasMention, m.SubscriptionID, m.ExpiresIn, m.ExpireStarted)
	if err != nil {
		return 0, fmt.Errorf("insert sms: %w", err)
	}
	return res.LastInsertId()
}

// Delete removes a short message and its reactions.
func (s *SMSStore) Delete(id int64) error {
	return s.db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM reaction WHERE message_id = ? AND is_mms = 0`, id); err != nil {
			return fmt.Errorf("delete sms reactions: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM sms WHERE _id = ?`, id); err != nil {
			return fmt.Errorf("delete sms: %w", err)
		}
		return nil
	})
}

// MessageCountForThread returns the number of short messages in a thread.
func (s *SMSStore) MessageCountForThread(threadID int64) (int64, error) {
	var count int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sms WHERE thread_id = ?`, threadID).Scan(&count)
	return count, err
}

// IncrementReceiptCount bumps the delivery and/or read receipt counters of
// the outgoing messages sent at id.Timestamp to id.Address (or to a group).
// It returns the number of rows updated; zero is not an error.
func (s *SMSStore) IncrementReceiptCount(id message.SyncID, delivery, read bool) (int64, error) {
	var updated int64
	err := s.db.withTx(func(tx *sql.Tx) error {
		ids, err := matchOutgoing(tx, `SELECT _id, address, type FROM sms WHERE date_sent = ?`, id)
		if err != nil {
			return fmt.Errorf("match sms receipts: %w", err)
		}
		for _, rowID := range ids {
			if _, err := tx.Exec(`
				UPDATE sms SET
					delivery_receipt_count = delivery_receipt_count + ?,
					read_receipt_count = read_receipt_count + ?
				WHERE _id = ?`, boolInt(delivery), boolInt(read), rowID); err != nil {
				return fmt.Errorf("update sms receipt %d: %w", rowID, err)
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

// matchOutgoing runs query (which must select id, address, type/box for a
// single timestamp argument) and keeps the outgoing rows addressed to the
// sync author or to a group.
func matchOutgoing(tx *sql.Tx, query string, id message.SyncID) ([]int64, error) {
	rows, err := tx.Query(query, id.Timestamp)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var (
			rowID   int64
			address string
			typ     int64
		)
		if err := rows.Scan(&rowID, &address, &typ); err != nil {
			return nil, err
		}
		if !message.IsOutgoingType(typ) {
			continue
		}
		if address == id.Address || message.IsGroupAddress(address) {
			ids = append(ids, rowID)
		}
	}
	return ids, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
