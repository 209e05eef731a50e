package store

import "fmt"

// ReactionStore owns the reaction table shared by both message stores.
type ReactionStore struct {
	db *DB
}

// NewReactionStore returns the reaction store on db.
func NewReactionStore(db *DB) *ReactionStore {
	return &ReactionStore{db: db}
}

// Add records a reaction. A second reaction with the same message, author
// and emoji replaces the first.
func (s *ReactionStore) Add(r *ReactionRow) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO reaction (message_id, is_mms, author_id, emoji, server_id, count, sort_id, date_sent, date_received)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id, is_mms, emoji, author_id) DO UPDATE SET
			server_id = excluded.server_id,
			count = excluded.count,
			sort_id = excluded.sort_id,
			date_sent = excluded.date_sent,
			date_received = excluded.date_received`,
		r.MessageID, r.IsMMS, r.Author, r.Emoji, r.ServerID, r.Count, r.SortID, r.DateSent, r.DateReceived)
	if err != nil {
		return 0, fmt.Errorf("add reaction: %w", err)
	}
	return res.LastInsertId()
}

// Remove deletes one author's emoji from a message.
func (s *ReactionStore) Remove(messageID int64, isMMS bool, author, emoji string) error {
	_, err := s.db.Exec(`DELETE FROM reaction WHERE message_id = ? AND is_mms = ? AND author_id = ? AND emoji = ?`,
		messageID, isMMS, author, emoji)
	if err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	return nil
}
