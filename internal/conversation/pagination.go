package conversation

import "github.com/matheus3301/threadstore/internal/store"

// lastOutgoingScanLimit bounds how many rows LastOutgoingTimestamp examines.
const lastOutgoingScanLimit = 20

// Conversation returns the rows of a thread by sent time, newest first when
// reverse is set. offset and limit apply only when at least one is nonzero.
func (s *Store) Conversation(threadID int64, reverse bool, offset, limit int) (*Reader, error) {
	order := Ascending
	if reverse {
		order = Descending
	}
	return s.read(Query{
		Selection: NewSelection().Thread(threadID),
		Order:     order,
		Page:      Page{Offset: offset, Limit: limit},
	}, true)
}

// ConversationPage returns a thread's rows sent at or before fromTime, newest
// first. When toTime is not -1 the page is the exact range (toTime, fromTime]
// and limit is ignored; otherwise limit caps the page, so a zero limit
// yields an empty page.
func (s *Store) ConversationPage(threadID, fromTime, toTime int64, limit int) (*Reader, error) {
	sel := NewSelection().Thread(threadID).SentAtOrBefore(fromTime)
	var page Page
	if toTime != -1 {
		sel.SentAfter(toTime)
	} else {
		page = Page{Limit: limit, Always: true}
	}
	return s.read(Query{Selection: sel, Order: Descending, Page: page}, true)
}

// HasNextPage reports whether the thread has rows sent before toTime.
func (s *Store) HasNextPage(threadID, toTime int64) (bool, error) {
	return s.exists(NewSelection().Thread(threadID).SentBefore(toTime))
}

// HasPreviousPage reports whether the thread has rows sent after fromTime.
func (s *Store) HasPreviousPage(threadID, fromTime int64) (bool, error) {
	return s.exists(NewSelection().Thread(threadID).SentAfter(fromTime))
}

// PreviousPage returns the sent time of the limit-th row after fromTime in
// ascending order, or of the last such row when fewer exist. It returns -1
// when no row qualifies.
func (s *Store) PreviousPage(threadID, fromTime int64, limit int) (int64, error) {
	if limit <= 0 {
		return -1, nil
	}
	r, err := s.read(Query{
		Selection: NewSelection().Thread(threadID).SentAfter(fromTime),
		Order:     Ascending,
		Page:      Page{Limit: limit},
	}, false)
	if err != nil {
		return -1, err
	}
	defer func() { _ = r.Close() }()

	sent := int64(-1)
	for {
		rec, err := r.Next()
		if err != nil {
			return -1, err
		}
		if rec == nil {
			return sent, nil
		}
		sent = rec.DateSent
	}
}

// MessagePositionInConversation returns the zero-based position of the first
// row sent at sent whose address is address, scanning in the given order.
// When address is the local user the address check is skipped. It returns
// -1 when nothing matches.
func (s *Store) MessagePositionInConversation(threadID, sent int64, address string, reverse bool) (int, error) {
	order := Ascending
	if reverse {
		order = Descending
	}
	return s.position(threadID, sent, address, order)
}

// QuotedMessagePosition is MessagePositionInConversation for a quote
// reference, always scanning newest first.
func (s *Store) QuotedMessagePosition(threadID, quoteID int64, address string) (int, error) {
	return s.position(threadID, quoteID, address, Descending)
}

func (s *Store) position(threadID, sent int64, address string, order Order) (int, error) {
	rows, err := s.relation.Query(Query{
		Columns:   []string{store.ColDateSent, store.ColAddress},
		Selection: NewSelection().Thread(threadID),
		Order:     order,
	})
	if err != nil {
		return -1, err
	}
	defer func() { _ = rows.Close() }()

	own := s.identity.IsLocal(address)
	for pos := 0; rows.Next(); pos++ {
		var (
			ts   int64
			addr *string
		)
		if err := rows.Scan(&ts, &addr); err != nil {
			return -1, err
		}
		if ts != sent {
			continue
		}
		if own || (addr != nil && *addr == address) {
			return pos, nil
		}
	}
	if err := rows.Err(); err != nil {
		return -1, err
	}
	return -1, nil
}

// LastOutgoingTimestamp returns the sent time of the newest outgoing row in
// the thread, looking at no more than the newest twenty rows. It returns -1
// when none of them is outgoing.
func (s *Store) LastOutgoingTimestamp(threadID int64) (int64, error) {
	r, err := s.read(Query{
		Selection: NewSelection().Thread(threadID),
		Order:     Descending,
		Page:      Page{Limit: lastOutgoingScanLimit},
	}, false)
	if err != nil {
		return -1, err
	}
	defer func() { _ = r.Close() }()

	for {
		ok, err := r.advance()
		if err != nil {
			return -1, err
		}
		if !ok {
			break
		}
		outgoing, sent, err := r.TimestampAndDirection()
		if err != nil {
			return -1, err
		}
		if outgoing {
			return sent, nil
		}
	}
	s.logger.Debug("no outgoing message within scan limit", zapThread(threadID))
	return -1, nil
}

// ConversationSnippet returns the thread newest first.
func (s *Store) ConversationSnippet(threadID int64) (*Reader, error) {
	return s.read(Query{
		Selection: NewSelection().Thread(threadID),
		Order:     Descending,
	}, false)
}

// LastMessageID returns the id of the newest row in the thread, or -1.
func (s *Store) LastMessageID(threadID int64) (int64, error) {
	rec, err := s.first(Query{
		Selection: NewSelection().Thread(threadID),
		Order:     Descending,
		Page:      Page{Limit: 1},
	}, false)
	if err != nil || rec == nil {
		return -1, err
	}
	return rec.ID, nil
}

// LastMessageTimestamp returns the sent time of the newest row in the
// thread, or -1.
func (s *Store) LastMessageTimestamp(threadID int64) (int64, error) {
	rows, err := s.relation.Query(Query{
		Columns:   []string{store.ColDateSent},
		Selection: NewSelection().Thread(threadID),
		Order:     Descending,
		Page:      Page{Limit: 1},
	})
	if err != nil {
		return -1, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return -1, rows.Err()
	}
	var ts int64
	if err := rows.Scan(&ts); err != nil {
		return -1, err
	}
	return ts, nil
}

// Unread returns every unread or unnotified row across threads, oldest first.
func (s *Store) Unread() (*Reader, error) {
	return s.read(Query{
		Selection: NewSelection().Unread(),
		Order:     Ascending,
	}, true)
}

// UnreadCount returns the number of rows in the thread neither read nor
// notified.
func (s *Store) UnreadCount(threadID int64) (int, error) {
	rows, err := s.relation.Query(Query{
		Columns:   []string{store.ColID},
		Selection: NewSelection().Thread(threadID).NotRead(),
	})
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

// ConversationCount returns the number of messages in the thread across
// both stores.
func (s *Store) ConversationCount(threadID int64) (int64, error) {
	smsCount, err := s.sms.MessageCountForThread(threadID)
	if err != nil {
		return 0, err
	}
	mmsCount, err := s.mms.MessageCountForThread(threadID)
	if err != nil {
		return 0, err
	}
	return smsCount + mmsCount, nil
}
