package conversation

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/matheus3301/threadstore/internal/message"
	"github.com/matheus3301/threadstore/internal/store"
)

var (
	errNoCurrent = &message.DecodeError{Reason: "reader has no current row"}
)

// Reader is a forward-only cursor over merged-relation rows. Each row is
// decoded by the decoder for its transport. A Reader must be closed.
type Reader struct {
	rows         *sql.Rows
	columns      []string
	resolveQuote bool

	transportIdx int
	vals         []any
	transport    message.Transport
	valid        bool
	closed       bool

	sms *store.SMSDecoder
	mms *store.MMSDecoder
}

func newReader(rows *sql.Rows, resolveQuote bool) (*Reader, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("reader columns: %w", err)
	}
	r := &Reader{
		rows:         rows,
		columns:      cols,
		resolveQuote: resolveQuote,
		transportIdx: -1,
		vals:         make([]any, len(cols)),
	}
	for i, c := range cols {
		if c == store.ColTransport {
			r.transportIdx = i
			break
		}
	}
	if r.transportIdx < 0 {
		_ = rows.Close()
		return nil, &message.DecodeError{Column: store.ColTransport, Reason: "column missing from row"}
	}
	return r, nil
}

// advance moves to the next row and parses its transport tag. It reports
// false once the rows are exhausted.
func (r *Reader) advance() (bool, error) {
	r.valid = false
	if r.closed || !r.rows.Next() {
		if r.closed {
			return false, nil
		}
		return false, r.rows.Err()
	}
	ptrs := make([]any, len(r.vals))
	for i := range r.vals {
		ptrs[i] = &r.vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return false, fmt.Errorf("scan row: %w", err)
	}
	tag, _ := r.vals[r.transportIdx].(string)
	if b, ok := r.vals[r.transportIdx].([]byte); ok {
		tag = string(b)
	}
	t, err := message.ParseTransport(tag)
	if err != nil {
		return false, err
	}
	r.transport = t
	r.valid = true
	return true, nil
}

// Next advances and returns the decoded record, or nil once exhausted.
func (r *Reader) Next() (*message.Record, error) {
	ok, err := r.advance()
	if err != nil || !ok {
		return nil, err
	}
	return r.Current()
}

// Current decodes the row under the cursor without advancing. It fails with
// a DecodeError before the first advance and after exhaustion.
func (r *Reader) Current() (*message.Record, error) {
	if !r.valid {
		return nil, errNoCurrent
	}
	switch r.transport {
	case message.ShortMessage:
		if r.sms == nil {
			d, err := store.NewSMSDecoder(r.columns)
			if err != nil {
				return nil, err
			}
			r.sms = d
		}
		return r.sms.Decode(r.vals)
	case message.MultimediaMessage:
		if r.mms == nil {
			d, err := store.NewMMSDecoder(r.columns, r.resolveQuote)
			if err != nil {
				return nil, err
			}
			r.mms = d
		}
		return r.mms.Decode(r.vals)
	}
	return nil, &message.DecodeError{Column: store.ColTransport, Reason: "unknown transport"}
}

// TimestampAndDirection reports whether the current row is outgoing and when
// it was sent, without decoding the full record.
func (r *Reader) TimestampAndDirection() (outgoing bool, sent int64, err error) {
	if !r.valid {
		return false, 0, errNoCurrent
	}
	typeCol := store.ColType
	if r.transport == message.MultimediaMessage {
		typeCol = store.ColMessageBox
	}
	var typ int64
	var found int
	for i, c := range r.columns {
		switch c {
		case typeCol:
			typ, err = intValue(r.vals[i])
			found++
		case store.ColDateSent:
			sent, err = intValue(r.vals[i])
			found++
		}
		if err != nil {
			return false, 0, &message.DecodeError{Column: c, Err: err}
		}
	}
	if found < 2 {
		return false, 0, &message.DecodeError{Column: typeCol, Reason: "column missing from row"}
	}
	return message.IsOutgoingType(typ), sent, nil
}

// Close releases the result set. Calling it again is a no-op.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.valid = false
	return r.rows.Close()
}

// All drains the reader into a slice and closes it.
func (r *Reader) All() (recs []*message.Record, err error) {
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for {
		rec, err := r.Next()
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return recs, nil
		}
		recs = append(recs, rec)
	}
}

func intValue(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	}
	return 0, errors.New("not an integer")
}
