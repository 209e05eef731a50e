// Package message defines the unified message record returned by the
// conversation store, independent of which underlying store produced it.
package message

import "fmt"

// Transport identifies the store a message row originates from.
type Transport int

const (
	TransportUnknown Transport = iota
	ShortMessage
	MultimediaMessage
)

// Tags written into the merged relation's transport column.
const (
	SMSTag = "sms"
	MMSTag = "mms"
)

// Tag returns the value stored in the transport column for t.
func (t Transport) Tag() string {
	switch t {
	case ShortMessage:
		return SMSTag
	case MultimediaMessage:
		return MMSTag
	}
	return ""
}

func (t Transport) String() string {
	switch t {
	case ShortMessage:
		return "ShortMessage"
	case MultimediaMessage:
		return "MultimediaMessage"
	}
	return "Unknown"
}

// ParseTransport maps a transport column value back to a Transport.
func ParseTransport(tag string) (Transport, error) {
	switch tag {
	case SMSTag:
		return ShortMessage, nil
	case MMSTag:
		return MultimediaMessage, nil
	}
	return TransportUnknown, &DecodeError{Column: "transport_type", Reason: fmt.Sprintf("bad transport tag %q", tag)}
}

// UniqueRowID builds the key that identifies a row across both stores.
func UniqueRowID(t Transport, id, dateSent int64) string {
	prefix := "SMS"
	if t == MultimediaMessage {
		prefix = "MMS"
	}
	return fmt.Sprintf("%s::%d::%d", prefix, id, dateSent)
}

// SyncID is the (timestamp, author) pair that names a logical message
// across stores for receipt matching.
type SyncID struct {
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
}

// Attachment describes one part of a multimedia message.
type Attachment struct {
	RowID              int64
	UniqueID           int64
	MessageID          int64
	Size               int64
	FileName           string
	DataPath           string
	Thumbnail          string
	ContentType        string
	ContentLocation    string
	FastPreflightID    string
	VoiceNote          bool
	Width              int
	Height             int
	Quote              bool
	ContentDisposition string
	Name               string
	TransferState      int
	Caption            string
	StickerPackID      string
	StickerPackKey     string
	StickerID          int
}

// Reaction is one emoji reaction attached to a message.
type Reaction struct {
	RowID        int64
	MessageID    int64
	IsMMS        bool
	Author       string
	Emoji        string
	ServerID     string
	Count        int64
	SortID       int64
	DateSent     int64
	DateReceived int64
}

// Quote is a back-reference from a message to the message it replies to.
// ID is the quoted message's sent timestamp.
type Quote struct {
	ID          int64
	Author      string
	Body        string
	Missing     bool
	Attachments []Attachment
}

// SMSFields holds columns only the short-message store carries.
type SMSFields struct {
	Type    int64
	Status  int64
	Subject string
}

// MMSFields holds columns only the multimedia-message store carries.
type MMSFields struct {
	MessageBox      int64
	MessageType     int64
	PartCount       int
	ContentLocation string
	TransactionID   string
	MessageSize     int64
	Expiry          int64
	Status          int64
	NetworkFailures string
	SharedContacts  string
	LinkPreviews    string
}

// Record is the unified view of one message row. Exactly one of SMS and MMS
// is set, matching Transport.
type Record struct {
	ID           int64
	Transport    Transport
	UniqueRowID  string
	ThreadID     int64
	DateSent     int64
	DateReceived int64

	Address         string
	AddressDeviceID int
	Body            string
	IsOutgoing      bool

	Read            bool
	Notified        bool
	Unidentified    bool
	HasMention      bool
	ReactionsUnread bool

	DeliveryReceiptCount int
	ReadReceiptCount     int

	SubscriptionID       int
	ExpiresIn            int64
	ExpireStarted        int64
	MismatchedIdentities string

	Attachments []Attachment
	Reactions   []Reaction
	Quote       *Quote

	SMS *SMSFields
	MMS *MMSFields
}

// Timestamp is the time the message is ordered by.
func (r *Record) Timestamp() int64 {
	return r.DateSent
}

// Type returns the raw type/box value the outgoing flag was derived from.
func (r *Record) Type() int64 {
	switch {
	case r.SMS != nil:
		return r.SMS.Type
	case r.MMS != nil:
		return r.MMS.MessageBox
	}
	return 0
}
