package bus

import "time"

// Event is a change published on the bus. Kind is dot-namespaced, e.g.
// "inbound.sms" or "conversation.receipt_updated".
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
