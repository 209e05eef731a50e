package message

import "slices"

// Message type/box bit layout shared by both stores. The low five bits hold
// the base type; higher bits are flags.
const (
	BaseTypeMask int64 = 0x1F

	IncomingCallType int64 = 1
	OutgoingCallType int64 = 2
	MissedCallType   int64 = 3

	BaseInboxType                  int64 = 20
	BaseOutboxType                 int64 = 21
	BaseSendingType                int64 = 22
	BaseSentType                   int64 = 23
	BaseSentFailedType             int64 = 24
	BasePendingSecureSMSFallback   int64 = 25
	BasePendingInsecureSMSFallback int64 = 26

	SecureMessageBit int64 = 0x800000
	PushMessageBit   int64 = 0x200000
)

var outgoingTypes = []int64{
	BaseOutboxType,
	BaseSentType,
	BaseSendingType,
	BaseSentFailedType,
	BasePendingSecureSMSFallback,
	BasePendingInsecureSMSFallback,
	OutgoingCallType,
}

// IsOutgoingType reports whether a type/box value denotes a message sent by
// the local user.
func IsOutgoingType(t int64) bool {
	return slices.Contains(outgoingTypes, t&BaseTypeMask)
}
