package message

import "fmt"

// DecodeError is returned when a row cannot be turned into a Record: the
// transport tag is unknown, a required column is missing, or a value has the
// wrong shape. It indicates schema drift, not missing data.
type DecodeError struct {
	Column string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode message row"
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %s)", e.Column)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
