package broker

import (
	"errors"
	"fmt"
)

// ErrResponseShape marks a broker reply that parsed but did not carry what
// the operation needs.
var ErrResponseShape = errors.New("unexpected broker response shape")

// ShapeError wraps ErrResponseShape with the operation that got it.
func ShapeError(op, detail string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrResponseShape, detail)
}

type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindInvalidRequest
	KindNotFound
	KindRejected
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindInvalidRequest:
		return "invalid request"
	case KindNotFound:
		return "not found"
	case KindRejected:
		return "rejected"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// RequestError is a failed broker call.
type RequestError struct {
	Op     string
	Kind   ErrorKind
	Status int
	Msg    string
	Err    error
}

func (e *RequestError) Error() string {
	s := fmt.Sprintf("broker %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		s += fmt.Sprintf(" (http %d)", e.Status)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *RequestError) Unwrap() error { return e.Err }

func isKind(err error, k ErrorKind) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == k
}

// IsInvalidRequest reports a request the broker refused as malformed for
// the current state, such as cancelling an order that already filled.
func IsInvalidRequest(err error) bool { return isKind(err, KindInvalidRequest) }

// IsNotFound reports that the ticket no longer exists at the broker.
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }
