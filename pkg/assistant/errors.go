package assistant

import (
	"fmt"

	"github.com/pkg/errors"
)

// Stable codes attached to logged failures. They are never shown to users.
const (
	CodeTransport = "assistant.transport"
	CodeStatus    = "assistant.status"
	CodeProtocol  = "assistant.protocol"
	CodeUnknown   = "unknown"
)

// Coder is implemented by errors that carry a stable internal code.
type Coder interface {
	Code() string
}

// TransportError reports that an operation never got a successful response:
// the backend was unreachable or answered with a non-2xx status.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Code() string {
	if e.StatusCode != 0 {
		return CodeStatus
	}
	return CodeTransport
}

// ProtocolError reports a response body that does not decode into the
// expected shape.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Code() string { return CodeProtocol }

// ErrorCode returns the stable code of the first Coder in err's chain.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeUnknown
}
