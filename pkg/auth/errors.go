package auth

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	CodeTransport  = "auth.transport"
	CodeRejected   = "auth.rejected"
	CodeProtocol   = "auth.protocol"
	CodeValidation = "form.validation"
)

// ValidationError is raised at the form boundary before any request is made.
// Message is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Code() string { return CodeValidation }

// TransportError reports an unreachable identity server (StatusCode 0) or a
// request it refused. Message carries the server's own explanation, if any.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: identity server returned status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Code() string {
	if e.StatusCode != 0 {
		return CodeRejected
	}
	return CodeTransport
}

type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed identity response: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Code() string { return CodeProtocol }

// UserMessage turns an auth failure into text fit for a prompt. Validation
// messages and server refusals pass through; everything else is generic.
func UserMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var terr *TransportError
	if errors.As(err, &terr) && terr.StatusCode != 0 {
		if terr.Message != "" {
			return terr.Message
		}
		return "Authentication failed. Please check your details."
	}
	return "Could not reach the sign-in service. Please try again."
}
