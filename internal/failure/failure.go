package failure

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies how a failure is reported to the user.
type Kind int

const (
	Unclassified Kind = iota
	Communication
	InvalidArgument
	Termination
	Interrupt
)

func (k Kind) String() string {
	switch k {
	case Communication:
		return "communication"
	case InvalidArgument:
		return "invalid argument"
	case Termination:
		return "termination"
	case Interrupt:
		return "interrupt"
	default:
		return "unclassified"
	}
}

// Communication error sub-types.
const (
	TypeTimeout  = "timeout"
	TypeOpen     = "open"
	TypeIO       = "io"
	TypeProtocol = "protocol"
)

// CommunicationError is a transport level failure talking to the device.
type CommunicationError struct {
	Type string
	Msg  string
	Err  error
}

func (e *CommunicationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// Comm creates a CommunicationError of the given sub-type.
func Comm(typ, format string, args ...any) error {
	return &CommunicationError{Type: typ, Msg: fmt.Sprintf(format, args...)}
}

// WrapComm wraps err into a CommunicationError. A nil err yields nil.
func WrapComm(err error, typ, msg string) error {
	if err == nil {
		return nil
	}
	return &CommunicationError{Type: typ, Msg: msg, Err: err}
}

// InvalidArgumentError reports a semantically invalid command argument or
// device answer.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return e.Msg
}

// InvalidArg creates an InvalidArgumentError.
func InvalidArg(format string, args ...any) error {
	return &InvalidArgumentError{Msg: fmt.Sprintf(format, args...)}
}

var (
	// ErrTerminate is returned by a component that decided to stop the run
	// cleanly. It is never reported.
	ErrTerminate = errors.New("terminated")

	// ErrInterrupted is returned when the user aborted the run.
	ErrInterrupted = errors.New("interrupted")
)

// Classify returns the kind of err. Context cancellation counts as an
// interrupt since the root context is only cancelled by a signal.
func Classify(err error) Kind {
	var commErr *CommunicationError
	var argErr *InvalidArgumentError

	switch {
	case err == nil:
		return Unclassified
	case errors.As(err, &commErr):
		return Communication
	case errors.As(err, &argErr):
		return InvalidArgument
	case errors.Is(err, ErrTerminate):
		return Termination
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return Interrupt
	default:
		return Unclassified
	}
}

// CommType returns the sub-type of the CommunicationError in err's chain,
// or "" if there is none.
func CommType(err error) string {
	var commErr *CommunicationError
	if errors.As(err, &commErr) {
		return commErr.Type
	}
	return ""
}
