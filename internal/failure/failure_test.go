package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{
			name:     "communication timeout",
			err:      Comm(TypeTimeout, "no answer"),
			expected: Communication,
		},
		{
			name:     "wrapped communication error",
			err:      pkgerrors.Wrap(Comm(TypeIO, "write failed"), "identify"),
			expected: Communication,
		},
		{
			name:     "invalid argument",
			err:      InvalidArg("bad checksum"),
			expected: InvalidArgument,
		},
		{
			name:     "termination",
			err:      fmt.Errorf("readlog: %w", ErrTerminate),
			expected: Termination,
		},
		{
			name:     "interrupt",
			err:      ErrInterrupted,
			expected: Interrupt,
		},
		{
			name:     "context canceled",
			err:      pkgerrors.Wrap(context.Canceled, "read"),
			expected: Interrupt,
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			expected: Unclassified,
		},
		{
			name:     "nil",
			err:      nil,
			expected: Unclassified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestCommunicationPriorityOverInterrupt(t *testing.T) {
	err := WrapComm(context.Canceled, TypeIO, "read failed")
	assert.Equal(t, Communication, Classify(err))
}

func TestCommType(t *testing.T) {
	assert.Equal(t, TypeTimeout, CommType(pkgerrors.Wrap(Comm(TypeTimeout, "x"), "y")))
	assert.Equal(t, "", CommType(errors.New("other")))
}

func TestCommunicationError_Message(t *testing.T) {
	err := WrapComm(errors.New("no such file"), TypeOpen, "cannot open /dev/ttyUSB0")
	assert.Equal(t, "cannot open /dev/ttyUSB0: no such file", err.Error())
	assert.Nil(t, WrapComm(nil, TypeOpen, "unused"))
}

func TestInvalidArgumentError_Message(t *testing.T) {
	assert.Equal(t, "bad checksum", InvalidArg("bad %s", "checksum").Error())
}
