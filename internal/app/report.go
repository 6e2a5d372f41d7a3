package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/go-wordwrap"

	"gammascout/internal/config"
	"gammascout/internal/failure"
)

const (
	reasonsHeader    = "Possible reasons for this:"
	firstLinePrefix  = "   - "
	nextLinePrefix   = "     "
	minWrapWidth     = 20
	interruptMessage = "Interrupted by keyboard, shutting down..."
)

const reasonPCMode = "The Gamma Scout is not in PC mode. Press the PC button on the " +
	"device so that its display shows \"PC\" and try again."

const reasonModemManager = "Another process is accessing %s and interferes with the " +
	"communication. A modem manager (e.g. ModemManager) commonly probes new " +
	"serial devices; stop it or exclude the device from it."

// report writes the diagnostic for err. A nil err reports nothing.
func (r *Runner) report(err error, cfg config.Config) {
	if err == nil {
		return
	}

	switch failure.Classify(err) {
	case failure.Communication:
		fmt.Fprintf(r.Stderr, "Communication error: %s\n", err)
		writeReasons(r.Stderr, communicationReasons(err, cfg), r.width())
	case failure.InvalidArgument:
		var argErr *failure.InvalidArgumentError
		errors.As(err, &argErr)
		fmt.Fprintf(r.Stderr, "Invalid argument: %s\n", argErr.Msg)
	case failure.Termination:
	case failure.Interrupt:
		fmt.Fprintln(r.Stdout, interruptMessage)
	default:
		fmt.Fprintf(r.Stderr, "Unexpected failure: %+v\n", err)
	}
}

func communicationReasons(err error, cfg config.Config) []string {
	if failure.CommType(err) != failure.TypeTimeout {
		return nil
	}

	var reasons []string
	if cfg.GetProtocol() == config.ProtocolV1 {
		reasons = append(reasons, reasonPCMode)
	}
	reasons = append(reasons, fmt.Sprintf(reasonModemManager, cfg.GetDevice()))
	return reasons
}

func writeReasons(w io.Writer, reasons []string, width int) {
	if len(reasons) == 0 {
		return
	}

	fmt.Fprintln(w, reasonsHeader)
	for _, reason := range reasons {
		fmt.Fprint(w, wrapReason(reason, width))
	}
}

// wrapReason word-wraps reason to width columns with a hanging indent.
func wrapReason(reason string, width int) string {
	textWidth := width - len(firstLinePrefix)
	if textWidth < minWrapWidth {
		textWidth = minWrapWidth
	}

	var b strings.Builder
	lines := strings.Split(wordwrap.WrapString(reason, uint(textWidth)), "\n")
	for i, line := range lines {
		if i == 0 {
			b.WriteString(firstLinePrefix)
		} else {
			b.WriteString(nextLinePrefix)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
