package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"gammascout/internal/protocol"
)

// IdentifyTask prints mode, firmware, serial number and clock of the device.
type IdentifyTask struct {
	env Env
}

func newIdentifyTask(args []string, env Env) (Task, error) {
	return noArgs(func(env Env) Task { return &IdentifyTask{env: env} })(args, env)
}

func (t *IdentifyTask) Run(ctx context.Context, dev protocol.Device) error {
	version, err := dev.Version(ctx)
	if err != nil {
		return err
	}

	return encode(t.env, version, func(w io.Writer) error {
		return writeVersion(w, version)
	})
}

func writeVersion(w io.Writer, v *protocol.Version) error {
	if v.Mode != protocol.ModePC {
		_, err := fmt.Fprintf(w, "Mode:        %s\n", v.Mode)
		return err
	}

	_, err := fmt.Fprintf(w,
		"Mode:        %s\nFirmware:    %s\nSerial:      %d\nBuffer fill: %d bytes\nClock:       %s\n",
		v.Mode, v.Firmware, v.Serial, v.BufferFill, v.Clock.Format(time.DateTime))
	return err
}
