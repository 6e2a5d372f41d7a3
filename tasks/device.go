package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"gammascout/internal/failure"
	"gammascout/internal/protocol"
)

// ReadConfigTask exports the raw configuration memory.
type ReadConfigTask struct {
	env Env
}

func (t *ReadConfigTask) Run(ctx context.Context, dev protocol.Device) error {
	data, err := dev.ReadConfig(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return failure.Comm(failure.TypeProtocol, "device sent no configuration data")
	}
	return export(t.env, data)
}

// ResetTask resets the device.
type ResetTask struct {
	logger zerolog.Logger
}

func (t *ResetTask) Run(ctx context.Context, dev protocol.Device) error {
	if err := dev.Reset(ctx); err != nil {
		return err
	}
	t.logger.Info().Msg("Device reset requested")
	return nil
}

// SwitchModeTask puts the device into PC or standard mode.
type SwitchModeTask struct {
	mode   protocol.Mode
	logger zerolog.Logger
}

func newSwitchModeTask(args []string, env Env) (Task, error) {
	if len(args) != 1 {
		return nil, failure.InvalidArg("switchmode needs exactly one of: pc, standard")
	}

	var mode protocol.Mode
	switch args[0] {
	case "pc", "PC":
		mode = protocol.ModePC
	case "standard", "Standard":
		mode = protocol.ModeStandard
	default:
		return nil, failure.InvalidArg("unknown mode %q (expected pc or standard)", args[0])
	}
	return &SwitchModeTask{mode: mode, logger: env.Logger}, nil
}

func (t *SwitchModeTask) Run(ctx context.Context, dev protocol.Device) error {
	if err := dev.SwitchMode(ctx, t.mode); err != nil {
		return err
	}
	t.logger.Info().Str("mode", string(t.mode)).Msg("Device mode set")
	return nil
}
