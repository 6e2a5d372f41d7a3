package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gammascout/internal/failure"
	"gammascout/internal/protocol"
)

// SyncTimeTask sets the device clock to the host clock.
type SyncTimeTask struct {
	logger zerolog.Logger
}

func (t *SyncTimeTask) Run(ctx context.Context, dev protocol.Device) error {
	if err := dev.SyncTime(ctx); err != nil {
		return err
	}
	t.logger.Info().Msg("Device clock synchronized with host")
	return nil
}

// SetTimeTask sets the device clock to a given local time.
type SetTimeTask struct {
	at     time.Time
	logger zerolog.Logger
}

func newSetTimeTask(args []string, env Env) (Task, error) {
	value := strings.TrimSpace(strings.Join(args, " "))
	if value == "" {
		return nil, failure.InvalidArg("settime needs a timestamp in the form %q", time.DateTime)
	}

	at, err := time.ParseInLocation(time.DateTime, value, time.Local)
	if err != nil {
		return nil, failure.InvalidArg("cannot parse %q as timestamp (expected %q)", value, time.DateTime)
	}
	return &SetTimeTask{at: at, logger: env.Logger}, nil
}

func (t *SetTimeTask) Run(ctx context.Context, dev protocol.Device) error {
	if err := dev.SetTime(ctx, t.at); err != nil {
		return err
	}
	t.logger.Info().Time("time", t.at).Msg("Device clock set")
	return nil
}
