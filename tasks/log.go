package tasks

import (
	"context"
	"encoding/hex"
	"io"

	"github.com/rs/zerolog"

	"gammascout/internal/config"
	"gammascout/internal/failure"
	"gammascout/internal/protocol"
)

// ReadLogTask exports the raw log memory of the device.
type ReadLogTask struct {
	env Env
}

type logSummary struct {
	BufferFill     int    `json:"buffer_fill" yaml:"buffer_fill"`
	Bytes          int    `json:"bytes" yaml:"bytes"`
	ChecksumErrors int    `json:"checksum_errors" yaml:"checksum_errors"`
	Data           string `json:"data,omitempty" yaml:"data,omitempty"`
}

func (t *ReadLogTask) Run(ctx context.Context, dev protocol.Device) error {
	log, err := dev.ReadLog(ctx)
	if err != nil {
		return err
	}

	if log.BufferFill == 0 && len(log.Data) == 0 {
		t.env.Logger.Info().Msg("Log memory is empty, nothing to export")
		return failure.ErrTerminate
	}
	if log.ChecksumErrors > 0 {
		t.env.Logger.Warn().Int("lines", log.ChecksumErrors).Msg("Log contains lines with checksum errors")
	}

	toStdout := t.env.Output == "" || t.env.Output == config.StdoutOutput
	if toStdout && t.env.Format != config.FormatText {
		return encode(t.env, logSummary{
			BufferFill:     log.BufferFill,
			Bytes:          len(log.Data),
			ChecksumErrors: log.ChecksumErrors,
			Data:           hex.EncodeToString(log.Data),
		}, func(io.Writer) error { return nil })
	}
	return export(t.env, log.Data)
}

// ClearLogTask erases the log memory.
type ClearLogTask struct {
	logger zerolog.Logger
}

func (t *ClearLogTask) Run(ctx context.Context, dev protocol.Device) error {
	if err := dev.ClearLog(ctx); err != nil {
		return err
	}
	t.logger.Info().Msg("Log memory cleared")
	return nil
}
