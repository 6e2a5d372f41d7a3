package tasks

import (
	"context"
	"io"
	"sort"

	"github.com/rs/zerolog"

	"gammascout/internal/failure"
	"gammascout/internal/protocol"
)

// Task is a single device command.
type Task interface {
	Run(ctx context.Context, dev protocol.Device) error
}

// Env is what a task needs besides the device.
type Env struct {
	Stdout io.Writer
	Output string // export destination, "-" for Stdout
	Format string
	Logger zerolog.Logger
}

type factory func(args []string, env Env) (Task, error)

var registry = map[string]factory{
	"identify":   newIdentifyTask,
	"synctime":   noArgs(func(env Env) Task { return &SyncTimeTask{logger: env.Logger} }),
	"settime":    newSetTimeTask,
	"readlog":    noArgs(func(env Env) Task { return &ReadLogTask{env: env} }),
	"clearlog":   noArgs(func(env Env) Task { return &ClearLogTask{logger: env.Logger} }),
	"readcfg":    noArgs(func(env Env) Task { return &ReadConfigTask{env: env} }),
	"reset":      noArgs(func(env Env) Task { return &ResetTask{logger: env.Logger} }),
	"switchmode": newSwitchModeTask,
}

// New creates the task for command.
func New(command string, args []string, env Env) (Task, error) {
	create, ok := registry[command]
	if !ok {
		return nil, failure.InvalidArg("unknown command %q", command)
	}
	return create(args, env)
}

// Names lists the supported commands in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func noArgs(create func(env Env) Task) factory {
	return func(args []string, env Env) (Task, error) {
		if len(args) > 0 {
			return nil, failure.InvalidArg("command takes no arguments, got %d", len(args))
		}
		return create(env), nil
	}
}
