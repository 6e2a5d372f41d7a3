package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gammascout/internal/app"
	"gammascout/internal/config"
)

// rootCmd represents the base command when called without any subcommands.
// Every device command is a subcommand; the connection settings are
// persistent flags shared by all of them.
var rootCmd = &cobra.Command{
	Use:   "gammascout",
	Short: "Communicate with Gamma Scout Geiger counters",
	Long: `gammascout talks to a Gamma Scout Geiger counter over its serial
interface and performs one command per invocation:
  - identify the device and show its clock and log memory usage
  - set or synchronize the device clock
  - export or clear the stored radiation log
  - export the configuration memory, reset the device or switch its mode

Failures are reported on stderr; the exit status is always 0.`,
	SilenceUsage: true,
}

// deviceCommand describes one subcommand.
type deviceCommand struct {
	use   string
	short string
	args  cobra.PositionalArgs
}

var deviceCommands = []deviceCommand{
	{use: "identify", short: "Show mode, firmware version, serial number and clock", args: cobra.NoArgs},
	{use: "synctime", short: "Set the device clock to the host clock", args: cobra.NoArgs},
	{use: "settime \"YYYY-MM-DD HH:MM:SS\"", short: "Set the device clock to the given local time", args: cobra.RangeArgs(1, 2)},
	{use: "readlog", short: "Export the raw log memory (hex dump on stdout or raw to --output)", args: cobra.NoArgs},
	{use: "clearlog", short: "Clear the log memory", args: cobra.NoArgs},
	{use: "readcfg", short: "Export the raw configuration memory", args: cobra.NoArgs},
	{use: "reset", short: "Reset the device", args: cobra.NoArgs},
	{use: "switchmode pc|standard", short: "Switch the device into PC or standard mode", args: cobra.ExactArgs(1)},
}

// Execute runs the CLI. An interrupt cancels the command context so the
// device session can shut down before the process exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cobra has already reported argument errors, and the exit status
	// stays 0 regardless.
	_ = rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("device", "d", config.DefaultDevice, "serial device the Gamma Scout is connected to")
	flags.StringP("protocol", "p", config.DefaultProtocol, "protocol version spoken by the device (v1, v2)")
	flags.String("timeout", config.DefaultTimeout.String(), "time to wait for each device response")
	flags.StringP("output", "o", config.StdoutOutput, "destination for exported data, - for stdout")
	flags.StringP("format", "f", config.DefaultFormat, "output format (text, yaml, json)")
	flags.String("loglevel", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("logfile", "", "also write logs to this file")
	flags.Bool("debug", false, "trace every datagram exchanged with the device")

	if err := bindFlags(viper.GetViper(), flags); err != nil {
		panic(err)
	}

	for _, dc := range deviceCommands {
		rootCmd.AddCommand(&cobra.Command{
			Use:   dc.use,
			Short: dc.short,
			Args:  dc.args,
			Run: func(cmd *cobra.Command, args []string) {
				runApp(cmd, args)
			},
		})
	}
}

// bindFlags maps command line flags to configuration keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	keys := map[string]string{
		"device":   "device",
		"protocol": "protocol",
		"timeout":  "timeout",
		"output":   "output",
		"format":   "format",
		"loglevel": "logging.level",
		"logfile":  "logging.file",
		"debug":    "logging.debug",
	}
	for flag, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// initConfig lets environment variables such as GAMMASCOUT_DEVICE or
// GAMMASCOUT_LOGGING_LEVEL override flag defaults.
func initConfig() {
	setupEnv(viper.GetViper())
}

func setupEnv(v *viper.Viper) {
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// runApp builds the configuration for the invoked subcommand and hands it
// to the runner.
func runApp(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(viper.GetViper(), cmd.Name(), args)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return
	}
	app.NewRunner().Run(cmd.Context(), cfg)
}

func loadConfig(v *viper.Viper, command string, args []string) (config.Config, error) {
	v.Set("command", command)
	v.Set("args", args)
	return config.Load(v)
}
