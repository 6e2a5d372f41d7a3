package tasks

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gammascout/internal/config"
)

// encode writes v in the structured format of env, or calls text for the
// plain text format.
func encode(env Env, v any, text func(w io.Writer) error) error {
	switch env.Format {
	case config.FormatYAML:
		enc := yaml.NewEncoder(env.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to encode yaml")
		}
		return enc.Close()
	case config.FormatJSON:
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "failed to encode json")
	default:
		return text(env.Stdout)
	}
}

// export stores binary data at the configured destination. Standard output
// receives a hex dump instead of raw bytes.
func export(env Env, data []byte) error {
	if env.Output == "" || env.Output == config.StdoutOutput {
		dumper := hex.Dumper(env.Stdout)
		if _, err := dumper.Write(data); err != nil {
			return errors.Wrap(err, "failed to write hex dump")
		}
		return dumper.Close()
	}

	if err := os.WriteFile(env.Output, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", env.Output)
	}
	env.Logger.Info().Str("file", env.Output).Int("bytes", len(data)).Msg("Data written")
	return nil
}
