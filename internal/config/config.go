// Package config holds shardsort's settings and loads them from flags, the
// environment and an optional TOML file.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dreamware/shardsort/internal/codec"
	"github.com/dreamware/shardsort/internal/logger"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SHARDSORT"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Duration is a TOML wrapper type for time.Duration.
type Duration time.Duration

// String returns the string representation of the duration.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText parses a TOML value into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText writes duration value in text format.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full set of options. The toml tags match the flag names
// registered by Flags, with nested tables joined by a dot.
type Config struct {
	DataDir   string   `toml:"data-dir"`
	Format    string   `toml:"format"`
	LogLevel  string   `toml:"log-level"`
	LogFormat string   `toml:"log-format"`
	Shards    []string `toml:"shards"`

	Generate struct {
		Phones        int   `toml:"phones"`
		Manufacturers int   `toml:"manufacturers"`
		PerShard      int   `toml:"per-shard"`
		Seed          int64 `toml:"seed"`
	} `toml:"generate"`

	Read struct {
		ProgressDelay Duration `toml:"progress-delay"`
	} `toml:"read"`

	Resort struct {
		Interval    Duration `toml:"interval"`
		StopTimeout Duration `toml:"stop-timeout"`
		Window      Duration `toml:"window"`
	} `toml:"resort"`

	Bounded struct {
		Tasks         int `toml:"tasks"`
		MaxConcurrent int `toml:"max-concurrent"`
	} `toml:"bounded"`

	Merge struct {
		First  string `toml:"first"`
		Second string `toml:"second"`
		Output string `toml:"output"`
	} `toml:"merge"`

	Split struct {
		Shard string `toml:"shard"`
		Parts int    `toml:"parts"`
	} `toml:"split"`
}

// New returns a Config populated with the defaults.
func New() *Config {
	c := &Config{
		DataDir:   ".",
		Format:    "text",
		LogLevel:  "info",
		LogFormat: "console",
	}
	for i := 1; i <= 5; i++ {
		c.Shards = append(c.Shards, fmt.Sprintf("file%d.txt", i))
	}
	c.Generate.Phones = 25
	c.Generate.Manufacturers = 25
	c.Generate.PerShard = 10
	c.Read.ProgressDelay = Duration(100 * time.Millisecond)
	c.Resort.Interval = Duration(500 * time.Millisecond)
	c.Resort.StopTimeout = Duration(5 * time.Second)
	c.Resort.Window = Duration(2 * time.Second)
	c.Bounded.Tasks = 10
	c.Bounded.MaxConcurrent = 5
	c.Merge.First = "file1.txt"
	c.Merge.Second = "file2.txt"
	c.Merge.Output = "merged.txt"
	c.Split.Shard = "file1.txt"
	c.Split.Parts = 2
	return c
}

// Flags registers every option on flags, pointing at c's fields so that
// parsing writes straight into c.
func (c *Config) Flags(flags *pflag.FlagSet) {
	flags.StringVar(&c.DataDir, "data-dir", c.DataDir, "Directory holding the shard files.")
	flags.StringVar(&c.Format, "format", c.Format, "Shard file format (text or xml).")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log verbosity (debug, info, warn, error).")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log output format (console or json).")
	flags.StringSliceVar(&c.Shards, "shards", c.Shards, "Shard file names, in order.")

	flags.IntVar(&c.Generate.Phones, "generate.phones", c.Generate.Phones, "Number of phone records to generate.")
	flags.IntVar(&c.Generate.Manufacturers, "generate.manufacturers", c.Generate.Manufacturers, "Number of manufacturer records to generate.")
	flags.IntVar(&c.Generate.PerShard, "generate.per-shard", c.Generate.PerShard, "Records written to each shard.")
	flags.Int64Var(&c.Generate.Seed, "generate.seed", c.Generate.Seed, "Shuffle seed. Zero picks one from the clock.")

	flags.DurationVar((*time.Duration)(&c.Read.ProgressDelay), "read.progress-delay", time.Duration(c.Read.ProgressDelay), "Pause after each record while reading with progress.")

	flags.DurationVar((*time.Duration)(&c.Resort.Interval), "resort.interval", time.Duration(c.Resort.Interval), "Pause between resort passes.")
	flags.DurationVar((*time.Duration)(&c.Resort.StopTimeout), "resort.stop-timeout", time.Duration(c.Resort.StopTimeout), "How long stopping the resorter may wait.")
	flags.DurationVar((*time.Duration)(&c.Resort.Window), "resort.window", time.Duration(c.Resort.Window), "How long the resort demo runs before stopping.")

	flags.IntVar(&c.Bounded.Tasks, "bounded.tasks", c.Bounded.Tasks, "Reader tasks launched by the bounded read.")
	flags.IntVar(&c.Bounded.MaxConcurrent, "bounded.max-concurrent", c.Bounded.MaxConcurrent, "Readers allowed to run at once.")

	flags.StringVar(&c.Merge.First, "merge.first", c.Merge.First, "First shard to merge.")
	flags.StringVar(&c.Merge.Second, "merge.second", c.Merge.Second, "Second shard to merge.")
	flags.StringVar(&c.Merge.Output, "merge.output", c.Merge.Output, "File receiving the merged records.")

	flags.StringVar(&c.Split.Shard, "split.shard", c.Split.Shard, "Shard read by the split read.")
	flags.IntVar(&c.Split.Parts, "split.parts", c.Split.Parts, "Goroutines sharing the split read.")
}

// Load takes a FlagSet defining every option and its default, then reads
// the command line, the environment and a config file (named by the
// "config" flag, if the set has one) and applies them in that priority
// order. Each flag points at its destination so Load modifies the values
// in place.
//
// Environment variables are the upper-cased flag names with dashes and
// dots replaced by underscores, prefixed with EnvPrefix and an underscore.
func Load(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	validKeys := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		validKeys[f.Name] = true
	})

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading configuration file '%s'", path)
		}
		for _, key := range v.AllKeys() {
			if !validKeys[key] {
				return errors.Wrapf(ErrInvalid, "unknown option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		// Already set on the command line, which wins. Skipping also
		// keeps string slices from being appended to.
		if flagErr != nil || f.Changed {
			return
		}
		var value string
		if f.Value.Type() == "stringSlice" {
			// GetString returns "" for a real list from the config file.
			value = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			value = v.GetString(f.Name)
		}
		if err := f.Value.Set(value); err != nil {
			flagErr = errors.Wrapf(err, "setting %s", f.Name)
		}
	})
	return flagErr
}

// Validate reports the first problem that would make the pipeline misbehave.
func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return errors.Wrap(ErrInvalid, "data-dir is empty")
	case len(c.Shards) == 0:
		return errors.Wrap(ErrInvalid, "no shards configured")
	case c.Generate.Phones < 0 || c.Generate.Manufacturers < 0:
		return errors.Wrap(ErrInvalid, "record counts must not be negative")
	case c.Generate.PerShard <= 0:
		return errors.Wrapf(ErrInvalid, "generate.per-shard must be positive, got %d", c.Generate.PerShard)
	case c.Read.ProgressDelay < 0:
		return errors.Wrap(ErrInvalid, "read.progress-delay must not be negative")
	case c.Resort.Interval <= 0:
		return errors.Wrapf(ErrInvalid, "resort.interval must be positive, got %v", c.Resort.Interval)
	case c.Resort.StopTimeout <= 0:
		return errors.Wrapf(ErrInvalid, "resort.stop-timeout must be positive, got %v", c.Resort.StopTimeout)
	case c.Resort.Window < 0:
		return errors.Wrap(ErrInvalid, "resort.window must not be negative")
	case c.Bounded.Tasks < 0:
		return errors.Wrapf(ErrInvalid, "bounded.tasks must not be negative, got %d", c.Bounded.Tasks)
	case c.Bounded.MaxConcurrent <= 0:
		return errors.Wrapf(ErrInvalid, "bounded.max-concurrent must be positive, got %d", c.Bounded.MaxConcurrent)
	case c.Split.Parts <= 0:
		return errors.Wrapf(ErrInvalid, "split.parts must be positive, got %d", c.Split.Parts)
	}

	seen := make(map[string]bool, len(c.Shards))
	for _, name := range c.Shards {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return errors.Wrapf(ErrInvalid, "bad shard name %q", name)
		}
		if seen[name] {
			return errors.Wrapf(ErrInvalid, "shard %q listed twice", name)
		}
		seen[name] = true
	}
	if c.Merge.Output == c.Merge.First || c.Merge.Output == c.Merge.Second {
		return errors.Wrap(ErrInvalid, "merge.output must differ from its inputs")
	}
	if _, err := codec.ForFormat(c.Format); err != nil {
		return errors.Wrapf(ErrInvalid, "format: %v", err)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalid, "log-level: %v", err)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return errors.Wrapf(ErrInvalid, "log-format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// NewLogger builds the logger described by LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) (logger.Logger, error) {
	if c.LogFormat == "json" {
		return logger.NewJSON(w, c.LogLevel)
	}
	return logger.New(w, c.LogLevel)
}

// ToTOML renders c as a TOML document.
func (c *Config) ToTOML() ([]byte, error) {
	buf, err := toml.Marshal(*c)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling config")
	}
	return buf, nil
}
