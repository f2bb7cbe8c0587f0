package main

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dreamware/shardsort/internal/app"
	"github.com/dreamware/shardsort/internal/config"
)

// cli carries the state shared by every sub-command of one invocation.
type cli struct {
	cfg    *config.Config
	app    *app.App
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand returns the shardsort command tree. Running it without a
// sub-command opens the interactive menu.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return newCLI(stdin, stdout, stderr).rootCommand()
}

func newCLI(stdin io.Reader, stdout, stderr io.Writer) *cli {
	return &cli{cfg: config.New(), stdin: stdin, stdout: stdout, stderr: stderr}
}

func (c *cli) rootCommand() *cobra.Command {
	rc := &cobra.Command{
		Use:   "shardsort",
		Short: "Generate, read and continuously sort sharded record files.",
		Long: `shardsort writes sample phone and manufacturer records into shard files,
reads every shard concurrently into an in-memory store and keeps each
shard's entries sorted from a background goroutine.

Without a sub-command it opens a numbered menu on standard input.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		RunE:              c.run(c.runMenu),
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	c.cfg.Flags(rc.PersistentFlags())

	rc.AddCommand(c.newMenuCommand())
	rc.AddCommand(c.newGenerateCommand())
	rc.AddCommand(c.newReadCommand())
	rc.AddCommand(c.newResortCommand())
	rc.AddCommand(c.newBoundedCommand())
	rc.AddCommand(c.newMergeCommand())
	rc.AddCommand(c.newSplitCommand())
	rc.AddCommand(c.newConfigCommand())

	rc.SetIn(c.stdin)
	rc.SetOut(c.stdout)
	rc.SetErr(c.stderr)
	return rc
}

// setup merges flags, environment and config file, then builds the App.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := config.Load(viper.New(), cmd.Flags()); err != nil {
		return err
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	l, err := c.cfg.NewLogger(c.stderr)
	if err != nil {
		return err
	}
	a, err := app.New(c.cfg, c.stdout, l)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

// ErrUsage marks errors caused by bad arguments.
var ErrUsage = errors.New("usage error")

// run wraps a command body so the App is closed however the body returns.
// cobra skips post-run hooks after a failed RunE, which would leave a
// background resorter running.
func (c *cli) run(fn func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		defer func() {
			if cerr := c.app.Close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd)
	}
}

func (c *cli) runMenu(cmd *cobra.Command) error {
	return c.app.Menu(cmd.Context(), c.stdin)
}

func (c *cli) newMenuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Open the interactive menu.",
		Args:  cobra.NoArgs,
		RunE:  c.run(c.runMenu),
	}
}

func (c *cli) newGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate records and write every shard concurrently.",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command) error {
			return c.app.Generate(cmd.Context())
		}),
	}
}

func (c *cli) newReadCommand() *cobra.Command {
	var samples bool
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read every shard concurrently into the store.",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command) error {
			_, err := c.app.Read(cmd.Context(), samples)
			return err
		}),
	}
	cmd.Flags().BoolVar(&samples, "samples", false, "Create sample content for missing shards.")
	return cmd
}

func (c *cli) newResortCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resort",
		Short: "Read the shards, then resort them in the background for resort.window.",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command) error {
			if _, err := c.app.Read(cmd.Context(), false); err != nil {
				return err
			}
			window := time.Duration(c.cfg.Resort.Window)
			if window <= 0 {
				return errors.Wrap(ErrUsage, "resort.window must be positive outside the menu")
			}
			_, err := c.app.Resort(cmd.Context(), window)
			return err
		}),
	}
}

func (c *cli) newBoundedCommand() *cobra.Command {
	var monitor bool
	cmd := &cobra.Command{
		Use:   "bounded",
		Short: "Read the shards, then run bounded.tasks readers over them.",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command) error {
			if _, err := c.app.Read(cmd.Context(), false); err != nil {
				return err
			}
			tasks, limit := c.cfg.Bounded.Tasks, c.cfg.Bounded.MaxConcurrent
			var err error
			if monitor {
				_, err = c.app.BoundedMonitor(tasks, limit)
			} else {
				_, err = c.app.Bounded(cmd.Context(), tasks, limit)
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&monitor, "monitor", false, "Gate readers with a condition variable instead of a semaphore.")
	return cmd
}

func (c *cli) newMergeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Interleave merge.first and merge.second into merge.output.",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command) error {
			_, err := c.app.Merge(cmd.Context())
			return err
		}),
	}
}

func (c *cli) newSplitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "split",
		Short: "Read split.shard from split.parts goroutines.",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command) error {
			return c.app.Split(cmd.Context(), c.cfg.Split.Parts)
		}),
	}
}

func (c *cli) newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML.",
		Args:  cobra.NoArgs,
		RunE: c.run(func(*cobra.Command) error {
			buf, err := c.cfg.ToTOML()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "%s\n", buf)
			return nil
		}),
	}
}
