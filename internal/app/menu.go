package app

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

// MenuItem is one numbered entry of the interactive menu.
type MenuItem struct {
	Key   string
	Title string
	Usage string
	Run   func(ctx context.Context, args []string) error
}

// ErrExit is returned by the exit item to end the menu loop.
var ErrExit = errors.New("exit")

// MenuItems returns the menu in display order. Items take optional
// arguments; missing ones fall back to the configuration.
func (a *App) MenuItems() []MenuItem {
	return []MenuItem{
		{"1", "Generate records and write shards", "", func(ctx context.Context, _ []string) error {
			return a.Generate(ctx)
		}},
		{"2", "Read shards in parallel", "[samples]", func(ctx context.Context, args []string) error {
			samples := len(args) > 0 && args[0] == "samples"
			_, err := a.Read(ctx, samples)
			return err
		}},
		{"3", "Run the background resort", "[window, 0 keeps it running]", func(ctx context.Context, args []string) error {
			window := time.Duration(a.cfg.Resort.Window)
			if len(args) > 0 {
				d, err := parseWindow(args[0])
				if err != nil {
					return err
				}
				window = d
			}
			_, err := a.Resort(ctx, window)
			return err
		}},
		{"4", "Bounded read (semaphore)", "[tasks] [max]", func(ctx context.Context, args []string) error {
			tasks, limit, err := a.boundedArgs(args)
			if err != nil {
				return err
			}
			_, err = a.Bounded(ctx, tasks, limit)
			return err
		}},
		{"5", "Bounded read (monitor)", "[tasks] [max]", func(_ context.Context, args []string) error {
			tasks, limit, err := a.boundedArgs(args)
			if err != nil {
				return err
			}
			_, err = a.BoundedMonitor(tasks, limit)
			return err
		}},
		{"6", "Merge two shards alternately", "", func(ctx context.Context, _ []string) error {
			_, err := a.Merge(ctx)
			return err
		}},
		{"7", "Split read of one shard", "[parts]", func(ctx context.Context, args []string) error {
			parts := a.cfg.Split.Parts
			if len(args) > 0 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return errors.Wrapf(err, "parts %q", args[0])
				}
				parts = n
			}
			return a.Split(ctx, parts)
		}},
		{"0", "Exit", "", func(context.Context, []string) error {
			return ErrExit
		}},
	}
}

// parseWindow accepts a duration ("1s") or a bare number of seconds.
func parseWindow(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "window %q", s)
	}
	return d, nil
}

func (a *App) boundedArgs(args []string) (tasks, limit int, err error) {
	tasks, limit = a.cfg.Bounded.Tasks, a.cfg.Bounded.MaxConcurrent
	if len(args) > 0 {
		if tasks, err = strconv.Atoi(args[0]); err != nil {
			return 0, 0, errors.Wrapf(err, "tasks %q", args[0])
		}
	}
	if len(args) > 1 {
		if limit, err = strconv.Atoi(args[1]); err != nil {
			return 0, 0, errors.Wrapf(err, "max %q", args[1])
		}
	}
	return tasks, limit, nil
}

// Menu prints the menu and runs items read from in until the exit item,
// end of input or ctx is done. Failed items are reported on the console
// and the loop continues.
func (a *App) Menu(ctx context.Context, in io.Reader) error {
	items := a.MenuItems()
	byKey := make(map[string]MenuItem, len(items))
	for _, item := range items {
		byKey[item.Key] = item
	}

	a.printMenu(items)
	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.console.Line("Select an option:")
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "help" || line == "?" {
			a.printMenu(items)
			continue
		}

		words, err := shellquote.Split(line)
		if err != nil {
			a.console.Error("parsing input", err)
			continue
		}
		if len(words) == 0 {
			continue
		}
		item, ok := byKey[words[0]]
		if !ok {
			a.console.Line("Invalid option %q. Type help for the menu.", words[0])
			continue
		}

		err = item.Run(ctx, words[1:])
		switch {
		case errors.Is(err, ErrExit):
			return nil
		case err != nil:
			a.console.Error(strings.ToLower(item.Title), err)
		}
	}
}

func (a *App) printMenu(items []MenuItem) {
	a.console.Header("Shard sort")
	for _, item := range items {
		if item.Usage != "" {
			a.console.Line("%s. %s %s", item.Key, item.Title, item.Usage)
			continue
		}
		a.console.Line("%s. %s", item.Key, item.Title)
	}
}
