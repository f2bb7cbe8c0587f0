// Package display renders pipeline state to a terminal. Every write goes
// through one lock so lines from concurrent goroutines never tear.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
	"golang.org/x/exp/slices"
)

// BarWidth is the number of cells in a progress bar.
const BarWidth = 10

const (
	barFull  = "■"
	barEmpty = "─"
)

// Console is the display lock plus the writer it guards.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole returns a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Line prints one formatted line.
func (c *Console) Line(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Header prints a title underlined to its width.
func (c *Console) Header(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "\n%s\n%s\n", title, strings.Repeat("=", len([]rune(title))))
}

// Section prints a sub-heading.
func (c *Console) Section(title string) {
	c.Line("\n--- %s ---", title)
}

// StageDone reports the end of a pipeline stage.
func (c *Console) StageDone(stage string) {
	c.Line("%s completed.", stage)
}

// Error reports a failed action without aborting the caller.
func (c *Console) Error(action string, err error) {
	c.Line("Error during %s: %v", action, err)
}

// Progress prints a bar for one shard, e.g.
//
//	file1.txt: [■■■───────] 3/10 (30.0%)
//
// It has the shape of shard.Progress and may be passed to Reader.ReadAll.
func (c *Console) Progress(name string, current, total int) {
	c.Line("%s: %s", name, Bar(current, total))
}

// Bar renders the bar and counters without a name.
func Bar(current, total int) string {
	if total <= 0 {
		return fmt.Sprintf("[%s] %d/%d (%.1f%%)", strings.Repeat(barEmpty, BarWidth), current, total, 0.0)
	}
	current = min(max(current, 0), total)
	filled := current * BarWidth / total
	pct := float64(current) * 100 / float64(total)
	return fmt.Sprintf("[%s%s] %d/%d (%.1f%%)",
		strings.Repeat(barFull, filled), strings.Repeat(barEmpty, BarWidth-filled), current, total, pct)
}

// Contents prints one table row per shard with its size and first limit
// entries. A limit of zero or less shows only sizes.
func (c *Console) Contents(snapshot map[string][]string, limit int) {
	t := newTable()
	t.AppendHeader(table.Row{"Shard", "Entries", "First entries"})
	for _, key := range sortedKeys(snapshot) {
		items := snapshot[key]
		head := items
		if limit <= 0 {
			head = nil
		} else if len(head) > limit {
			head = head[:limit]
		}
		preview := strings.Join(head, "\n")
		if len(items) > len(head) && len(head) > 0 {
			preview += fmt.Sprintf("\n... %d more", len(items)-len(head))
		}
		t.AppendRow(table.Row{key, len(items), preview})
	}
	t.AppendFooter(table.Row{"Total", total(snapshot), ""})
	c.render(t)
}

// Detailed prints every entry of every shard with its position and sort key.
func (c *Console) Detailed(snapshot map[string][]string, sortKey func(string) int) {
	t := newTable()
	t.AppendHeader(table.Row{"Shard", "#", "Key", "Entry"})
	for n, key := range sortedKeys(snapshot) {
		if n > 0 {
			t.AppendRow(table.Row{"", "", "", ""})
		}
		items := snapshot[key]
		if len(items) == 0 {
			t.AppendRow(table.Row{key, "-", "-", "(empty)"})
		}
		for i, item := range items {
			k := "-"
			if sortKey != nil {
				k = fmt.Sprint(sortKey(item))
			}
			t.AppendRow(table.Row{key, i + 1, k, item})
		}
	}
	c.render(t)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	// Keep shard names as written.
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func (c *Console) render(t table.Writer) {
	out := t.Render()
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, out)
}

func sortedKeys(snapshot map[string][]string) []string {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func total(snapshot map[string][]string) int {
	n := 0
	for _, items := range snapshot {
		n += len(items)
	}
	return n
}
