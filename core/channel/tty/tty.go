// Package tty provides an interactive shell over the generated resource
// commands. Each line is parsed like a command line and run against a fresh
// command tree, so flags never leak between lines.
package tty

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// CommandSource builds the resource commands. Implemented by the CLI channel.
type CommandSource interface {
	Commands() ([]*cobra.Command, error)
}

// Option configures a Channel.
type Option func(*Channel)

// WithIO sets the input and output streams (default stdin and stdout).
func WithIO(in io.Reader, out io.Writer) Option {
	return func(c *Channel) {
		c.in = in
		c.out = out
	}
}

// WithPrompt sets the prompt string.
func WithPrompt(prompt string) Option {
	return func(c *Channel) { c.prompt = prompt }
}

// WithStats toggles the per-command timing and memory line.
func WithStats(enabled bool) Option {
	return func(c *Channel) { c.showStats = enabled }
}

// Channel implements the TTY channel for interactive terminal sessions.
type Channel struct {
	source    CommandSource
	in        io.Reader
	out       io.Writer
	prompt    string
	showStats bool
}

// New creates a new TTY channel.
func New(source CommandSource, opts ...Option) *Channel {
	c := &Channel{
		source:    source,
		in:        os.Stdin,
		out:       os.Stdout,
		prompt:    "adminkit> ",
		showStats: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return "tty"
}

// Run reads and executes lines until quit, end of input or ctx is done.
// Command failures are printed and do not end the session.
func (c *Channel) Run(ctx context.Context) error {
	// Fail early if the registry is not ready.
	if _, err := c.source.Commands(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(c.in)

	fmt.Fprintln(c.out, "AdminKit Interactive Shell")
	fmt.Fprintln(c.out, "Type 'help' for available commands, 'quit' to exit")
	fmt.Fprintln(c.out)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(c.out, c.prompt)
		if !scanner.Scan() {
			break
		}

		args := parseArgs(strings.TrimSpace(scanner.Text()))
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit", "q":
			return nil
		case "stats":
			c.showStats = !c.showStats
			if c.showStats {
				fmt.Fprintln(c.out, "Stats on")
			} else {
				fmt.Fprintln(c.out, "Stats off")
			}
			continue
		}

		before := captureStats()
		start := time.Now()

		c.execute(ctx, args)

		if c.showStats {
			c.printStats(time.Since(start), before, captureStats())
		}
	}

	return scanner.Err()
}

// execute runs one parsed line. Errors are already written to the output by
// the command tree.
func (c *Channel) execute(ctx context.Context, args []string) {
	cmds, err := c.source.Commands()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	root := &cobra.Command{
		Use:          "adminkit>",
		SilenceUsage: true,
	}
	root.AddCommand(cmds...)
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.out)
	root.SetArgs(args)
	root.ExecuteContext(ctx)
}

// captureStats captures current memory stats.
func captureStats() goruntime.MemStats {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)
	return m
}

// formatBytes formats bytes as human readable.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func (c *Channel) printStats(duration time.Duration, before, after goruntime.MemStats) {
	memUsed := int64(after.Alloc) - int64(before.Alloc)
	if memUsed < 0 {
		memUsed = 0 // GC happened
	}

	line := fmt.Sprintf("  took %v  alloc %s  sys %s", duration.Round(time.Microsecond), formatBytes(uint64(memUsed)), formatBytes(after.Sys))
	if gc := after.NumGC - before.NumGC; gc > 0 {
		line += fmt.Sprintf("  gc %d", gc)
	}
	fmt.Fprintln(c.out, line)
}

// parseArgs splits a line on whitespace, honoring single and double quotes.
func parseArgs(line string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	for _, r := range line {
		switch {
		case r == '"' || r == '\'':
			if inQuote && r == quoteChar {
				inQuote = false
				quoteChar = 0
			} else if !inQuote {
				inQuote = true
				quoteChar = r
			} else {
				current.WriteRune(r)
			}
		case r == ' ' || r == '\t':
			if inQuote {
				current.WriteRune(r)
			} else if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	return args
}
