// Package ui provides terminal UI components for compass.
// This file implements the progress display shown while a plan executes.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"golang.org/x/term"
)

// ProgressDisplay renders execution progress: the plan title, the task in
// hand and an overall bar. On a terminal it redraws in place; otherwise it
// prints one line each time the task or percentage changes.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	title      string
	isTTY      bool
	bar        progress.Model
	task       string
	percent    int
	started    time.Time
	linesDrawn int
	lastLine   string
}

// NewProgressDisplay creates a ProgressDisplay writing to stdout.
func NewProgressDisplay(title string) *ProgressDisplay {
	return NewProgressDisplayTo(os.Stdout, title, term.IsTerminal(int(os.Stdout.Fd())))
}

// NewProgressDisplayTo creates a ProgressDisplay writing to out.
func NewProgressDisplayTo(out io.Writer, title string, tty bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:     out,
		title:   title,
		isTTY:   tty,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		started: time.Now(),
	}
}

// Update records progress and redraws. Its signature matches
// controller.ProgressFunc so it can be passed straight to Execute.
func (p *ProgressDisplay) Update(taskName string, percent int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.task = taskName
	p.percent = clamp(percent)
	p.render()
	return nil
}

// Finish moves below the display and prints a summary line.
func (p *ProgressDisplay) Finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := formatDuration(time.Since(p.started))
	if err != nil {
		fmt.Fprintf(p.out, "\nStopped at %d%% after %s: %v\n", p.percent, elapsed, err)
		return
	}
	fmt.Fprintf(p.out, "\nDone in %s\n", elapsed)
}

func (p *ProgressDisplay) render() {
	if !p.isTTY {
		p.renderPlain()
		return
	}
	p.renderTTY()
}

// renderTTY redraws the display in place using ANSI cursor movement.
func (p *ProgressDisplay) renderTTY() {
	if p.linesDrawn > 0 {
		fmt.Fprintf(p.out, "\033[%dA", p.linesDrawn)
	}

	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("\033[2K\033[1m%s\033[0m\n", p.title))
	buf.WriteString(fmt.Sprintf("\033[2K  %s\n", truncate(p.task, 60)))
	buf.WriteString("\033[2K  ")
	buf.WriteString(p.bar.ViewAs(float64(p.percent) / 100))
	buf.WriteString(fmt.Sprintf("  \033[90m[%s]\033[0m\n", formatDuration(time.Since(p.started))))

	fmt.Fprint(p.out, buf.String())
	p.linesDrawn = 3
}

// renderPlain writes non-TTY output (for CI/piping), skipping repeats.
func (p *ProgressDisplay) renderPlain() {
	line := fmt.Sprintf("[%3d%%] %s", p.percent, p.task)
	if line == p.lastLine {
		return
	}
	fmt.Fprintln(p.out, line)
	p.lastLine = line
}

func clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", h, m, s)
}
