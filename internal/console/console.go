// Package console renders batch progress for a human operator.
//
// In live mode a block holding the progress bar and one line per worker is
// kept at the bottom of the terminal and redrawn in place; per-file lines
// scroll above it. Plain mode prints only the per-file lines and the
// summary, which suits pipes and CI logs.
package console

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Skryldev/bpm-lab/domain/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

const barWidth = 30

// Options configure a Console
type Options struct {
	// Live enables the in-place progress block. Only use it on a terminal.
	Live bool

	// ErrorLog is the path shown in failure lines
	ErrorLog string
}

// Console implements ports.BatchReporter. All methods are safe for
// concurrent use; writes are serialized.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	opts Options

	analyzeOnly bool
	counters    model.BatchCounters
	workers     []model.WorkerStatus
	liveLines   int

	title, dim, ok, warn, fail, panel lipgloss.Style
}

// New creates a console that writes to w
func New(w io.Writer, opts Options) *Console {
	if opts.ErrorLog == "" {
		opts.ErrorLog = "errors.log"
	}
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:     w,
		opts:  opts,
		title: r.NewStyle().Bold(true),
		dim:   r.NewStyle().Foreground(lipgloss.Color("245")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("42")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("220")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("196")),
		panel: r.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("81")).
			Padding(0, 1),
	}
}

// IsTerminal reports whether f is attached to a TTY
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) BatchStarted(inputDir string, total int, analyzeOnly bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.analyzeOnly = analyzeOnly
	c.counters = model.BatchCounters{TotalDiscovered: total}

	c.println(c.title.Render("Searching for audio files in: " + inputDir))
	if total == 0 {
		c.println("No audio files found. Exiting.")
		return
	}
	verb := "Processing"
	if analyzeOnly {
		verb = "Analyzing"
	}
	c.println(fmt.Sprintf("Found %d audio files. %s...", total, verb))
}

func (c *Console) FileCompleted(o model.Outcome, counters model.BatchCounters) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters = counters
	c.clearLive()
	c.println(c.outcomeLine(o))
	c.drawLive()
}

func (c *Console) Refresh(counters model.BatchCounters, workers []model.WorkerStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters = counters
	c.workers = workers
	c.clearLive()
	c.drawLive()
}

func (c *Console) BatchFinished(s *model.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLive()
	if s == nil || s.NothingToDo {
		return
	}
	c.println(c.panel.Render(c.summaryText(s)))
}

func (c *Console) outcomeLine(o model.Outcome) string {
	name := filepath.Base(o.File.AbsPath)
	if o.Detection == nil {
		o.Detection = &model.DetectionResult{}
	}
	switch o.Kind {
	case model.OutcomeAnalyzedOnly:
		return fmt.Sprintf("  - File: %s | Detected BPM: %.2f (Confidence: %.2f)", name, o.Detection.BPM, o.Detection.Confidence)
	case model.OutcomeProcessed:
		return c.ok.Render(fmt.Sprintf("  - File: %s | %.2f BPM -> %.2f BPM (x%.4f)",
			name, o.Detection.BPM, o.Detection.BPM*o.Factor, o.Factor))
	case model.OutcomeDetectionFailed:
		return c.fail.Render("-> Failed to detect BPM for: " + name)
	case model.OutcomeInvalidFactor:
		return c.fail.Render(fmt.Sprintf("-> Failed to process: %s (invalid stretch factor %g)", name, o.Factor))
	case model.OutcomeStretchFailed:
		return c.fail.Render(fmt.Sprintf("-> Failed to stretch audio for: %s (see %s)", name, c.opts.ErrorLog))
	default:
		return c.fail.Render(fmt.Sprintf("-> An unexpected error occurred for: %s (see %s)", name, c.opts.ErrorLog))
	}
}

func (c *Console) summaryText(s *model.Summary) string {
	var b strings.Builder
	b.WriteString(c.title.Render("Processing Complete"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total files found:     %d\n", s.Counters.TotalDiscovered)
	fmt.Fprintf(&b, "Total files processed: %d\n", s.Counters.TotalCompleted)
	if !s.AnalyzeOnly {
		fmt.Fprintf(&b, "Files modified:        %d\n", s.Counters.Modified)
	}
	fmt.Fprintf(&b, "Files failed:          %d", s.Counters.Failed)
	if s.Interrupted {
		b.WriteString("\n")
		b.WriteString(c.warn.Render("Interrupted: files not yet started were skipped."))
	}
	if s.Counters.Failed > 0 {
		b.WriteString("\n")
		b.WriteString(c.dim.Render(fmt.Sprintf("See '%s' for details on errors.", s.ErrorLogPath)))
	}
	return b.String()
}

// drawLive prints the progress block and remembers its height.
func (c *Console) drawLive() {
	if !c.opts.Live || c.counters.TotalDiscovered == 0 {
		return
	}
	lines := []string{c.progressLine()}
	for _, w := range c.workers {
		activity := c.dim.Render(w.Activity)
		lines = append(lines, fmt.Sprintf("  worker %d: %s", w.WorkerID+1, activity))
	}
	for _, l := range lines {
		c.println(l)
	}
	c.liveLines = len(lines)
}

// clearLive moves the cursor up over the last block and erases to the end.
func (c *Console) clearLive() {
	if c.liveLines == 0 {
		return
	}
	fmt.Fprintf(c.w, "\033[%dA\033[J", c.liveLines)
	c.liveLines = 0
}

func (c *Console) progressLine() string {
	label := "Processing files"
	if c.analyzeOnly {
		label = "Analyzing files"
	}
	return fmt.Sprintf("%s %s %d/%d (%d failed)",
		c.title.Render(label),
		progressBar(c.counters.TotalCompleted, c.counters.TotalDiscovered, barWidth),
		c.counters.TotalCompleted, c.counters.TotalDiscovered, c.counters.Failed,
	)
}

func progressBar(done, total, width int) string {
	if total <= 0 || width <= 0 {
		return ""
	}
	if done > total {
		done = total
	}
	filled := done * width / total
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.w, s)
}
