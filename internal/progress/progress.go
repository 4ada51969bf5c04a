// Package progress reports install-engine download progress to the
// terminal, adapted from the teacher's pkg/video/downloader progress
// tracker. Two renderers are provided: an interactive bubbletea/lipgloss
// bar for a TTY, and a plain fatih/color line for pipes and CI logs,
// selected via golang.org/x/term TTY detection.
package progress

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"golang.org/x/term"
)

// Event is one progress sample the install engine reports during a
// download or extraction.
type Event struct {
	Label           string
	DownloadedBytes int64
	TotalBytes      int64 // 0 means unknown
	Done            bool
}

// Reporter receives Events as a download proceeds.
type Reporter interface {
	Report(Event)
	// Close finalizes rendering (e.g. stops the bubbletea program, prints
	// a trailing newline).
	Close()
}

// NewReporter selects an interactive bubbletea/lipgloss reporter when
// stderr is a terminal, or a plain fatih/color line-per-update reporter
// otherwise (pipes, CI logs).
func NewReporter(stderr *os.File) Reporter {
	if term.IsTerminal(int(stderr.Fd())) {
		return newInteractiveReporter(stderr)
	}

	return newPlainReporter(stderr)
}

// speedTracker computes a sliding-window transfer rate, adapted from the
// teacher's downloader.SpeedTracker.
type speedTracker struct {
	mu      sync.Mutex
	samples []sample
	window  int
}

type sample struct {
	bytes int64
	at    time.Time
}

func newSpeedTracker(window int) *speedTracker {
	if window <= 0 {
		window = 20
	}

	return &speedTracker{window: window}
}

func (s *speedTracker) add(totalBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample{bytes: totalBytes, at: time.Now()})
	if len(s.samples) > s.window {
		s.samples = s.samples[1:]
	}
}

func (s *speedTracker) bytesPerSecond() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.samples) < 2 {
		return 0
	}

	first, last := s.samples[0], s.samples[len(s.samples)-1]

	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return 0
	}

	return float64(last.bytes-first.bytes) / elapsed
}

// FormatBytes renders a byte count as a human-readable size.
func FormatBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}

	units := []string{"B", "KiB", "MiB", "GiB", "TiB"}
	size := float64(n)

	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}

	if unit == 0 {
		return fmt.Sprintf("%d%s", n, units[unit])
	}

	return fmt.Sprintf("%.2f%s", size, units[unit])
}

// FormatSpeed renders a bytes/sec rate as a human-readable throughput.
func FormatSpeed(bps float64) string {
	if bps <= 0 {
		return "-- /s"
	}

	return FormatBytes(int64(bps)) + "/s"
}

// FormatETA renders an estimated-seconds-remaining value as M:SS.
func FormatETA(downloaded, total int64, bps float64) string {
	if bps <= 0 || total <= 0 {
		return "--:--"
	}

	remaining := float64(total-downloaded) / bps
	if remaining < 0 {
		remaining = 0
	}

	secs := int(math.Round(remaining))

	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// plainReporter prints one colored line per Event, rate-limited so it
// doesn't flood non-interactive logs.
type plainReporter struct {
	w       io.Writer
	tracker *speedTracker
	last    time.Time
	bold    *color.Color
}

func newPlainReporter(w io.Writer) *plainReporter {
	return &plainReporter{
		w:       colorable.NewNonColorable(w),
		tracker: newSpeedTracker(20),
		bold:    color.New(color.Bold),
	}
}

func (p *plainReporter) Report(e Event) {
	if !e.Done && time.Since(p.last) < 500*time.Millisecond {
		return
	}

	p.last = time.Now()
	p.tracker.add(e.DownloadedBytes)

	bps := p.tracker.bytesPerSecond()

	if e.TotalBytes > 0 {
		pct := float64(e.DownloadedBytes) / float64(e.TotalBytes) * 100
		_, _ = p.bold.Fprintf(p.w, "%s: %.1f%% (%s/%s) %s eta %s\n",
			e.Label, pct, FormatBytes(e.DownloadedBytes), FormatBytes(e.TotalBytes),
			FormatSpeed(bps), FormatETA(e.DownloadedBytes, e.TotalBytes, bps))

		return
	}

	_, _ = p.bold.Fprintf(p.w, "%s: %s %s\n", e.Label, FormatBytes(e.DownloadedBytes), FormatSpeed(bps))
}

func (p *plainReporter) Close() {}
