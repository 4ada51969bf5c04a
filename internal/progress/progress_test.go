package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{1536, "1.50KiB"},
		{5 * 1024 * 1024, "5.00MiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSpeedZeroIsUnknown(t *testing.T) {
	if FormatSpeed(0) != "-- /s" {
		t.Errorf("FormatSpeed(0) = %q", FormatSpeed(0))
	}
}

func TestFormatETAZeroRateIsUnknown(t *testing.T) {
	if FormatETA(10, 100, 0) != "--:--" {
		t.Errorf("FormatETA with zero rate should be unknown")
	}
}

func TestSpeedTrackerComputesRate(t *testing.T) {
	tr := newSpeedTracker(5)

	base := time.Now()
	tr.samples = append(tr.samples, sample{bytes: 0, at: base})
	tr.samples = append(tr.samples, sample{bytes: 1000, at: base.Add(time.Second)})

	if got := tr.bytesPerSecond(); got < 999 || got > 1001 {
		t.Errorf("bytesPerSecond() = %f, want ~1000", got)
	}
}

func TestSpeedTrackerWindowEviction(t *testing.T) {
	tr := newSpeedTracker(2)

	tr.add(0)
	tr.add(100)
	tr.add(200)

	if len(tr.samples) != 2 {
		t.Fatalf("samples = %d, want 2 (window size)", len(tr.samples))
	}
}

func TestPlainReporterWritesLine(t *testing.T) {
	var buf bytes.Buffer

	r := newPlainReporter(&buf)
	r.Report(Event{Label: "node", DownloadedBytes: 50, TotalBytes: 100, Done: true})
	r.Close()

	if !strings.Contains(buf.String(), "node") {
		t.Fatalf("expected output to mention the label, got %q", buf.String())
	}
}
