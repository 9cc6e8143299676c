package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModelTracksWorkerProgress(t *testing.T) {
	m := NewModel()
	m.Update(RunStarted{Input: "dry.wav", Model: "amp.nam", Workers: 2, Frames: 1000, SampleRate: 48000, Channels: 1})

	if m.phase != PhaseProcessing {
		t.Fatalf("Phase = %v, want PhaseProcessing", m.phase)
	}

	m.Update(WorkerProgress{Worker: 0, Done: 200, Total: 500})
	m.Update(WorkerProgress{Worker: 1, Done: 100, Total: 500})
	m.Update(WorkerProgress{Worker: 0, Done: 500, Total: 500})

	if got := m.Percent(); got != 0.6 {
		t.Errorf("Percent = %v, want 0.6", got)
	}

	// Out of range workers are ignored
	m.Update(WorkerProgress{Worker: 7, Done: 500, Total: 500})
	if got := m.Percent(); got != 0.6 {
		t.Errorf("Percent after bad worker = %v, want 0.6", got)
	}

	view := m.View()
	for _, want := range []string{"Reamp", "Worker 0", "Worker 1", "60%"} {
		if !strings.Contains(view, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestModelCompletion(t *testing.T) {
	m := NewModel()
	if m.CompletionSummary() != "" {
		t.Error("Expected empty summary before completion")
	}

	m.Update(RunStarted{Workers: 1, Frames: 48000, SampleRate: 48000})
	_, cmd := m.Update(RunComplete{
		OutputFile:    "wet.wav",
		FramesWritten: 48000,
		FileSize:      96044,
		PeakDB:        -3,
		RMSDB:         -18,
		TotalTime:     250 * time.Millisecond,
	})

	if cmd == nil {
		t.Error("Expected a quit tick after completion")
	}
	if m.phase != PhaseComplete {
		t.Errorf("Phase = %v, want PhaseComplete", m.phase)
	}

	summary := m.CompletionSummary()
	for _, want := range []string{"Reamp Complete", "wet.wav", "48000 frames", "1.0s audio", "-3.0 dBFS"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}

	// Any key quits once complete
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Error("Expected quit on key press after completion")
	}
}

func TestModelFailure(t *testing.T) {
	m := NewModel()
	_, cmd := m.Update(RunFailed{Err: errors.New("boom")})

	if cmd == nil {
		t.Error("Expected quit command on failure")
	}
	if m.phase != PhaseFailed || m.failure == nil {
		t.Errorf("Phase = %v, failure = %v", m.phase, m.failure)
	}
	if m.CompletionSummary() != "" {
		t.Error("Expected no summary after failure")
	}
}

func TestMakeGradientBar(t *testing.T) {
	testCases := []struct {
		ratio      float64
		wantFilled int
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{1.5, 10},
		{-1, 0},
	}

	for _, tc := range testCases {
		bar := makeGradientBar(tc.ratio, 10)
		if got := strings.Count(bar, "█"); got != tc.wantFilled {
			t.Errorf("makeGradientBar(%v) filled %d, want %d", tc.ratio, got, tc.wantFilled)
		}
		if got := strings.Count(bar, "░"); got != 10-tc.wantFilled {
			t.Errorf("makeGradientBar(%v) empty %d, want %d", tc.ratio, got, 10-tc.wantFilled)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	testCases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
	}
	for _, tc := range testCases {
		if got := formatDuration(tc.d); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
