package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/reamp/internal/cli"
)

// Phase represents the current processing phase
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseProcessing
	PhaseComplete
	PhaseFailed
)

// RunStarted announces the partition plan
type RunStarted struct {
	Input      string
	Model      string
	Workers    int
	Frames     int64
	SampleRate int
	Channels   int
}

// WorkerProgress reports frames processed by one worker
type WorkerProgress struct {
	Worker int
	Done   int64
	Total  int64
}

// RunComplete signals a successful run
type RunComplete struct {
	OutputFile    string
	FramesWritten int64
	FileSize      int64
	Warnings      int
	PeakDB        float64
	RMSDB         float64
	Clipped       int64
	TotalTime     time.Duration
}

// RunFailed signals a fatal error
type RunFailed struct {
	Err error
}

// progressQuitMsg is sent when it's time to quit after showing completion
type progressQuitMsg struct{}

// Model implements the Bubbletea model for a reamp run
type Model struct {
	progressBar progress.Model
	phase       Phase

	run     RunStarted
	workers []WorkerProgress
	done    int64

	complete *RunComplete
	failure  error

	startTime       time.Time
	width           int
	completionDelay time.Duration
}

// NewModel creates a new progress UI model
func NewModel() *Model {
	// Valve gradient: oxblood → amber
	p := progress.New(
		progress.WithGradient(string(cli.Oxblood), string(cli.ValveAmber)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &Model{
		progressBar:     p,
		phase:           PhaseStarting,
		startTime:       time.Now(),
		completionDelay: 2 * time.Second,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = min(msg.Width-30, 50)
		return m, nil

	case RunStarted:
		m.run = msg
		m.workers = make([]WorkerProgress, msg.Workers)
		m.phase = PhaseProcessing
		m.startTime = time.Now()
		return m, nil

	case WorkerProgress:
		if msg.Worker < 0 || msg.Worker >= len(m.workers) {
			return m, nil
		}
		m.done += msg.Done - m.workers[msg.Worker].Done
		m.workers[msg.Worker] = msg
		return m, nil

	case RunComplete:
		m.complete = &msg
		m.phase = PhaseComplete
		return m, tea.Tick(m.completionDelay, func(t time.Time) tea.Msg {
			return progressQuitMsg{}
		})

	case RunFailed:
		m.failure = msg.Err
		m.phase = PhaseFailed
		return m, tea.Quit

	case progressQuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.complete != nil {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the UI
func (m *Model) View() string {
	if m.phase == PhaseComplete {
		return m.CompletionSummary()
	}
	return m.renderProgress()
}

// CompletionSummary returns the final summary for printing after the program
// exits. Returns empty string if the run did not complete.
func (m *Model) CompletionSummary() string {
	if m.complete == nil {
		return ""
	}
	return m.renderComplete()
}

// Percent returns overall completion in [0, 1]
func (m *Model) Percent() float64 {
	if m.run.Frames <= 0 {
		if m.phase == PhaseComplete {
			return 1
		}
		return 0
	}
	return min(float64(m.done)/float64(m.run.Frames), 1)
}

func (m *Model) renderProgress() string {
	var s strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.ValveAmber).
		Render("Reamp 🎸")
	s.WriteString(title)
	s.WriteString("\n")

	if m.phase == PhaseStarting {
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Planning partitions...\n"))
		return m.frame(s.String(), cli.ValveRed)
	}

	s.WriteString(lipgloss.NewStyle().Foreground(cli.ValveOrange).Render(
		fmt.Sprintf("%s → %s", m.run.Input, m.run.Model)))
	s.WriteString("\n\n")

	percent := m.Percent()
	s.WriteString("Progress: ")
	s.WriteString(m.progressBar.ViewAs(percent))
	s.WriteString(fmt.Sprintf("  %d%%", int(percent*100)))
	s.WriteString("\n\n")

	labelStyle := lipgloss.NewStyle().Faint(true)
	for i, w := range m.workers {
		var ratio float64
		if w.Total > 0 {
			ratio = float64(w.Done) / float64(w.Total)
		}
		s.WriteString(labelStyle.Render(fmt.Sprintf("Worker %-3d", i)))
		s.WriteString(makeGradientBar(ratio, 24))
		s.WriteString(labelStyle.Render(fmt.Sprintf("  %3d%%", int(ratio*100))))
		s.WriteString("\n")
	}

	elapsed := time.Since(m.startTime)
	var eta time.Duration
	var speed float64
	if percent > 0 {
		eta = time.Duration(float64(elapsed)/percent) - elapsed
		if m.run.SampleRate > 0 && elapsed > 0 {
			audioDone := time.Duration(float64(m.done) / float64(m.run.SampleRate) * float64(time.Second))
			speed = float64(audioDone) / float64(elapsed)
		}
	}

	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Faint(true).Render(
		fmt.Sprintf("Time: %s  │  Speed: %.1fx realtime  │  ETA: %s",
			formatDuration(elapsed), speed, formatDuration(eta))))

	return m.frame(s.String(), cli.ValveRed)
}

func (m *Model) renderComplete() string {
	var s strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.ValveAmber).
		Render("✓ Reamp Complete!")
	s.WriteString(title)
	s.WriteString("\n\n")

	dimLabel := lipgloss.NewStyle().Faint(true)
	s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Output:   "), m.complete.OutputFile))
	s.WriteString(fmt.Sprintf("%s%d frames, %d workers\n", dimLabel.Render("Audio:    "), m.complete.FramesWritten, len(m.workers)))
	if m.run.SampleRate > 0 {
		audioDuration := time.Duration(float64(m.complete.FramesWritten) / float64(m.run.SampleRate) * float64(time.Second))
		s.WriteString(fmt.Sprintf("%s%.1fs audio in %s\n",
			dimLabel.Render("Duration: "),
			audioDuration.Seconds(),
			formatDuration(m.complete.TotalTime)))
	}
	s.WriteString(fmt.Sprintf("%s%s\n", dimLabel.Render("Size:     "), formatBytes(m.complete.FileSize)))
	s.WriteString(fmt.Sprintf("%s%s peak, %s RMS, %d clipped\n",
		dimLabel.Render("Levels:   "),
		cli.FormatDB(m.complete.PeakDB),
		cli.FormatDB(m.complete.RMSDB),
		m.complete.Clipped))
	if m.complete.Warnings > 0 {
		s.WriteString(lipgloss.NewStyle().Foreground(cli.ValveRed).Render(
			fmt.Sprintf("%d partition(s) ended early; see warnings below", m.complete.Warnings)))
		s.WriteString("\n")
	}

	return m.frame(strings.TrimSuffix(s.String(), "\n"), cli.ValveOrange) + "\n"
}

func (m *Model) frame(content string, border lipgloss.Color) string {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2).
		Render(content)
}

// Helper functions

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatBytes(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	return cli.FormatBytes(bytes)
}

// makeGradientBar creates a compact per-worker bar in the valve palette
func makeGradientBar(ratio float64, width int) string {
	filled := int(ratio * float64(width))
	filled = max(0, min(filled, width))

	gradientColors := []lipgloss.Color{
		cli.Oxblood,
		lipgloss.Color("#A52A2A"), // Brown-red
		cli.ValveRed,
		cli.ValveOrange,
		cli.ValveAmber,
	}

	var result strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			pos := float64(i) / float64(width)
			colorIdx := min(int(pos*float64(len(gradientColors))), len(gradientColors)-1)
			result.WriteString(lipgloss.NewStyle().Foreground(gradientColors[colorIdx]).Render("█"))
		} else {
			result.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("#2A2A2A")).Render("░"))
		}
	}
	return result.String()
}
