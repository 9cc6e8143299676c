package cli

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor   = Oxblood                   // Grille cloth red
	successColor   = lipgloss.Color("#00AA00") // Green
	mutedColor     = lipgloss.Color("#888888") // Gray
	highlightColor = lipgloss.Color("#FFFF00") // Yellow
	textColor      = lipgloss.Color("#FFFFFF") // White
)

// Styles
var (
	// Title style - bold oxblood with guitar emoji
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// Success message style
	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	// Error message style
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// Highlight style for important values
	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	// Box style for framed content
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

// PrintVersion prints version information
func PrintVersion(version string) {
	fmt.Println(TitleStyle.Render("Reamp 🎸"))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("%s %s\n", HighlightStyle.Render("Warning:"), message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render("✓"), message)
}

// FormatDuration formats a duration nicely
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", d.Seconds()*1000)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// FormatSpeed formats processing speed
func FormatSpeed(speed float64) string {
	return fmt.Sprintf("%.1fx realtime", speed)
}

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDB formats a level in dBFS
func FormatDB(db float64) string {
	if math.IsInf(db, -1) {
		return "-inf dBFS"
	}
	return fmt.Sprintf("%.1f dBFS", db)
}

// PrintBox prints content in a styled box
func PrintBox(content string) {
	fmt.Println(BoxStyle.Render(content))
}

// Summary holds the values shown after a successful run
type Summary struct {
	Duration string
	Speed    string
	Size     string
	Frames   string
	Workers  string
	Peak     string
	RMS      string
	Clipped  string
}

// PrintSummary prints a run summary in a box
func PrintSummary(s Summary) {
	var b strings.Builder

	b.WriteString(SuccessStyle.Render("✓ Reamp Complete!"))
	b.WriteString("\n\n")

	b.WriteString(KeyStyle.Render("Duration:  "))
	b.WriteString(ValueStyle.Render(s.Duration))
	b.WriteString("\n")

	b.WriteString(KeyStyle.Render("Speed:     "))
	b.WriteString(ValueStyle.Render(s.Speed))
	b.WriteString("\n")

	b.WriteString(KeyStyle.Render("File Size: "))
	b.WriteString(ValueStyle.Render(s.Size))
	b.WriteString("\n")

	b.WriteString(KeyStyle.Render("Frames:    "))
	b.WriteString(ValueStyle.Render(s.Frames))
	b.WriteString("\n")

	b.WriteString(KeyStyle.Render("Workers:   "))
	b.WriteString(ValueStyle.Render(s.Workers))
	b.WriteString("\n\n")

	b.WriteString(KeyStyle.Render("Output Levels:"))
	b.WriteString("\n")
	b.WriteString("  " + KeyStyle.Render("Peak:    "))
	b.WriteString(ValueStyle.Render(s.Peak))
	b.WriteString("\n")
	b.WriteString("  " + KeyStyle.Render("RMS:     "))
	b.WriteString(ValueStyle.Render(s.RMS))
	b.WriteString("\n")
	b.WriteString("  " + KeyStyle.Render("Clipped: "))
	b.WriteString(ValueStyle.Render(s.Clipped))

	PrintBox(b.String())
}
