package cli

import "github.com/charmbracelet/lipgloss"

// Valve amp colour palette 🎸
// Shared colours for consistent branding across CLI and TUI
var (
	// Valve glow (dim to bright)
	ValveAmber  = lipgloss.Color("#FFB000") // Heater glow
	ValveOrange = lipgloss.Color("#FF7A00") // Driven plate
	ValveRed    = lipgloss.Color("#E03C31") // Clip light
	Oxblood     = lipgloss.Color("#7A1F1F") // Grille cloth

	// Accent colours
	Tolex = lipgloss.Color("#9C8A6E") // Worn tolex for subtle text
)
