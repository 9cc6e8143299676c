package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Help styles share the valve amp palette
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ValveAmber).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(ValveOrange).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ValveOrange).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(ValveAmber).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(ValveRed).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(Tolex).
				Italic(true)
)

// generalGroup titles flags that carry no group tag
const generalGroup = "General"

// helpEntry is one row of the help table
type helpEntry struct {
	label string
	help  string
	def   string
}

// helpSection is a titled block of rows, rendered with aligned columns
type helpSection struct {
	title   string
	style   lipgloss.Style
	entries []helpEntry
}

// StyledHelpPrinter renders help with flags grouped by their group tag.
// defaults maps flag names to the value shown when the flag is unset, for
// flags whose effective default comes from the config file rather than kong.
func StyledHelpPrinter(defaults map[string]string) kong.HelpPrinter {
	return func(_ kong.HelpOptions, ctx *kong.Context) error {
		return renderHelp(ctx.Stdout, ctx.Model, defaults)
	}
}

func renderHelp(w io.Writer, app *kong.Application, defaults map[string]string) error {
	var sb strings.Builder

	sb.WriteString(helpTitleStyle.Render("Reamp 🎸"))
	sb.WriteString("\n")
	sb.WriteString(helpDescStyle.Render(app.Help))
	sb.WriteString("\n")

	sb.WriteString(helpSectionStyle.Render("Usage:"))
	sb.WriteString("\n  ")
	sb.WriteString(app.Name)
	for _, arg := range app.Node.Positional {
		sb.WriteString(" " + arg.Summary())
	}
	sb.WriteString(" [flags]\n")

	sections := []helpSection{argumentSection(app.Node)}
	sections = append(sections, flagSections(app.Node, app.HelpFlag, defaults)...)
	for _, s := range sections {
		writeSection(&sb, s)
	}

	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render("Notes:"))
	sb.WriteString("\n")
	for _, line := range []string{
		"Each worker starts its model cold, so output with more than one thread can",
		"differ from --threads 1 just after partition boundaries. Use --warmup to",
		"pre-roll each worker and remove the difference.",
	} {
		sb.WriteString("  " + helpDefaultStyle.Render(line) + "\n")
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func argumentSection(node *kong.Node) helpSection {
	s := helpSection{title: "Arguments", style: helpArgStyle}
	for _, arg := range node.Positional {
		s.entries = append(s.entries, helpEntry{label: arg.Summary(), help: arg.Help})
	}
	return s
}

// flagSections groups visible flags, keeping groups in declaration order with
// untagged flags first
func flagSections(node *kong.Node, help *kong.Flag, defaults map[string]string) []helpSection {
	order := []string{generalGroup}
	byGroup := map[string][]helpEntry{}

	flags := node.Flags
	if help != nil && !slices.Contains(flags, help) {
		flags = append([]*kong.Flag{help}, flags...)
	}
	for _, f := range flags {
		if f.Hidden {
			continue
		}
		group := generalGroup
		if f.Group != nil {
			group = f.Group.Title
		}
		if _, seen := byGroup[group]; !seen && group != generalGroup {
			order = append(order, group)
		}
		byGroup[group] = append(byGroup[group], flagEntry(f, defaults))
	}

	var sections []helpSection
	for _, group := range order {
		if len(byGroup[group]) == 0 {
			continue
		}
		sections = append(sections, helpSection{title: group, style: helpFlagStyle, entries: byGroup[group]})
	}
	return sections
}

func flagEntry(f *kong.Flag, defaults map[string]string) helpEntry {
	label := "--" + f.Name
	if f.Short != 0 {
		label = fmt.Sprintf("-%c, %s", f.Short, label)
	}
	if !f.IsBool() && f.PlaceHolder != "" {
		label += "=" + strings.ToUpper(f.PlaceHolder)
	}

	def := defaults[f.Name]
	if def == "" && f.HasDefault && !f.IsBool() {
		def = f.Default
	}
	return helpEntry{label: label, help: f.Help, def: def}
}

func writeSection(sb *strings.Builder, s helpSection) {
	if len(s.entries) == 0 {
		return
	}

	width := 0
	for _, e := range s.entries {
		width = max(width, len(e.label))
	}

	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render(s.title + ":"))
	sb.WriteString("\n")
	for _, e := range s.entries {
		sb.WriteString("  ")
		sb.WriteString(s.style.Render(e.label))
		sb.WriteString(strings.Repeat(" ", width-len(e.label)+2))
		sb.WriteString(e.help)
		if e.def != "" {
			sb.WriteString(" ")
			sb.WriteString(helpDefaultStyle.Render("(default: " + e.def + ")"))
		}
		sb.WriteString("\n")
	}
}
