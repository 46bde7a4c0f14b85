package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/NikitaCOEUR/regiontrace/internal/profile"
	"github.com/NikitaCOEUR/regiontrace/pkg/region"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Render renders the report data to a string
func Render(data *Data) string {
	var b strings.Builder

	b.WriteString(renderHeader(data))
	b.WriteString("\n\n")

	b.WriteString(renderSession(data))
	b.WriteString("\n\n")

	b.WriteString(renderRegions(data))
	b.WriteString("\n")

	if len(data.Profile.Params) > 0 {
		b.WriteString("\n")
		b.WriteString(renderParams(data))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderDiagnostics(data))

	return b.String()
}

func renderHeader(data *Data) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📄 Trace: ") + valueStyle.Render(data.TracePath) + "\n")
	b.WriteString(titleStyle.Render("🆔 Session: ") + valueStyle.Render(data.Session) + "\n")
	b.WriteString(titleStyle.Render("🔌 Backend: ") + valueStyle.Render(data.Backend))
	if !data.Created.IsZero() {
		b.WriteString("\n" + titleStyle.Render("🕒 Recorded: ") + valueStyle.Render(data.Created.Format("2006-01-02 15:04:05")))
	}
	if data.Version != "" {
		b.WriteString("\n" + titleStyle.Render("📦 Version: ") + valueStyle.Render(data.Version))
	}
	return b.String()
}

func renderSession(data *Data) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("⚙️  Registries:") + "\n")

	s := data.Stats
	b.WriteString("   " + keyStyle.Render("Identity regions: ") + valueStyle.Render(fmt.Sprint(s.Identities)) + "\n")
	b.WriteString("   " + keyStyle.Render("Named regions: ") + valueStyle.Render(fmt.Sprint(s.Names)) + "\n")
	b.WriteString("   " + keyStyle.Render("Rewind regions: ") + valueStyle.Render(fmt.Sprint(s.Rewinds)) + "\n")
	b.WriteString("   " + keyStyle.Render("Parameter slots: ") + valueStyle.Render(fmt.Sprint(s.Parameters)) + "\n")
	b.WriteString("   " + keyStyle.Render("Total time: ") + valueStyle.Render(profile.Millis(data.Profile.Total)))
	return b.String()
}

func renderRegions(data *Data) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("⏱  Top regions (%d of %d):", len(data.Top), len(data.Profile.Stats))) + "\n")

	if len(data.Top) == 0 {
		b.WriteString("   " + subtleStyle.Render("No regions recorded"))
		return b.String()
	}

	width := 0
	for _, s := range data.Top {
		if len(s.Name) > width {
			width = len(s.Name)
		}
	}

	for i, s := range data.Top {
		name := fmt.Sprintf("%-*s", width, s.Name)
		line := fmt.Sprintf("   %2d. %s  %s  %s",
			i+1,
			valueStyle.Render(name),
			keyStyle.Render(fmt.Sprintf("visits=%d", s.Visits)),
			valueStyle.Render(profile.Millis(s.Inclusive)),
		)
		if s.Visits > 1 {
			line += subtleStyle.Render(fmt.Sprintf(" (min %s, max %s)", profile.Millis(s.Min), profile.Millis(s.Max)))
		}
		if s.Group != "" {
			line += " " + subtleStyle.Render("["+s.Group+"]")
		}
		b.WriteString(line)
		if i < len(data.Top)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderParams(data *Data) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("🔧 Parameters:") + "\n")

	for i, p := range data.Profile.Params {
		b.WriteString("   " + keyStyle.Render(p.Name+" ("+string(p.Type)+"): ") +
			valueStyle.Render(p.Last) +
			subtleStyle.Render(fmt.Sprintf(" x%d", p.Count)))
		if p.Region != "" {
			b.WriteString(subtleStyle.Render(" in " + p.Region))
		}
		if i < len(data.Profile.Params)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderDiagnostics(data *Data) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("🩺 Diagnostics:") + "\n")

	p := data.Profile
	if p.OrphanExits == 0 && p.Unclosed == 0 {
		b.WriteString("   " + successStyle.Render("✓ All region exits matched an enter"))
	} else {
		if p.OrphanExits > 0 {
			b.WriteString("   " + errorStyle.Render(fmt.Sprintf("✗ %d region exit(s) without an enter", p.OrphanExits)) + "\n")
			b.WriteString("   " + warningStyle.Render(fmt.Sprintf("See the %q region and its %q parameter", region.ErrorRegionName, region.LeaveRegionParameter)))
		}
		if p.Unclosed > 0 {
			if p.OrphanExits > 0 {
				b.WriteString("\n")
			}
			b.WriteString("   " + warningStyle.Render(fmt.Sprintf("⚠ %d region(s) still open at the end of the trace", p.Unclosed)))
		}
	}

	if p.Rewinds > 0 {
		b.WriteString("\n   " + keyStyle.Render("Rewind exits: ") +
			valueStyle.Render(fmt.Sprintf("%d (%d rewound)", p.Rewinds, p.Rewound)))
	}
	return b.String()
}
