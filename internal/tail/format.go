package tail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/pkg/devalue"
)

// Styles holds the lipgloss styles used to print records.
type Styles struct {
	Time     lipgloss.Style
	Tag      lipgloss.Style
	Location lipgloss.Style
	Levels   map[string]lipgloss.Style
}

// DefaultStyles colors record types the way browser consoles do.
func DefaultStyles() Styles {
	label := lipgloss.NewStyle().Bold(true)
	return Styles{
		Time:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		Tag:      lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")),
		Location: lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Italic(true),
		Levels: map[string]lipgloss.Style{
			domain.TypeFatal: label.Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#D20F39")),
			domain.TypeError: label.Foreground(lipgloss.Color("#F38BA8")),
			domain.TypeWarn:  label.Foreground(lipgloss.Color("#F9E2AF")),
			domain.TypeInfo:  label.Foreground(lipgloss.Color("#89DCEB")),
			domain.TypeLog:   label.Foreground(lipgloss.Color("#CDD6F4")),
			domain.TypeDebug: label.Foreground(lipgloss.Color("#A6ADC8")),
			domain.TypeTrace: label.Foreground(lipgloss.Color("#7F849C")),
		},
	}
}

// Format renders record as one line.
func (s Styles) Format(record domain.LogRecord) string {
	var b strings.Builder

	if !record.Date.IsZero() {
		b.WriteString(s.Time.Render(record.Date.Local().Format("15:04:05.000")))
		b.WriteByte(' ')
	}

	level, ok := s.Levels[record.Type]
	if !ok {
		level = s.Levels[domain.TypeLog]
	}
	b.WriteString(level.Render(fmt.Sprintf("%-5s", strings.ToUpper(record.Type))))

	if record.Tag != "" {
		b.WriteByte(' ')
		b.WriteString(s.Tag.Render("[" + record.Tag + "]"))
	}
	if record.Source != "" {
		b.WriteByte(' ')
		b.WriteString(s.Tag.Render("<" + record.Source + ">"))
	}

	for _, arg := range record.Args {
		b.WriteByte(' ')
		b.WriteString(formatArg(arg))
	}

	if record.Filename != "" {
		b.WriteByte(' ')
		b.WriteString(s.Location.Render("(" + record.Filename + ")"))
	}
	return b.String()
}

func formatArg(arg any) string {
	if s, ok := arg.(string); ok {
		return s
	}
	out, err := devalue.JSON(arg)
	if err != nil {
		return fmt.Sprintf("%v", arg)
	}
	return string(out)
}
