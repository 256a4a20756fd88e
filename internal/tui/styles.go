package tui

import "github.com/charmbracelet/lipgloss"

// Theme selects the palette and the glamour style.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

func (t Theme) toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

type palette struct {
	accent  lipgloss.Color
	text    lipgloss.Color
	muted   lipgloss.Color
	border  lipgloss.Color
	user    lipgloss.Color
	ok      lipgloss.Color
	warn    lipgloss.Color
	danger  lipgloss.Color
	surface lipgloss.Color
}

var palettes = map[Theme]palette{
	ThemeDark: {
		accent:  lipgloss.Color("#7C9CFF"),
		text:    lipgloss.Color("#E4E6EB"),
		muted:   lipgloss.Color("#8A8F98"),
		border:  lipgloss.Color("#3B3F46"),
		user:    lipgloss.Color("#A6E3A1"),
		ok:      lipgloss.Color("#22C55E"),
		warn:    lipgloss.Color("#EAB308"),
		danger:  lipgloss.Color("#EF4444"),
		surface: lipgloss.Color("#1E2025"),
	},
	ThemeLight: {
		accent:  lipgloss.Color("#2563EB"),
		text:    lipgloss.Color("#1F2937"),
		muted:   lipgloss.Color("#6B7280"),
		border:  lipgloss.Color("#D1D5DB"),
		user:    lipgloss.Color("#15803D"),
		ok:      lipgloss.Color("#16A34A"),
		warn:    lipgloss.Color("#CA8A04"),
		danger:  lipgloss.Color("#DC2626"),
		surface: lipgloss.Color("#F3F4F6"),
	},
}

// Styles is the rendered look of one theme.
type Styles struct {
	Header      lipgloss.Style
	Title       lipgloss.Style
	Muted       lipgloss.Style
	Connected   lipgloss.Style
	Checking    lipgloss.Style
	Offline     lipgloss.Style
	Sidebar     lipgloss.Style
	SidebarBusy lipgloss.Style
	Selected    lipgloss.Style
	Banner      lipgloss.Style
	UserLabel   lipgloss.Style
	BotLabel    lipgloss.Style
	UserText    lipgloss.Style
	Source      lipgloss.Style
	Input       lipgloss.Style
	InputFocus  lipgloss.Style
	Footer      lipgloss.Style
	BarFill     lipgloss.Style
	BarWarn     lipgloss.Style
	BarFull     lipgloss.Style
	BarEmpty    lipgloss.Style
	Prompt      lipgloss.Style
}

// NewStyles builds the styles of t. Unknown themes fall back to dark.
func NewStyles(t Theme) Styles {
	p, ok := palettes[t]
	if !ok {
		p = palettes[ThemeDark]
	}
	border := lipgloss.RoundedBorder()
	return Styles{
		Header: lipgloss.NewStyle().
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(p.border),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		Muted:     lipgloss.NewStyle().Foreground(p.muted),
		Connected: lipgloss.NewStyle().Foreground(p.ok),
		Checking:  lipgloss.NewStyle().Foreground(p.warn),
		Offline:   lipgloss.NewStyle().Foreground(p.danger),
		Sidebar: lipgloss.NewStyle().
			Border(border).
			BorderForeground(p.border).
			Padding(0, 1),
		SidebarBusy: lipgloss.NewStyle().
			Border(border).
			BorderForeground(p.accent).
			Padding(0, 1),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		Banner: lipgloss.NewStyle().
			Foreground(p.danger).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(p.danger).
			PaddingLeft(1),
		UserLabel: lipgloss.NewStyle().Bold(true).Foreground(p.user),
		BotLabel:  lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		UserText:  lipgloss.NewStyle().Foreground(p.text).PaddingLeft(2),
		Source:    lipgloss.NewStyle().Foreground(p.muted).Italic(true).PaddingLeft(2),
		Input: lipgloss.NewStyle().
			Border(border).
			BorderForeground(p.border),
		InputFocus: lipgloss.NewStyle().
			Border(border).
			BorderForeground(p.accent),
		Footer:   lipgloss.NewStyle().Foreground(p.muted).Padding(0, 1),
		BarFill:  lipgloss.NewStyle().Foreground(p.ok),
		BarWarn:  lipgloss.NewStyle().Foreground(p.warn),
		BarFull:  lipgloss.NewStyle().Foreground(p.danger),
		BarEmpty: lipgloss.NewStyle().Foreground(p.border),
		Prompt:   lipgloss.NewStyle().Foreground(p.accent).Background(p.surface).Padding(0, 1),
	}
}
