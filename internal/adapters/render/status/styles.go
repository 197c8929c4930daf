package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	user    lipgloss.Style
	chime   lipgloss.Style
	detail  lipgloss.Style
	warning lipgloss.Style
	section lipgloss.Style
	empty   lipgloss.Style
	key     lipgloss.Style
	meta    lipgloss.Style
	online  lipgloss.Style
	offline lipgloss.Style
	pending lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		user:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		chime:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section: lipgloss.NewStyle().MarginTop(1),
		empty:   lipgloss.NewStyle().Faint(true),
		key:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		meta:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		online:  lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		offline: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		pending: lipgloss.NewStyle().Foreground(lipgloss.Color("221")),
	}
}
