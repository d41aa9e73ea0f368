package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/loykin/botctl/internal/controller"
)

// Theme is the dashboard color palette. Colors are ANSI 256 codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	Title      lipgloss.Color
	Border     lipgloss.Color

	Green  lipgloss.Color
	Red    lipgloss.Color
	Yellow lipgloss.Color
	Gray   lipgloss.Color

	Info lipgloss.Color
}

// DefaultTheme targets dark terminals.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("243"),
	Title:      lipgloss.Color("111"),
	Border:     lipgloss.Color("238"),
	Green:      lipgloss.Color("78"),
	Red:        lipgloss.Color("203"),
	Yellow:     lipgloss.Color("221"),
	Gray:       lipgloss.Color("245"),
	Info:       lipgloss.Color("75"),
}

func (t Theme) indicator(c controller.Color) lipgloss.Color {
	switch c {
	case controller.ColorGreen:
		return t.Green
	case controller.ColorRed:
		return t.Red
	case controller.ColorYellow:
		return t.Yellow
	}
	return t.Gray
}

func (t Theme) severity(s controller.Severity) lipgloss.Color {
	switch s {
	case controller.SeveritySuccess:
		return t.Green
	case controller.SeverityError:
		return t.Red
	}
	return t.Info
}
