package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Theme is passed explicitly to every render call; nothing subscribes to a
// global theme.
type Theme struct {
	Name             string
	Background       lipgloss.Color
	Bubble           lipgloss.Color
	SecondaryContent lipgloss.Color
	QuarterlyContent lipgloss.Color
	QuinaryContent   lipgloss.Color
	Recording        lipgloss.Color
	Warning          lipgloss.Color
}

func DarkTheme() Theme {
	return Theme{
		Name:             "dark",
		Background:       lipgloss.Color("233"),
		Bubble:           lipgloss.Color("236"),
		SecondaryContent: lipgloss.Color("250"),
		QuarterlyContent: lipgloss.Color("240"),
		QuinaryContent:   lipgloss.Color("235"),
		Recording:        lipgloss.Color("196"),
		Warning:          lipgloss.Color("208"),
	}
}

func LightTheme() Theme {
	return Theme{
		Name:             "light",
		Background:       lipgloss.Color("255"),
		Bubble:           lipgloss.Color("254"),
		SecondaryContent: lipgloss.Color("240"),
		QuarterlyContent: lipgloss.Color("248"),
		QuinaryContent:   lipgloss.Color("253"),
		Recording:        lipgloss.Color("160"),
		Warning:          lipgloss.Color("166"),
	}
}

func ThemeByName(name string) (Theme, error) {
	switch name {
	case "", "dark":
		return DarkTheme(), nil
	case "light":
		return LightTheme(), nil
	}
	return Theme{}, fmt.Errorf("unknown theme %q (use dark or light)", name)
}
