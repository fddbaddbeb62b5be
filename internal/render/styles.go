package render

import "github.com/charmbracelet/lipgloss"

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"})

	primaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#303030", Dark: "#EEEEEE"})

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}).
			PaddingLeft(2)

	tableHeaderStyle = lipgloss.NewStyle().Bold(true)

	tableBorderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#5A5A5A"})

	plainStyle = lipgloss.NewStyle()

	activeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("226")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	speakableMark = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Render("▸ ")
)
