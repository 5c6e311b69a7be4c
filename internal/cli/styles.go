package cli

import "github.com/charmbracelet/lipgloss"

var (
	IncomeColor  = lipgloss.Color("#22C55E")
	ExpenseColor = lipgloss.Color("#EF4444")
	AccentColor  = lipgloss.Color("#0EA5E9")
	WarningColor = lipgloss.Color("#F59E0B")
	SubtleColor  = lipgloss.Color("#6B7280")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(AccentColor)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	IncomeStyle = lipgloss.NewStyle().
			Foreground(IncomeColor)

	ExpenseStyle = lipgloss.NewStyle().
			Foreground(ExpenseColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(IncomeColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	LabelStyle = lipgloss.NewStyle().
			Width(20).
			Foreground(SubtleColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor).
			Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(AccentColor)
)
