// Package present holds the terminal styles and renderers shared by the
// commands.
package present

import "github.com/charmbracelet/lipgloss"

// Styles is the set of lipgloss styles used for CLI output.
type Styles struct {
	AppName,
	CliArgs,
	Comment,
	ErrorHeader,
	ErrorDetails,
	ErrPadding,
	Flag,
	FlagComma,
	FlagDesc,
	InlineCode,
	Link,
	Pipe,
	Quote,
	List,
	ID,
	Timeago,
	Key,
	Value,
	Rule,
	UserRole,
	AssistantRole,
	StatusOK,
	StatusBad lipgloss.Style
}

// MakeStyles creates styles bound to the given renderer.
func MakeStyles(r *lipgloss.Renderer) (s Styles) {
	const horizontalEdgePadding = 2
	s.AppName = r.NewStyle().Bold(true)
	s.CliArgs = r.NewStyle().Foreground(lipgloss.Color("#585858"))
	s.Comment = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#757575", Dark: "#757575"})
	s.ErrorHeader = r.NewStyle().Foreground(lipgloss.Color("#F1F1F1")).Background(lipgloss.Color("#FF5F87")).Bold(true).Padding(0, 1).SetString("ERROR")
	s.ErrorDetails = s.Comment
	s.ErrPadding = r.NewStyle().Padding(0, horizontalEdgePadding)
	s.Flag = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"}).Bold(true)
	s.FlagComma = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5DD6C0", Dark: "#427C72"}).SetString(",")
	s.FlagDesc = s.Comment
	s.InlineCode = r.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Background(lipgloss.Color("#3A3A3A")).Padding(0, 1)
	s.Link = r.NewStyle().Foreground(lipgloss.Color("#00AF87")).Underline(true)
	s.Quote = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF71D0", Dark: "#FF78D2"})
	s.Pipe = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8470FF", Dark: "#745CFF"})
	s.List = r.NewStyle().Padding(0, 1)
	s.ID = s.Flag
	s.Timeago = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999", Dark: "#555"})
	s.Key = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0078D4", Dark: "#50A0F0"}).Bold(true)
	s.Value = r.NewStyle()
	s.Rule = s.Comment
	s.UserRole = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8470FF", Dark: "#A08CFF"}).Bold(true)
	s.AssistantRole = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"}).Bold(true)
	s.StatusOK = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00A36C", Dark: "#5AF78E"})
	s.StatusBad = r.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	return s
}
