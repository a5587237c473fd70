package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	inputHeight := 3
	chatHeight := m.height - inputHeight
	if chatHeight < 4 {
		chatHeight = 4
	}

	messageStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	userStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	loadingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1).
		Width(maxInt(m.width-4, 10))

	chatPanel := lipgloss.NewStyle().
		Width(m.width).
		Height(chatHeight).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1)

	var body strings.Builder
	visible := m.messages
	maxLines := chatHeight - 2
	if maxLines < 1 {
		maxLines = 1
	}
	if len(visible) > maxLines {
		visible = visible[len(visible)-maxLines:]
	}
	for i := 0; i < maxLines-len(visible); i++ {
		body.WriteString("\n")
	}
	for _, line := range visible {
		if strings.HasPrefix(line, "> ") {
			body.WriteString(userStyle.Render(line) + "\n")
		} else {
			body.WriteString(messageStyle.Render(line) + "\n")
		}
	}
	if m.loading {
		body.WriteString(loadingStyle.Render(spinnerFrame(m.animationFrame)) + "\n")
	}

	chat := chatPanel.Render(body.String())
	input := inputStyle.Render(m.input + "│")
	return chat + "\n" + input
}

func spinnerFrame(frame int) string {
	arc := []string{"◜", "◠", "◝", "◞", "◡", "◟"}
	return arc[frame%len(arc)]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
