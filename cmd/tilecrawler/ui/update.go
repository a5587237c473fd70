package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"tilecrawler/internal/action"
	"tilecrawler/internal/eventstream"
	"tilecrawler/internal/session"
	"tilecrawler/internal/worldstate"
)

// bundleMsg carries an action.Bundle back from the goroutine that waited on
// the Engine's Submit result channel.
type bundleMsg struct {
	prefix string
	b      action.Bundle
}

// deltaMsg carries one eventstream.Delta observed on the subscription.
type deltaMsg struct {
	d   eventstream.Delta
	sub *eventstream.Subscription
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case animationTickMsg:
		if m.loading {
			m.animationFrame++
			return m, animationTimer()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case bundleMsg:
		m.loading = false
		m.messages = append(m.messages, renderBundle(msg.prefix, msg.b))
		return m, nil

	case deltaMsg:
		if text := renderDelta(msg.d); text != "" {
			m.messages = append(m.messages, text)
		}
		return m, waitForDelta(msg.sub)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "enter":
		if m.loading {
			return m, nil
		}
		line := strings.TrimSpace(m.input)
		m.input = ""
		if line == "" {
			return m, nil
		}
		m.messages = append(m.messages, "> "+line)
		act, ok := parseCommand(line)
		if !ok {
			m.messages = append(m.messages, "I don't understand that.")
			return m, nil
		}
		m.loading = true
		m.animationFrame = 0
		return m, tea.Batch(submitAction(m.engine, act, ""), animationTimer())

	case "backspace":
		if len(m.input) > 0 && !m.loading {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil

	default:
		if len(msg.String()) == 1 && !m.loading {
			m.input += msg.String()
		}
		return m, nil
	}
}

func submitAction(e *session.Engine, act action.Action, prefix string) tea.Cmd {
	return func() tea.Msg {
		b := <-e.Submit(context.Background(), act)
		return bundleMsg{prefix: prefix, b: b}
	}
}

func waitForDelta(sub *eventstream.Subscription) tea.Cmd {
	return func() tea.Msg {
		d, ok := <-sub.C()
		if !ok {
			return nil
		}
		return deltaMsg{d: d, sub: sub}
	}
}

func renderBundle(prefix string, b action.Bundle) string {
	switch {
	case !b.Success:
		return b.Message
	case b.Dialogue != "":
		return b.Dialogue
	case b.Narrative != "":
		return prefix + b.Narrative
	case b.Message != "":
		return b.Message
	default:
		return "..."
	}
}

func renderDelta(d eventstream.Delta) string {
	var out []string
	for _, c := range d.RoomChanges {
		if c.Kind == worldstate.ChangeDescriptionUp && c.Text != "" {
			out = append(out, "[the room shifts into focus] "+c.Text)
		}
	}
	return strings.Join(out, "\n")
}
