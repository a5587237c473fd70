// Package ui is the only component in this repository allowed to talk to a
// terminal: a Bubble Tea front end that translates keystrokes into
// internal/action.Action values, submits them to a session.Engine, and
// renders whatever comes back — the action.Bundle the turn produced, plus
// any eventstream.Delta arriving later from background prefetch. Modeled on
// the teacher's cmd/game/ui package: the same message-driven Update loop,
// generalized from one OpenAI streaming call per turn to one session.Engine
// submission per turn.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tilecrawler/internal/eventstream"
	"tilecrawler/internal/session"
)

// Model is the top-level Bubble Tea model.
type Model struct {
	engine *session.Engine
	debug  bool

	messages []string
	input    string

	width, height int

	loading        bool
	animationFrame int

	sub *eventstream.Subscription
}

// NewModel builds the model and subscribes to the engine's event stream.
func NewModel(engine *session.Engine, debug bool) Model {
	return Model{
		engine:   engine,
		debug:    debug,
		messages: []string{"You awaken at the threshold of the dungeon."},
		sub:      engine.Stream().Subscribe(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForDelta(m.sub), animationTimer())
}

type animationTickMsg struct{}

func animationTimer() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return animationTickMsg{}
	})
}
