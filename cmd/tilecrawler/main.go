// Command tilecrawler is a terminal demonstration harness for the
// Intelligence Core: a small Bubble Tea front end that submits parsed
// player commands to a session.Engine and renders the resulting narrative.
// It is the only piece of this repository permitted to talk to a terminal;
// every other package is driven purely through Go values and channels.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	model, cleanup, err := createApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
