package main

import (
	"fmt"
	"io"

	"github.com/K41-max/mahjong/internal/protocol"
	"github.com/K41-max/mahjong/internal/session"
)

// termDisplay renders the two regions of the interface as printed sections.
// It is only ever called from the client run loop.
type termDisplay struct {
	out io.Writer
}

func (d *termDisplay) ShowLobby() {
	fmt.Fprintln(d.out, "=== lobby ===")
	fmt.Fprintln(d.out, "commands: create <name> | join <name> <code> | random <name> | quit")
}

func (d *termDisplay) ShowGame(roomCode string) {
	fmt.Fprintf(d.out, "=== room %s ===\n", roomCode)
}

func (d *termDisplay) SetStatus(status string) {
	fmt.Fprintf(d.out, "status: %s\n", status)
}

func (d *termDisplay) RenderRoster(roster []session.Participant) {
	if len(roster) == 0 {
		return
	}
	fmt.Fprintln(d.out, "players:")
	for _, p := range roster {
		fmt.Fprintf(d.out, "  %s - %ds left\n", p.Name, p.RemainingTime)
	}
}

func (d *termDisplay) RenderActions(actions []protocol.Action) {
	if len(actions) == 0 {
		return
	}
	fmt.Fprint(d.out, "actions:")
	for _, a := range actions {
		fmt.Fprintf(d.out, " %s (%s)", a, a.Label())
	}
	fmt.Fprintln(d.out)
}

func (d *termDisplay) SetCountdown(text string) {
	fmt.Fprintf(d.out, "time left: %s\n", text)
}

func (d *termDisplay) ShowMessage(message string) {
	fmt.Fprintf(d.out, "*** %s\n", message)
}
