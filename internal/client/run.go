package client

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/K41-max/mahjong/internal/protocol"
	"github.com/K41-max/mahjong/internal/session"
)

// CommandKind identifies a user-initiated operation.
type CommandKind int

const (
	CmdCreate CommandKind = iota
	CmdJoin
	CmdRandom
	CmdAction
)

// Command is one user-initiated operation fed into the run loop.
type Command struct {
	Kind     CommandKind
	Name     string
	RoomCode string
	Action   protocol.Action
}

// Run drives the session from this client's event stream, the countdown
// ticker and the user's commands. It is the single logical thread of the
// client: every state transition happens here, one at a time, so the session
// needs no locking. Run returns when the context is cancelled, the commands
// channel closes, or the connection drops.
func Run(ctx context.Context, c *Client, sess *session.Session, commands <-chan Command) error {
	countdown := sess.Countdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-c.Events():
			if !ok {
				return ErrConnectionClosed
			}
			sess.HandleEvent(event)

		case <-countdown.TickC():
			countdown.Tick()

		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			if err := apply(sess, cmd); err != nil {
				// Validation and gating failures are advisory; the user
				// simply retries.
				log.Debug().Err(err).Int("command", int(cmd.Kind)).Msg("command rejected")
			}
		}
	}
}

func apply(sess *session.Session, cmd Command) error {
	switch cmd.Kind {
	case CmdCreate:
		return sess.CreateRoom(cmd.Name)
	case CmdJoin:
		return sess.JoinRoom(cmd.Name, cmd.RoomCode)
	case CmdRandom:
		return sess.JoinRandom(cmd.Name)
	case CmdAction:
		return sess.SubmitAction(cmd.Action)
	}
	return nil
}
