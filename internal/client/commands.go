package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lox/roshambo/internal/protocol"
)

// ErrUsage is returned for a recognised command with bad arguments
var ErrUsage = errors.New("usage")

// Action is what the console should do with a parsed line
type Action int

const (
	// ActionSend sends Payload to the server
	ActionSend Action = iota
	// ActionSetName changes the name used for the next /connect
	ActionSetName
	// ActionConnect connects to Arg (host:port)
	ActionConnect
	// ActionQuit disconnects and exits
	ActionQuit
)

// Command is one parsed console line
type Command struct {
	Action  Action
	Payload protocol.Payload
	Arg     string
}

// ParseCommand parses a console line. Lines not starting with a slash are chat.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return Command{Action: ActionSend, Payload: protocol.Text{Text: line}}, nil
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "name":
		if rest == "" {
			return Command{}, usage("/name <name>")
		}
		return Command{Action: ActionSetName, Arg: rest}, nil

	case "connect":
		if rest == "" || !strings.Contains(rest, ":") {
			return Command{}, usage("/connect <host:port>")
		}
		return Command{Action: ActionConnect, Arg: rest}, nil

	case "createroom":
		if rest == "" {
			return Command{}, usage("/createroom <name>")
		}
		return send(protocol.RoomCreate{Name: rest}), nil

	case "joinroom":
		if rest == "" {
			return Command{}, usage("/joinroom <name>")
		}
		return send(protocol.RoomJoin{Name: rest}), nil

	case "spectate":
		if rest == "" {
			return Command{}, usage("/spectate <name>")
		}
		return send(protocol.RoomSpectate{Name: rest}), nil

	case "leaveroom":
		return send(protocol.RoomLeave{}), nil

	case "listrooms":
		return send(protocol.RoomList{Query: rest}), nil

	case "ready":
		var ready protocol.Ready
		for _, opt := range strings.Fields(rest) {
			switch strings.ToLower(opt) {
			case "extra":
				ready.ExtraMoves = true
			case "cooldown":
				ready.Cooldown = true
			default:
				return Command{}, usage("/ready [extra] [cooldown]")
			}
		}
		return send(ready), nil

	case "pick":
		if rest == "" {
			return Command{}, usage("/pick <move>")
		}
		return send(protocol.Pick{Move: rest}), nil

	case "away":
		return send(protocol.ToggleAway{}), nil

	case "quit", "disconnect", "logout", "logoff":
		return Command{Action: ActionQuit}, nil
	}

	return Command{}, fmt.Errorf("unknown command /%s", name)
}

func send(p protocol.Payload) Command {
	return Command{Action: ActionSend, Payload: p}
}

func usage(text string) error {
	return fmt.Errorf("%w: %s", ErrUsage, text)
}
