package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/roshambo/internal/protocol"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"hello there", Command{Action: ActionSend, Payload: protocol.Text{Text: "hello there"}}},
		{"/name ana", Command{Action: ActionSetName, Arg: "ana"}},
		{"/connect localhost:3000", Command{Action: ActionConnect, Arg: "localhost:3000"}},
		{"/createroom Arena", Command{Action: ActionSend, Payload: protocol.RoomCreate{Name: "Arena"}}},
		{"/joinroom arena", Command{Action: ActionSend, Payload: protocol.RoomJoin{Name: "arena"}}},
		{"/spectate arena", Command{Action: ActionSend, Payload: protocol.RoomSpectate{Name: "arena"}}},
		{"/leaveroom", Command{Action: ActionSend, Payload: protocol.RoomLeave{}}},
		{"/listrooms", Command{Action: ActionSend, Payload: protocol.RoomList{}}},
		{"/listrooms ar", Command{Action: ActionSend, Payload: protocol.RoomList{Query: "ar"}}},
		{"/ready", Command{Action: ActionSend, Payload: protocol.Ready{}}},
		{"/READY cooldown Extra", Command{Action: ActionSend, Payload: protocol.Ready{ExtraMoves: true, Cooldown: true}}},
		{"/pick Rock", Command{Action: ActionSend, Payload: protocol.Pick{Move: "Rock"}}},
		{"/away", Command{Action: ActionSend, Payload: protocol.ToggleAway{}}},
		{"/quit", Command{Action: ActionQuit}},
		{"/logoff", Command{Action: ActionQuit}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"/name", "/connect localhost", "/createroom", "/pick", "/ready now"} {
		_, err := ParseCommand(line)
		assert.ErrorIs(t, err, ErrUsage, line)
	}

	_, err := ParseCommand("/dance")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUsage)
}
