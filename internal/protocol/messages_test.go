package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReturnsTypedPayload(t *testing.T) {
	msg, err := NewMessage(Ready{ExtraMoves: true, Cooldown: true})
	require.NoError(t, err)
	assert.Equal(t, TypeReady, msg.Type)

	payload, err := Decode(msg)
	require.NoError(t, err)

	ready, ok := payload.(Ready)
	require.True(t, ok, "expected Ready, got %T", payload)
	assert.True(t, ready.ExtraMoves)
	assert.True(t, ready.Cooldown)
}

func TestDecodeEmptyBody(t *testing.T) {
	payload, err := Decode(&Message{Type: TypeRoomLeave})
	require.NoError(t, err)
	assert.Equal(t, RoomLeave{}, payload)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode(&Message{Type: "shuffle", Data: []byte(`{}`)})
	require.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestDecodeMalformedBody(t *testing.T) {
	_, err := Decode(&Message{Type: TypePick, Data: []byte(`{"move": 7}`)})
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestUnmarshalRequiresType(t *testing.T) {
	_, err := Unmarshal([]byte(`{"data":{"name":"x"}}`))
	require.ErrorIs(t, err, ErrMalformedMessage)

	_, err = Unmarshal([]byte(`not json`))
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestUserDisplayName(t *testing.T) {
	u := User{ClientID: 7, Name: "ana"}
	assert.Equal(t, "ana#7", u.DisplayName())
}

func TestUserSpectatorStatus(t *testing.T) {
	u := User{ClientID: 1, Name: "bo", Status: StatusActive}

	u.SetSpectator(true)
	assert.Equal(t, StatusSpectating, u.Status)

	u.SetSpectator(false)
	assert.Equal(t, StatusActive, u.Status)

	u.Points = 4
	u.Reset()
	assert.Equal(t, User{Status: StatusActive}, u)
}

func TestReaderWriterFraming(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteMessage(MustMessage(Connect{Name: "ana"})))
	buf.WriteString("\n\n")
	require.NoError(t, w.WriteMessage(MustMessage(Pick{Move: "rock"})))

	r := NewReader(&buf)

	first, err := r.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TypeConnect, first.Type)

	second, err := r.ReadMessage()
	require.NoError(t, err)
	payload, err := Decode(second)
	require.NoError(t, err)
	assert.Equal(t, Pick{Move: "rock"}, payload)

	_, err = r.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderRejectsOversizedLine(t *testing.T) {
	line := `{"type":"message","data":{"text":"` + strings.Repeat("a", MaxLineSize) + `"}}` + "\n"
	r := NewReader(strings.NewReader(line))

	_, err := r.ReadMessage()
	require.ErrorIs(t, err, ErrLineTooLong)
}

// TestMarshalRaceCondition checks pooled buffers are never aliased by callers.
// Run with -race.
func TestMarshalRaceCondition(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping race condition test in short mode")
	}

	numGoroutines := 20
	numMessages := 100

	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			for j := 0; j < numMessages; j++ {
				want := fmt.Sprintf("room-%d-%d", id, j)
				data, err := Marshal(MustMessage(RoomCreate{Name: want}))
				if err != nil {
					t.Errorf("Marshal failed: %v", err)
					return
				}

				msg, err := Unmarshal(data)
				if err != nil {
					t.Errorf("Unmarshal failed: %v", err)
					return
				}
				payload, err := Decode(msg)
				if err != nil {
					t.Errorf("Decode failed: %v", err)
					return
				}
				if got := payload.(RoomCreate).Name; got != want {
					t.Errorf("Expected %s, got %s", want, got)
					return
				}
			}
		}(i)
	}

	wg.Wait()
}
