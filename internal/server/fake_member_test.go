package server

import (
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/lox/roshambo/internal/game"
	"github.com/lox/roshambo/internal/protocol"
)

// fakeMember records everything sent to it
type fakeMember struct {
	mu        sync.Mutex
	user      protocol.User
	room      *Room
	inbox     []*protocol.Message
	failSends bool
	closed    bool
}

func newFakeMember(id protocol.ClientID, name string) *fakeMember {
	m := &fakeMember{}
	m.user.Reset()
	m.user.ClientID = id
	m.user.Name = name
	return m
}

func (m *fakeMember) ID() protocol.ClientID { return m.User().ClientID }
func (m *fakeMember) DisplayName() string   { return m.User().DisplayName() }

func (m *fakeMember) User() protocol.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

func (m *fakeMember) Spectator() bool { return m.User().Spectator }

func (m *fakeMember) SetSpectator(spectator bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user.SetSpectator(spectator)
}

func (m *fakeMember) SetStanding(points int, status protocol.PlayerStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user.Points = points
	m.user.Status = status
}

func (m *fakeMember) Room() *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.room
}

func (m *fakeMember) SetRoom(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.room = room
}

func (m *fakeMember) Send(msg *protocol.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrConnectionClosed
	}
	if m.failSends {
		return ErrSendBufferFull
	}
	m.inbox = append(m.inbox, msg)
	return nil
}

func (m *fakeMember) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeMember) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *fakeMember) setFailSends(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSends = fail
}

func (m *fakeMember) clearInbox() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbox = nil
}

func (m *fakeMember) payloads(t *testing.T) []protocol.Payload {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]protocol.Payload, 0, len(m.inbox))
	for _, msg := range m.inbox {
		p, err := protocol.Decode(msg)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func received[T protocol.Payload](t *testing.T, m *fakeMember) []T {
	t.Helper()
	var out []T
	for _, p := range m.payloads(t) {
		if v, ok := p.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func lastError(t *testing.T, m *fakeMember) protocol.Error {
	t.Helper()
	errs := received[protocol.Error](t, m)
	require.NotEmpty(t, errs, "expected an error reply for %s", m.DisplayName())
	return errs[len(errs)-1]
}

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(testLogger(), quartz.NewMock(t), game.DefaultRules())
}

// admit creates a member with the next id and puts it in the lobby
func admit(r *Registry, name string) *fakeMember {
	m := newFakeMember(r.NextID(), name)
	r.Admit(m)
	return m
}
