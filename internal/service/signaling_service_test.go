package service

import (
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/algoprep/algoprep-api/internal/dto"
)

type fakePeer struct {
	id        uint
	mu        sync.Mutex
	envelopes []dto.RealtimeEnvelope
}

func (p *fakePeer) UserID() uint { return p.id }

func (p *fakePeer) Enqueue(envelope dto.RealtimeEnvelope) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, envelope)
	return true
}

func (p *fakePeer) received() []dto.RealtimeEnvelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]dto.RealtimeEnvelope, len(p.envelopes))
	copy(out, p.envelopes)
	return out
}

func (p *fakePeer) receivedEvents() []string {
	events := []string{}
	for _, envelope := range p.received() {
		events = append(events, envelope.Event)
	}
	return events
}

func TestSignalingJoinAnnouncesToExistingMembers(t *testing.T) {
	s := NewSignalingService(zerolog.New(io.Discard))

	alice := &fakePeer{id: 1}
	bob := &fakePeer{id: 2}

	require.Equal(t, 1, s.Join("room-1", alice))
	require.Empty(t, alice.received(), "the first member has nobody to hear about")

	require.Equal(t, 2, s.Join("room-1", bob))
	require.Empty(t, bob.received(), "joiners are not echoed their own arrival")

	events := alice.receivedEvents()
	require.Equal(t, []string{dto.EventUserJoined}, events)

	var presence dto.PresencePayload
	require.NoError(t, json.Unmarshal(alice.received()[0].Data, &presence))
	require.Equal(t, uint(2), presence.UserID)
	require.Equal(t, "room-1", presence.Room)

	// Rejoining must not inflate the member count.
	require.Equal(t, 2, s.Join("room-1", bob))
	require.Len(t, alice.received(), 1)
}

func TestSignalingRelayExcludesSender(t *testing.T) {
	s := NewSignalingService(zerolog.New(io.Discard))

	alice := &fakePeer{id: 1}
	bob := &fakePeer{id: 2}
	s.Join("room-1", alice)
	s.Join("room-1", bob)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	s.RelayOffer("room-1", alice, offer)

	require.NotContains(t, alice.receivedEvents(), dto.EventOffer, "the sender never hears its own signal")

	bobEvents := bob.receivedEvents()
	require.Contains(t, bobEvents, dto.EventOffer)

	var relayed dto.OutboundSignalPayload
	for _, envelope := range bob.received() {
		if envelope.Event == dto.EventOffer {
			require.NoError(t, json.Unmarshal(envelope.Data, &relayed))
		}
	}
	require.Equal(t, uint(1), relayed.CallerID, "sender identity is stamped server-side")
	require.JSONEq(t, string(offer), string(relayed.Signal))

	candidate := json.RawMessage(`{"candidate":"candidate:0 1 UDP"}`)
	s.RelayCandidate("room-1", bob, candidate)

	require.Contains(t, alice.receivedEvents(), dto.EventICECandidate)
	require.NotContains(t, bob.receivedEvents(), dto.EventICECandidate)
}

func TestSignalingLeaveNotifiesOnce(t *testing.T) {
	s := NewSignalingService(zerolog.New(io.Discard))

	alice := &fakePeer{id: 1}
	bob := &fakePeer{id: 2}
	s.Join("room-1", alice)
	s.Join("room-1", bob)

	require.Equal(t, 1, s.Leave("room-1", bob))

	leftEvents := 0
	for _, event := range alice.receivedEvents() {
		if event == dto.EventUserLeft {
			leftEvents++
		}
	}
	require.Equal(t, 1, leftEvents)

	// Leaving a room the peer is no longer in must not announce again.
	require.Equal(t, 1, s.Leave("room-1", bob))
	leftEvents = 0
	for _, event := range alice.receivedEvents() {
		if event == dto.EventUserLeft {
			leftEvents++
		}
	}
	require.Equal(t, 1, leftEvents)

	require.Equal(t, 0, s.Leave("room-1", alice))
	require.Zero(t, s.Members("room-1"))
}

func TestSignalingLeaveAllCoversEveryRoom(t *testing.T) {
	s := NewSignalingService(zerolog.New(io.Discard))

	alice := &fakePeer{id: 1}
	bob := &fakePeer{id: 2}
	s.Join("room-1", alice)
	s.Join("room-1", bob)
	s.Join("room-2", bob)

	remaining := s.LeaveAll(bob)
	require.Equal(t, map[string]int{"room-1": 1, "room-2": 0}, remaining)
	require.Contains(t, alice.receivedEvents(), dto.EventUserLeft)
	require.Equal(t, 1, s.Members("room-1"))
	require.Zero(t, s.Members("room-2"))
}
