package service

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/observability"
)

// SignalingPeer is one participant in a meeting room: an authenticated
// websocket connection able to receive relayed envelopes.
type SignalingPeer interface {
	UserID() uint
	Enqueue(envelope dto.RealtimeEnvelope) bool
}

// SignalingService relays WebRTC connection-setup metadata between the peers
// of a meeting room. Membership is in-memory only; nothing about a call is
// persisted and rooms vanish when their last member leaves. Candidates are
// not buffered for late joiners: the reference client bundles all candidates
// into the offer/answer exchange.
type SignalingService struct {
	mu     sync.Mutex
	rooms  map[string]map[SignalingPeer]struct{}
	logger zerolog.Logger
}

// NewSignalingService constructs an empty relay.
func NewSignalingService(logger zerolog.Logger) *SignalingService {
	return &SignalingService{
		rooms:  make(map[string]map[SignalingPeer]struct{}),
		logger: logger.With().Str("component", "signaling_service").Logger(),
	}
}

// Join registers the peer in the room, announces it to existing members, and
// returns the member count after joining. Joining the same room twice is a
// no-op for membership.
func (s *SignalingService) Join(room string, peer SignalingPeer) int {
	s.mu.Lock()
	members, exists := s.rooms[room]
	if !exists {
		members = make(map[SignalingPeer]struct{})
		s.rooms[room] = members
		observability.SignalingRooms().Inc()
	}
	if _, already := members[peer]; already {
		count := len(members)
		s.mu.Unlock()
		return count
	}
	members[peer] = struct{}{}
	count := len(members)
	others := s.othersLocked(room, peer)
	s.mu.Unlock()

	s.announce(others, dto.EventUserJoined, dto.PresencePayload{Room: room, UserID: peer.UserID()})
	s.logger.Debug().Str("room", room).Uint("user_id", peer.UserID()).Int("members", count).Msg("peer joined signaling room")

	return count
}

// Leave removes the peer, notifies remaining members exactly once so they can
// tear down their peer connection, and returns the remaining member count.
func (s *SignalingService) Leave(room string, peer SignalingPeer) int {
	s.mu.Lock()
	members, exists := s.rooms[room]
	if !exists {
		s.mu.Unlock()
		return 0
	}
	if _, present := members[peer]; !present {
		count := len(members)
		s.mu.Unlock()
		return count
	}
	delete(members, peer)
	remaining := len(members)
	if remaining == 0 {
		delete(s.rooms, room)
		observability.SignalingRooms().Dec()
	}
	others := s.othersLocked(room, peer)
	s.mu.Unlock()

	s.announce(others, dto.EventUserLeft, dto.PresencePayload{Room: room, UserID: peer.UserID()})
	s.logger.Debug().Str("room", room).Uint("user_id", peer.UserID()).Int("remaining", remaining).Msg("peer left signaling room")

	return remaining
}

// LeaveAll removes a disconnected peer from every room it joined and returns
// the remaining member count per room.
func (s *SignalingService) LeaveAll(peer SignalingPeer) map[string]int {
	s.mu.Lock()
	rooms := make([]string, 0)
	for room, members := range s.rooms {
		if _, present := members[peer]; present {
			rooms = append(rooms, room)
		}
	}
	s.mu.Unlock()

	out := make(map[string]int, len(rooms))
	for _, room := range rooms {
		out[room] = s.Leave(room, peer)
	}
	return out
}

// RelayOffer forwards an SDP offer to the other members of the room.
func (s *SignalingService) RelayOffer(room string, from SignalingPeer, signal json.RawMessage) {
	s.relay(room, from, dto.EventOffer, signal)
}

// RelayAnswer forwards an SDP answer back toward the initiator.
func (s *SignalingService) RelayAnswer(room string, from SignalingPeer, signal json.RawMessage) {
	s.relay(room, from, dto.EventAnswer, signal)
}

// RelayCandidate forwards an ICE candidate to the other members as it arrives.
func (s *SignalingService) RelayCandidate(room string, from SignalingPeer, candidate json.RawMessage) {
	others := s.others(room, from)
	envelope, err := NewEnvelope(dto.EventICECandidate, dto.OutboundICECandidatePayload{
		Room:      room,
		CallerID:  from.UserID(),
		Candidate: candidate,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build candidate envelope")
		return
	}

	for _, peer := range others {
		peer.Enqueue(envelope)
	}
	observability.SignalingRelayed().WithLabelValues(dto.EventICECandidate).Add(float64(len(others)))
}

// Members reports the current member count of a room.
func (s *SignalingService) Members(room string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[room])
}

func (s *SignalingService) relay(room string, from SignalingPeer, event string, signal json.RawMessage) {
	others := s.others(room, from)
	envelope, err := NewEnvelope(event, dto.OutboundSignalPayload{
		Room:     room,
		CallerID: from.UserID(),
		Signal:   signal,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("event", event).Msg("failed to build signal envelope")
		return
	}

	for _, peer := range others {
		peer.Enqueue(envelope)
	}
	observability.SignalingRelayed().WithLabelValues(event).Add(float64(len(others)))
}

func (s *SignalingService) others(room string, except SignalingPeer) []SignalingPeer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.othersLocked(room, except)
}

func (s *SignalingService) othersLocked(room string, except SignalingPeer) []SignalingPeer {
	members := s.rooms[room]
	out := make([]SignalingPeer, 0, len(members))
	for peer := range members {
		if peer == except {
			continue
		}
		out = append(out, peer)
	}
	return out
}

func (s *SignalingService) announce(peers []SignalingPeer, event string, payload dto.PresencePayload) {
	envelope, err := NewEnvelope(event, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", event).Msg("failed to build presence envelope")
		return
	}
	for _, peer := range peers {
		peer.Enqueue(envelope)
	}
}
