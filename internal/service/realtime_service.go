package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/algoprep/algoprep-api/internal/dto"
	"github.com/algoprep/algoprep-api/internal/observability"
)

// RealtimeService owns the lifecycle of one multiplexed websocket connection:
// chat room membership, message relay, and WebRTC signaling all share the
// single authenticated socket.
type RealtimeService struct {
	hub       *Hub
	chat      ChatService
	signaling *SignalingService
	tickets   TicketService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRealtimeService constructs the websocket dispatcher.
func NewRealtimeService(hub *Hub, chat ChatService, signaling *SignalingService, tickets TicketService, validate *validator.Validate, logger zerolog.Logger) *RealtimeService {
	return &RealtimeService{
		hub:       hub,
		chat:      chat,
		signaling: signaling,
		tickets:   tickets,
		validator: validate,
		logger:    logger.With().Str("component", "realtime_service").Logger(),
	}
}

// ServeConnection runs the read loop for an authenticated connection and
// blocks until the socket closes. Identity comes from the verified token, so
// every relayed frame carries a trustworthy sender.
func (s *RealtimeService) ServeConnection(ctx context.Context, conn *websocket.Conn, userID uint) {
	client := s.hub.NewClient(conn, userID)
	s.hub.Register(client)
	observability.RealtimeConnections().Inc()

	go client.Writer()

	defer func() {
		s.cleanup(ctx, client)
		observability.RealtimeConnections().Dec()
	}()

	for {
		var envelope dto.RealtimeEnvelope
		if err := conn.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Uint("user_id", userID).Msg("realtime connection closed unexpectedly")
			}
			return
		}
		s.dispatch(ctx, client, envelope)
	}
}

func (s *RealtimeService) dispatch(ctx context.Context, client *HubClient, envelope dto.RealtimeEnvelope) {
	switch envelope.Event {
	case dto.EventJoinChat:
		s.handleJoinChat(ctx, client, envelope.Data)
	case dto.EventSendChatMessage:
		s.handleSendChatMessage(ctx, client, envelope.Data)
	case dto.EventJoinRoom:
		s.handleJoinRoom(ctx, client, envelope.Data)
	case dto.EventLeaveRoom:
		s.handleLeaveRoom(ctx, client, envelope.Data)
	case dto.EventOffer:
		s.handleSignal(client, envelope.Data, dto.EventOffer)
	case dto.EventAnswer:
		s.handleSignal(client, envelope.Data, dto.EventAnswer)
	case dto.EventICECandidate:
		s.handleICECandidate(client, envelope.Data)
	default:
		s.sendError(client, envelope.Event, "unknown event")
	}
}

// handleJoinChat subscribes the connection to the question's room and replays
// the stored transcript so late joiners see prior context.
func (s *RealtimeService) handleJoinChat(ctx context.Context, client *HubClient, data json.RawMessage) {
	var payload dto.JoinChatPayload
	if !s.decode(client, dto.EventJoinChat, data, &payload) {
		return
	}

	s.hub.Join(chatRoom(payload.QuestionID), client)

	messages, err := s.chat.Messages(ctx, payload.QuestionID)
	if err != nil {
		s.logger.Error().Err(err).Uint("question_id", payload.QuestionID).Msg("failed to load chat history")
		s.sendError(client, dto.EventJoinChat, "could not load chat history")
		return
	}

	envelope, err := NewEnvelope(dto.EventChatHistory, dto.ChatHistoryPayload{
		QuestionID: payload.QuestionID,
		Messages:   messages,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build chat history envelope")
		return
	}
	client.Enqueue(envelope)
}

func (s *RealtimeService) handleSendChatMessage(ctx context.Context, client *HubClient, data json.RawMessage) {
	var payload dto.SendChatMessagePayload
	if !s.decode(client, dto.EventSendChatMessage, data, &payload) {
		return
	}

	if _, err := s.chat.AddMessage(ctx, payload.QuestionID, client.UserID(), payload.Content); err != nil {
		s.logger.Warn().Err(err).Uint("question_id", payload.QuestionID).Uint("user_id", client.UserID()).Msg("chat message rejected")
		s.sendError(client, dto.EventSendChatMessage, "message could not be delivered")
	}
}

// handleJoinRoom places the connection in a signaling room. When the second
// peer arrives the backing ticket moves to its active-call state.
func (s *RealtimeService) handleJoinRoom(ctx context.Context, client *HubClient, data json.RawMessage) {
	var payload dto.JoinRoomPayload
	if !s.decode(client, dto.EventJoinRoom, data, &payload) {
		return
	}

	count := s.signaling.Join(payload.Room, client)
	if count >= 2 {
		if err := s.tickets.MarkVideoActive(ctx, payload.Room); err != nil {
			s.logger.Warn().Err(err).Str("room", payload.Room).Msg("failed to mark video meet active")
		}
	}
}

func (s *RealtimeService) handleLeaveRoom(ctx context.Context, client *HubClient, data json.RawMessage) {
	var payload dto.LeaveRoomPayload
	if !s.decode(client, dto.EventLeaveRoom, data, &payload) {
		return
	}

	remaining := s.signaling.Leave(payload.Room, client)
	if remaining == 0 {
		if err := s.tickets.EndVideoMeet(ctx, payload.Room); err != nil {
			s.logger.Warn().Err(err).Str("room", payload.Room).Msg("failed to end video meet")
		}
	}
}

func (s *RealtimeService) handleSignal(client *HubClient, data json.RawMessage, event string) {
	var payload dto.SignalPayload
	if !s.decode(client, event, data, &payload) {
		return
	}

	switch event {
	case dto.EventOffer:
		s.signaling.RelayOffer(payload.Room, client, payload.Signal)
	case dto.EventAnswer:
		s.signaling.RelayAnswer(payload.Room, client, payload.Signal)
	}
}

func (s *RealtimeService) handleICECandidate(client *HubClient, data json.RawMessage) {
	var payload dto.ICECandidatePayload
	if !s.decode(client, dto.EventICECandidate, data, &payload) {
		return
	}

	s.signaling.RelayCandidate(payload.Room, client, payload.Candidate)
}

// cleanup mirrors an explicit leave_room for every room the peer was still in
// when the socket dropped.
func (s *RealtimeService) cleanup(ctx context.Context, client *HubClient) {
	remaining := s.signaling.LeaveAll(client)
	for room, count := range remaining {
		if count == 0 {
			if err := s.tickets.EndVideoMeet(ctx, room); err != nil {
				s.logger.Warn().Err(err).Str("room", room).Msg("failed to end video meet on disconnect")
			}
		}
	}
	client.Close()
}

func (s *RealtimeService) decode(client *HubClient, event string, data json.RawMessage, out interface{}) bool {
	if len(data) == 0 {
		s.sendError(client, event, "missing payload")
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.sendError(client, event, "malformed payload")
		return false
	}
	if err := s.validator.Struct(out); err != nil {
		s.sendError(client, event, "invalid payload")
		return false
	}
	return true
}

func (s *RealtimeService) sendError(client *HubClient, event, message string) {
	envelope, err := NewEnvelope(dto.EventError, dto.RealtimeErrorPayload{Event: event, Message: message})
	if err != nil {
		return
	}
	client.Enqueue(envelope)
}
