package dto

import "encoding/json"

// Realtime event names multiplexed over a single websocket connection.
const (
	EventJoinChat        = "join_chat"
	EventSendChatMessage = "send_chat_message"
	EventChatMessage     = "chat_message"
	EventChatHistory     = "chat_history"
	EventTicketsUpdated  = "tickets_updated"
	EventJoinRoom        = "join_room"
	EventOffer           = "offer"
	EventAnswer          = "answer"
	EventICECandidate    = "ice_candidate"
	EventLeaveRoom       = "leave_room"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventError           = "error"
)

// RealtimeEnvelope frames every websocket payload in both directions.
type RealtimeEnvelope struct {
	Event string          `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinChatPayload subscribes the connection to a question's chat room.
type JoinChatPayload struct {
	QuestionID uint `json:"question_id" validate:"required"`
}

// SendChatMessagePayload relays a chat message over the socket. Sender
// identity comes from the authenticated connection, never from the payload.
type SendChatMessagePayload struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	Content    string `json:"content" validate:"required,min=1,max=4000"`
}

// ChatHistoryPayload replays persisted messages when a client joins a room.
type ChatHistoryPayload struct {
	QuestionID uint                  `json:"question_id"`
	Messages   []ChatMessageResponse `json:"messages"`
}

// JoinRoomPayload registers the connection in a signaling room.
type JoinRoomPayload struct {
	Room string `json:"room" validate:"required,min=3,max=128"`
}

// LeaveRoomPayload removes the connection from a signaling room.
type LeaveRoomPayload struct {
	Room string `json:"room" validate:"required,min=3,max=128"`
}

// SignalPayload carries an SDP offer or answer through the relay. The relay
// never inspects Signal beyond passing it to the other peer.
type SignalPayload struct {
	Room   string          `json:"room" validate:"required,min=3,max=128"`
	Signal json.RawMessage `json:"signal" validate:"required"`
}

// OutboundSignalPayload is the relayed form delivered to peers, stamped with
// the server-derived sender identity.
type OutboundSignalPayload struct {
	Room     string          `json:"room"`
	CallerID uint            `json:"caller_id"`
	Signal   json.RawMessage `json:"signal"`
}

// ICECandidatePayload relays a network candidate to the other peers in a room.
type ICECandidatePayload struct {
	Room      string          `json:"room" validate:"required,min=3,max=128"`
	Candidate json.RawMessage `json:"candidate" validate:"required"`
}

// OutboundICECandidatePayload is the relayed candidate delivered to peers.
type OutboundICECandidatePayload struct {
	Room      string          `json:"room"`
	CallerID  uint            `json:"caller_id"`
	Candidate json.RawMessage `json:"candidate"`
}

// PresencePayload announces membership changes in a signaling room.
type PresencePayload struct {
	Room   string `json:"room"`
	UserID uint   `json:"user_id"`
}

// RealtimeErrorPayload reports a failed socket operation back to the sender.
type RealtimeErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
