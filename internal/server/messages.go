package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vibechat/relay/internal/types"
)

var validate = validator.New()

var errEmptyEnvelope = errors.New("envelope carries no event")

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the inbound envelope. Exactly one event field is
// expected to be set.
type ClientMessage struct {
	BaseMessage
	Join          *JoinPayload          `json:"join,omitempty"`
	Message       *MessagePayload       `json:"message,omitempty"`
	FileMessage   *FileMessagePayload   `json:"file_message,omitempty"`
	Reaction      *ReactionPayload      `json:"reaction,omitempty"`
	ProfileUpdate *ProfileUpdatePayload `json:"profile_update,omitempty"`
	Typing        *TypingPayload        `json:"typing,omitempty"`
	SignalOffer   *SignalPayload        `json:"signal_offer,omitempty"`
	SignalAnswer  *SignalPayload        `json:"signal_answer,omitempty"`
	SignalIce     *SignalPayload        `json:"signal_ice,omitempty"`
	client        *Client
}

type JoinPayload struct {
	Username string `json:"username" validate:"required"`
	Avatar   string `json:"avatar,omitempty"`
}

type MessagePayload struct {
	// Id is optional; the server generates one when absent.
	Id string `json:"id,omitempty"`
	// Content may be empty; an empty text message is still relayed.
	Content string `json:"content"`
	To      string `json:"to,omitempty"`
}

type FileMessagePayload struct {
	// File holds the base64-encoded blob.
	File     string `json:"file" validate:"required"`
	Filename string `json:"filename" validate:"required"`
	FileType string `json:"file_type,omitempty"`
	To       string `json:"to,omitempty"`
}

type ReactionPayload struct {
	MessageId string `json:"message_id" validate:"required"`
	Reaction  string `json:"reaction" validate:"required"`
	Username  string `json:"username" validate:"required"`
}

type ProfileUpdatePayload struct {
	Username string `json:"username" validate:"required"`
	Avatar   string `json:"avatar,omitempty"`
}

type TypingPayload struct {
	To       string `json:"to" validate:"required"`
	IsTyping bool   `json:"is_typing"`
}

// SignalPayload carries an opaque WebRTC signaling body. The relay never
// inspects Payload, it is forwarded verbatim.
type SignalPayload struct {
	To      string          `json:"to" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// validatePayload checks the shape of whichever event the envelope
// carries. Malformed events are rejected at the gateway boundary so they
// never reach shared state.
func (m *ClientMessage) validatePayload() error {
	switch {
	case m.Join != nil:
		return validate.Struct(m.Join)
	case m.Message != nil:
		return validate.Struct(m.Message)
	case m.FileMessage != nil:
		return validate.Struct(m.FileMessage)
	case m.Reaction != nil:
		return validate.Struct(m.Reaction)
	case m.ProfileUpdate != nil:
		return validate.Struct(m.ProfileUpdate)
	case m.Typing != nil:
		return validate.Struct(m.Typing)
	case m.SignalOffer != nil:
		return validate.Struct(m.SignalOffer)
	case m.SignalAnswer != nil:
		return validate.Struct(m.SignalAnswer)
	case m.SignalIce != nil:
		return validate.Struct(m.SignalIce)
	default:
		return errEmptyEnvelope
	}
}

// ServerMessage is the outbound envelope.
type ServerMessage struct {
	BaseMessage
	Response        *Response        `json:"response,omitempty"`
	Roster          *RosterUpdate    `json:"roster,omitempty"`
	History         *HistorySnapshot `json:"history_snapshot,omitempty"`
	MessageReceived *types.Message   `json:"message_received,omitempty"`
	MessageUpdated  *types.Message   `json:"message_updated,omitempty"`
	TypingIndicator *TypingIndicator `json:"typing_indicator,omitempty"`
	SignalOffer     *SignalEvent     `json:"signal_offer,omitempty"`
	SignalAnswer    *SignalEvent     `json:"signal_answer,omitempty"`
	SignalIce       *SignalEvent     `json:"signal_ice,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type RosterUpdate struct {
	Participants []types.Participant `json:"participants"`
}

type HistorySnapshot struct {
	Messages []types.Message `json:"messages"`
}

type TypingIndicator struct {
	From     string `json:"from"`
	IsTyping bool   `json:"is_typing"`
}

type SignalEvent struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
