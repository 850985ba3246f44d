package gateway

import (
	"encoding/json"
	"errors"

	"github.com/tellerdesk/tellerdesk/internal/conversation"
	"github.com/tellerdesk/tellerdesk/internal/message"
	"github.com/tellerdesk/tellerdesk/internal/presence"
)

// Client frame types.
const (
	FrameJoin        = "join"
	FrameLeave       = "leave"
	FrameTyping      = "typing"
	FrameSend        = "message.send"
	FrameRead        = "message.read"
	FramePresenceSet = "presence.set"
	FramePing        = "ping"
)

// Server-only frame types. Event frames reuse the event type name.
const (
	FrameAck   = "ack"
	FrameError = "error"
	FramePong  = "pong"
)

// Frame is the envelope in both directions. ID is chosen by the client and echoed in
// the matching ack or error.
type Frame struct {
	Type           string          `json:"type"`
	ID             string          `json:"id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

type roomRequest struct {
	ConversationID string `json:"conversation_id"`
}

type typingRequest struct {
	ConversationID string `json:"conversation_id"`
	Typing         *bool  `json:"typing,omitempty"`
}

type readRequest struct {
	ConversationID string `json:"conversation_id"`
	UpToMessageID  string `json:"up_to_message_id"`
}

type presenceRequest struct {
	Status string `json:"status"`
}

// JoinAck is the data of the ack for a join frame.
type JoinAck struct {
	ConversationID string                    `json:"conversation_id"`
	Capabilities   conversation.Capabilities `json:"capabilities"`
}

// TypingState is the payload of typing events.
type TypingState struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	codeInvalid   = "invalid"
	codeForbidden = "forbidden"
	codeNotFound  = "not_found"
	codeNotJoined = "not_joined"
	codeUnknown   = "unknown_type"
	codeInternal  = "internal"
)

var (
	errNotJoined   = errors.New("join the conversation first")
	errBadFrame    = errors.New("malformed frame")
	errUnknownType = errors.New("unknown frame type")
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, errNotJoined):
		return codeNotJoined
	case errors.Is(err, errUnknownType):
		return codeUnknown
	case errors.Is(err, conversation.ErrPermissionDenied),
		errors.Is(err, message.ErrReadOnly),
		errors.Is(err, message.ErrNotAuthor),
		errors.Is(err, message.ErrNotParticipant):
		return codeForbidden
	case errors.Is(err, conversation.ErrConversationNotFound),
		errors.Is(err, message.ErrMessageNotFound):
		return codeNotFound
	case errors.Is(err, errBadFrame),
		errors.Is(err, message.ErrEmptyMessage),
		errors.Is(err, message.ErrContentTooLong),
		errors.Is(err, message.ErrTooManyAttachments),
		errors.Is(err, message.ErrAttachmentTooLarge),
		errors.Is(err, message.ErrInvalidAttachment),
		errors.Is(err, message.ErrInvalidReply),
		errors.Is(err, presence.ErrInvalidStatus):
		return codeInvalid
	}
	return codeInternal
}

func encode(frame Frame) []byte {
	raw, err := json.Marshal(frame)
	if err != nil {
		return nil
	}
	return raw
}

func ackFrame(id string, data any) []byte {
	frame := Frame{Type: FrameAck, ID: id}
	if data != nil {
		frame.Data, _ = json.Marshal(data)
	}
	return encode(frame)
}

func errorFrame(id string, err error) []byte {
	code := errorCode(err)
	msg := err.Error()
	if code == codeInternal {
		msg = "internal error"
	}
	data, _ := json.Marshal(errorBody{Code: code, Message: msg})
	return encode(Frame{Type: FrameError, ID: id, Data: data})
}
