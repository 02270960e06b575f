package models

import "encoding/json"

type FrameKind int

const (
	FrameConversationID FrameKind = iota
	FrameUserName
	FrameMessage
	FrameError
)

// Frame is one newline-delimited JSON object of a streamed answer.
type Frame struct {
	Kind  FrameKind
	Value string
	// Null marks a user name frame that carries no name.
	Null bool
}

func ConversationIDFrame(id string) Frame { return Frame{Kind: FrameConversationID, Value: id} }

func UserNameFrame(name string) Frame {
	return Frame{Kind: FrameUserName, Value: name, Null: name == ""}
}

func MessageFrame(fragment string) Frame { return Frame{Kind: FrameMessage, Value: fragment} }

func ErrorFrame(msg string) Frame { return Frame{Kind: FrameError, Value: msg} }

func (f Frame) MarshalJSON() ([]byte, error) {
	var value interface{} = f.Value
	if f.Kind == FrameUserName && f.Null {
		value = nil
	}
	var key string
	switch f.Kind {
	case FrameConversationID:
		key = "conversation_id"
	case FrameUserName:
		key = "user_name"
	case FrameError:
		key = "error"
	default:
		key = "message"
	}
	return json.Marshal(map[string]interface{}{key: value})
}
