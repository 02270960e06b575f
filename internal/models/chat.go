package models

// ChatResponse is the blocking answer of one chat turn.
type ChatResponse struct {
	Answer         string  `json:"answer"`
	Sources        Sources `json:"sources"`
	ConversationID string  `json:"conversation_id"`
}
