package assistant

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid chat input")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmbedding            = errors.New("failed to generate embedding for the query text")
	ErrSearch               = errors.New("error querying vector index")
	ErrGeneration           = errors.New("error generating chat response")
)
