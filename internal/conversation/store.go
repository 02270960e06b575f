package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ragchat/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound is returned for ids that were never issued or were deleted.
var ErrNotFound = errors.New("conversation not found")

// Store keeps the ordered message history of every conversation.
type Store interface {
	// Create issues a new id and stores the optional seed messages under it.
	Create(ctx context.Context, seed ...models.Message) (string, error)
	Get(ctx context.Context, id string) ([]models.Message, error)
	Append(ctx context.Context, id string, msg models.Message) error
	Delete(ctx context.Context, id string) error
	// List returns all known ids in no particular order.
	List(ctx context.Context) ([]string, error)
}

// NewID returns a random UUIDv4 in canonical form.
func NewID() string {
	return uuid.NewString()
}

// NormalizeID validates raw as a UUID and returns its canonical lowercase form.
func NormalizeID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid conversation id %q: %w", raw, err)
	}
	return id.String(), nil
}
