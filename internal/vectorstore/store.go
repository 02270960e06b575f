package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ragchat/internal/config"
	"ragchat/internal/models"

	"go.uber.org/zap"
)

// ErrDimensionMismatch is returned for vectors whose length differs from the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Record is one indexed PDF page.
type Record struct {
	ID       string
	Vector   []float32
	Filename string
	Page     int
	Content  string
}

// Store is the similarity index used for retrieval and ingestion.
type Store interface {
	// EnsureCollection creates the collection with the configured dimension and cosine
	// metric when it does not exist yet.
	EnsureCollection(ctx context.Context) error
	// Upsert overwrites records that share an id.
	Upsert(ctx context.Context, records []Record) error
	// Query returns at most topK matches ordered by descending score.
	Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error)
	Close() error
}

// RecordID is the deterministic id of one page, so re-ingesting a file overwrites it.
func RecordID(stem string, page int) string {
	return fmt.Sprintf("%s_page_%d_text", stem, page)
}

func checkDimension(vector []float32, dim int) error {
	if len(vector) != dim {
		return fmt.Errorf("%w: got %d, index expects %d", ErrDimensionMismatch, len(vector), dim)
	}
	return nil
}

// New opens the backend named in cfg.
func New(ctx context.Context, cfg config.VectorStoreConfig, logger *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "milvus":
		return NewMilvusStore(ctx, cfg, logger)
	case "chromem":
		return NewChromemStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported vector store backend: %s", cfg.Backend)
	}
}
