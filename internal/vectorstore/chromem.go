package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"ragchat/internal/config"
	"ragchat/internal/logging"
	"ragchat/internal/models"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemStore is an embedded index, persistent when a path is configured.
type ChromemStore struct {
	db         *chromem.DB
	collection string
	dim        int
	logger     *zap.Logger

	mu  sync.RWMutex
	col *chromem.Collection
}

// vectors always arrive precomputed
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem collection expects precomputed embeddings")
}

func NewChromemStore(cfg config.VectorStoreConfig, logger *zap.Logger) (*ChromemStore, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create chromem directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db %s: %w", cfg.Path, err)
		}
	} else {
		db = chromem.NewDB()
	}
	return &ChromemStore{
		db:         db,
		collection: cfg.Collection,
		dim:        cfg.Dimension,
		logger:     logging.OrNop(logger),
	}, nil
}

func (c *ChromemStore) EnsureCollection(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.col != nil {
		return nil
	}
	col, err := c.db.GetOrCreateCollection(c.collection,
		map[string]string{"dimension": strconv.Itoa(c.dim), "metric": "cosine"}, noEmbedding)
	if err != nil {
		return fmt.Errorf("get or create collection %s: %w", c.collection, err)
	}
	c.col = col
	return nil
}

func (c *ChromemStore) collectionOrErr(ctx context.Context) (*chromem.Collection, error) {
	c.mu.RLock()
	col := c.col
	c.mu.RUnlock()
	if col != nil {
		return col, nil
	}
	if err := c.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.col, nil
}

func (c *ChromemStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	col, err := c.collectionOrErr(ctx)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, 0, len(records))
	for _, r := range records {
		if err := checkDimension(r.Vector, c.dim); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		docs = append(docs, chromem.Document{
			ID: r.ID,
			Metadata: map[string]string{
				fieldFilename: r.Filename,
				fieldPage:     strconv.Itoa(r.Page),
				fieldType:     recordType,
			},
			Embedding: r.Vector,
			Content:   r.Content,
		})
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add %d documents: %w", len(docs), err)
	}
	return nil
}

func (c *ChromemStore) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	if err := checkDimension(vector, c.dim); err != nil {
		return nil, err
	}
	col, err := c.collectionOrErr(ctx)
	if err != nil {
		return nil, err
	}
	n := topK
	if count := col.Count(); count < n {
		n = count
	}
	if n <= 0 {
		return []models.Match{}, nil
	}
	results, err := col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", c.collection, err)
	}
	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		page, err := strconv.Atoi(r.Metadata[fieldPage])
		if err != nil {
			c.logger.Warn("document without page metadata", zap.String("id", r.ID))
		}
		matches = append(matches, models.Match{
			ID:       r.ID,
			Filename: r.Metadata[fieldFilename],
			Page:     page,
			Content:  r.Content,
			Score:    float64(r.Similarity),
		})
	}
	sortByScore(matches)
	return matches, nil
}

// Count reports the number of stored records.
func (c *ChromemStore) Count(ctx context.Context) (int, error) {
	col, err := c.collectionOrErr(ctx)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

func (c *ChromemStore) Close() error {
	return nil
}

func sortByScore(matches []models.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}
