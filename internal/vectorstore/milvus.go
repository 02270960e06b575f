package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"ragchat/internal/config"
	"ragchat/internal/logging"
	"ragchat/internal/models"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

const (
	fieldID       = "id"
	fieldVector   = "vector"
	fieldFilename = "filename"
	fieldPage     = "page"
	fieldContent  = "content"
	fieldType     = "type"

	recordType = "text"

	hnswM              = 16
	hnswEfConstruction = 200
	hnswEf             = 64
)

var outputFields = []string{fieldFilename, fieldPage, fieldContent}

// MilvusStore talks to a remote Milvus deployment.
type MilvusStore struct {
	client     client.Client
	collection string
	dim        int
	logger     *zap.Logger
}

func NewMilvusStore(ctx context.Context, cfg config.VectorStoreConfig, logger *zap.Logger) (*MilvusStore, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Address,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", cfg.Address, err)
	}
	return &MilvusStore{
		client:     c,
		collection: cfg.Collection,
		dim:        cfg.Dimension,
		logger:     logging.OrNop(logger),
	}, nil
}

func (m *MilvusStore) EnsureCollection(ctx context.Context) error {
	exists, err := m.client.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", m.collection, err)
	}
	if exists {
		if err := m.verifyDimension(ctx); err != nil {
			return err
		}
		return m.client.LoadCollection(ctx, m.collection, false)
	}

	schema := entity.NewSchema().
		WithName(m.collection).
		WithDescription("PDF pages").
		WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).
			WithIsPrimaryKey(true).WithMaxLength(512)).
		WithField(entity.NewField().WithName(fieldVector).WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(m.dim))).
		WithField(entity.NewField().WithName(fieldFilename).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(512)).
		WithField(entity.NewField().WithName(fieldPage).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldContent).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().WithName(fieldType).WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(32))

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("create collection %s: %w", m.collection, err)
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, hnswM, hnswEfConstruction)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collection, fieldVector, idx, false); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	m.logger.Info("created collection", zap.String("collection", m.collection), zap.Int("dimension", m.dim))
	return m.client.LoadCollection(ctx, m.collection, false)
}

func (m *MilvusStore) verifyDimension(ctx context.Context) error {
	coll, err := m.client.DescribeCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("describe collection %s: %w", m.collection, err)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != fieldVector {
			continue
		}
		dim, err := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
		if err != nil {
			return fmt.Errorf("read dimension of %s: %w", m.collection, err)
		}
		if dim != m.dim {
			return fmt.Errorf("%w: collection %s has %d, configured %d", ErrDimensionMismatch, m.collection, dim, m.dim)
		}
	}
	return nil
}

func (m *MilvusStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	filenames := make([]string, 0, len(records))
	pages := make([]int64, 0, len(records))
	contents := make([]string, 0, len(records))
	types := make([]string, 0, len(records))
	for _, r := range records {
		if err := checkDimension(r.Vector, m.dim); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
		ids = append(ids, r.ID)
		vectors = append(vectors, r.Vector)
		filenames = append(filenames, r.Filename)
		pages = append(pages, int64(r.Page))
		contents = append(contents, r.Content)
		types = append(types, recordType)
	}

	_, err := m.client.Upsert(ctx, m.collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnFloatVector(fieldVector, m.dim, vectors),
		entity.NewColumnVarChar(fieldFilename, filenames),
		entity.NewColumnInt64(fieldPage, pages),
		entity.NewColumnVarChar(fieldContent, contents),
		entity.NewColumnVarChar(fieldType, types),
	)
	if err != nil {
		return fmt.Errorf("upsert %d records: %w", len(records), err)
	}
	return nil
}

func (m *MilvusStore) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	if err := checkDimension(vector, m.dim); err != nil {
		return nil, err
	}
	sp, err := entity.NewIndexHNSWSearchParam(max(hnswEf, topK))
	if err != nil {
		return nil, fmt.Errorf("search params: %w", err)
	}
	results, err := m.client.Search(ctx, m.collection, nil, "", outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, fieldVector, entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", m.collection, err)
	}

	matches := make([]models.Match, 0, topK)
	for _, rs := range results {
		for i := 0; i < rs.ResultCount; i++ {
			id, _ := rs.IDs.GetAsString(i)
			match := models.Match{ID: id, Score: float64(rs.Scores[i])}
			if col := rs.Fields.GetColumn(fieldFilename); col != nil {
				if v, err := col.Get(i); err == nil {
					match.Filename, _ = v.(string)
				}
			}
			if col := rs.Fields.GetColumn(fieldPage); col != nil {
				if v, err := col.Get(i); err == nil {
					if page, ok := v.(int64); ok {
						match.Page = int(page)
					}
				}
			}
			if col := rs.Fields.GetColumn(fieldContent); col != nil {
				if v, err := col.Get(i); err == nil {
					match.Content, _ = v.(string)
				}
			}
			matches = append(matches, match)
		}
	}
	sortByScore(matches)
	return matches, nil
}

func (m *MilvusStore) Close() error {
	return m.client.Close()
}
