// Package ingest loads PDF pages into the vector store, one record per page.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ragchat/internal/config"
	"ragchat/internal/logging"
	"ragchat/internal/vectorstore"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Embedder returns nil when a text could not be embedded.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

type Options struct {
	BatchSize  int
	BatchDelay time.Duration
	// Capper is optional; without it pages are embedded untruncated.
	Capper *TokenCapper
}

// OptionsFromConfig maps the ingest section of the config. A tokenizer that cannot be
// loaded is logged and page text is left untruncated.
func OptionsFromConfig(cfg config.IngestConfig, logger *zap.Logger) Options {
	opts := Options{
		BatchSize:  cfg.BatchSize,
		BatchDelay: time.Duration(cfg.BatchDelayMS) * time.Millisecond,
	}
	capper, err := NewTokenCapper(cfg.MaxPageTokens)
	if err != nil {
		logging.OrNop(logger).Warn("token capping disabled", zap.Error(err))
	} else {
		opts.Capper = capper
	}
	return opts
}

// Result summarises one file.
type Result struct {
	Pages         int
	Skipped       int
	Upserted      int
	Batches       int
	FailedBatches int
}

type Ingester struct {
	store     vectorstore.Store
	embedder  Embedder
	capper    *TokenCapper
	batchSize int
	limiter   *rate.Limiter
	readPages func(path string) ([]string, error)
	logger    *zap.Logger

	mu      sync.Mutex
	ensured bool
}

func New(store vectorstore.Store, embedder Embedder, opts Options, logger *zap.Logger) *Ingester {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = config.DefaultBatchSize
	}
	limit := rate.Inf
	if opts.BatchDelay > 0 {
		limit = rate.Every(opts.BatchDelay)
	}
	return &Ingester{
		store:     store,
		embedder:  embedder,
		capper:    opts.Capper,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(limit, 1),
		readPages: ReadPDFPages,
		logger:    logging.OrNop(logger),
	}
}

// ensureCollection creates the collection once per process; a failed attempt is retried
// by the next file.
func (in *Ingester) ensureCollection(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.ensured {
		return nil
	}
	if err := in.store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	in.ensured = true
	return nil
}

// IngestFile embeds and upserts every page of one PDF. Records are keyed by the file
// stem, so running it again overwrites the previous pages.
func (in *Ingester) IngestFile(ctx context.Context, path string) (Result, error) {
	pages, err := in.readPages(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return in.IngestPages(ctx, stem, pages)
}

// IngestPages handles already extracted pages of the document named stem.
func (in *Ingester) IngestPages(ctx context.Context, stem string, pages []string) (Result, error) {
	res := Result{Pages: len(pages)}
	if err := in.ensureCollection(ctx); err != nil {
		return res, err
	}
	log := in.logger.With(zap.String("file", stem))

	records := make([]vectorstore.Record, 0, len(pages))
	for i, text := range pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if strings.TrimSpace(text) == "" {
			log.Info("page is empty or contains only images", zap.Int("page", i))
			res.Skipped++
			continue
		}
		input, truncated := in.capper.Cap(text)
		if truncated {
			log.Info("page truncated for embedding", zap.Int("page", i))
		}
		vector := in.embedder.Embed(ctx, input)
		if len(vector) == 0 {
			log.Warn("failed to get embedding for page", zap.Int("page", i))
			res.Skipped++
			continue
		}
		records = append(records, vectorstore.Record{
			ID:       vectorstore.RecordID(stem, i),
			Vector:   vector,
			Filename: stem,
			Page:     i,
			Content:  text,
		})
	}

	for start := 0; start < len(records); start += in.batchSize {
		end := min(start+in.batchSize, len(records))
		if err := in.limiter.Wait(ctx); err != nil {
			return res, err
		}
		res.Batches++
		if err := in.store.Upsert(ctx, records[start:end]); err != nil {
			log.Error("upsert batch failed", zap.Int("size", end-start), zap.Error(err))
			res.FailedBatches++
			continue
		}
		res.Upserted += end - start
		log.Info("upserted batch", zap.Int("size", end-start))
	}
	return res, nil
}

// IngestPaths ingests every PDF named directly or found under a named directory. A file
// that fails is logged and the remaining files still run.
func (in *Ingester) IngestPaths(ctx context.Context, paths []string) error {
	files, err := CollectPDFs(paths)
	if err != nil {
		return err
	}
	var failed int
	for _, file := range files {
		res, err := in.IngestFile(ctx, file)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			in.logger.Error("ingest file failed", zap.String("path", file), zap.Error(err))
			failed++
			continue
		}
		in.logger.Info("ingested file",
			zap.String("path", file),
			zap.Int("pages", res.Pages),
			zap.Int("upserted", res.Upserted),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed_batches", res.FailedBatches),
		)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// CollectPDFs expands directories into the .pdf files below them.
func CollectPDFs(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isPDF(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
