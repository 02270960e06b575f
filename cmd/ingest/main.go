// Command ingest embeds PDF pages into the vector index used by the chat server.
//
//	ingest [-config path] [-watch] <file.pdf|dir>...
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ragchat/internal/config"
	"ragchat/internal/ingest"
	"ragchat/internal/logging"
	"ragchat/internal/service/retrieval"
	"ragchat/internal/vectorstore"

	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("RAGCHAT_CONFIG"), "path to the config file")
	watch := flag.Bool("watch", false, "keep running and ingest new or changed PDFs in the given directories")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] [-watch] <file.pdf|dir>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Server.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := vectorstore.New(ctx, cfg.VectorStore, logger)
	if err != nil {
		logger.Fatal("open vector store", zap.Error(err))
	}
	defer store.Close()
	embedder, err := retrieval.NewOpenAIEmbedder(ctx, cfg.Embedding, logger)
	if err != nil {
		logger.Fatal("init embedder", zap.Error(err))
	}

	in := ingest.New(store, embedder, ingest.OptionsFromConfig(cfg.Ingest, logger), logger)
	paths := flag.Args()
	if err := in.IngestPaths(ctx, paths); err != nil {
		logger.Error("ingest finished with errors", zap.Error(err))
		if !*watch {
			os.Exit(1)
		}
	}
	if !*watch {
		return
	}

	var dirs []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dirs = append(dirs, p)
		}
	}
	if len(dirs) == 0 {
		logger.Fatal("watch mode needs at least one directory")
	}
	w := ingest.NewWatcher(dirs, func(path string) {
		res, err := in.IngestFile(ctx, path)
		if err != nil {
			logger.Error("ingest file failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("ingested file", zap.String("path", path), zap.Int("upserted", res.Upserted))
	}, 0, logger)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("start watcher", zap.Error(err))
	}
	logger.Info("watching for PDFs", zap.Strings("dirs", dirs))
	<-ctx.Done()
}
