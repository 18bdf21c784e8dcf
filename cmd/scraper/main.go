package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/chatbruti/chatbruti/internal/ai"
	"github.com/chatbruti/chatbruti/internal/config"
	"github.com/chatbruti/chatbruti/internal/scraper"
	"github.com/chatbruti/chatbruti/internal/service"
	"github.com/chatbruti/chatbruti/internal/store"
	"github.com/spf13/pflag"
)

// One-shot scrape and index run, for cron jobs and container init steps.
func main() {
	fs := pflag.NewFlagSet("chatbruti-scraper", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	provider := strings.ToLower(cfg.Provider)
	log.Printf("using provider: %s", provider)
	var clientConfig *ai.ClientConfig
	switch provider {
	case "groq":
		clientConfig = &ai.ClientConfig{
			APIKey:    cfg.APIKey,
			ChatModel: cfg.ChatModel,
			Dim:       cfg.Dim,
			Provider:  ai.ProviderGroq,
		}
	case "openai":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			Provider:   ai.ProviderOpenAI,
		}
	case "vertexai":
		clientConfig = &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			ChatModel:  cfg.ChatModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}
	case "local":
		clientConfig = &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderLocal,
		}
	default:
		log.Fatalf("unsupported provider: %s", provider)
	}

	ctx := context.Background()

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatal(err)
	}
	if c.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}

	var st store.IndexStore
	if cfg.Database != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			log.Fatal(err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx, c.Dim()); err != nil {
			log.Fatal(err)
		}
		st = pg
	} else {
		st = store.NewFileStore(cfg.IndexFile)
	}

	pages := scraper.New(time.Duration(cfg.FetchTimeout) * time.Second)
	svc, err := service.NewService(c, pages, st, service.Config{
		SourceURLs:       cfg.SourceURLs,
		DocsDir:          cfg.DocsDir,
		ChunkSize:        cfg.ChunkSize,
		ChunkOverlap:     cfg.ChunkOverlap,
		Threshold:        cfg.Threshold,
		MaxContextLength: cfg.MaxContextLength,
		BoostKeywords:    cfg.BoostKeywords,
		FallbackContext:  cfg.FallbackContext,
	})
	if err != nil {
		log.Fatal(err)
	}

	count, builtAt, err := svc.Rebuild(ctx)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("indexed %d chunks at %s", count, builtAt.UTC().Format(time.RFC3339))
}
