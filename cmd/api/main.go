package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chatbruti/chatbruti/internal/ai"
	"github.com/chatbruti/chatbruti/internal/auth"
	"github.com/chatbruti/chatbruti/internal/config"
	"github.com/chatbruti/chatbruti/internal/scraper"
	"github.com/chatbruti/chatbruti/internal/search"
	"github.com/chatbruti/chatbruti/internal/service"
	"github.com/chatbruti/chatbruti/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"
)

const apiVersion = "1.0.0"

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Question    string  `json:"question"`
	Response    string  `json:"response"`
	Context     string  `json:"context"`
	Confidence  float64 `json:"confidence"`
	SourceURL   string  `json:"source_url"`
	SourceTitle string  `json:"source_title"`
	Timestamp   string  `json:"timestamp"`
}

type scrapeResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	TotalChunks int    `json:"total_chunks"`
	BuiltAt     string `json:"built_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func main() {
	// Create flagset for configuration
	fs := pflag.NewFlagSet("chatbruti-api", pflag.ExitOnError)

	// Load configuration
	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	// Set up logging
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting chatbruti api")

	// Create AI client configuration
	var clientConfig *ai.ClientConfig
	switch strings.ToLower(cfg.Provider) {
	case "groq":
		clientConfig = &ai.ClientConfig{
			APIKey:       cfg.APIKey,
			ChatModel:    cfg.ChatModel,
			Dim:          cfg.Dim,
			Provider:     ai.ProviderGroq,
			SystemPrompt: cfg.SystemPrompt,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			TopP:         cfg.TopP,
		}
	case "openai":
		clientConfig = &ai.ClientConfig{
			APIKey:       cfg.APIKey,
			EmbedModel:   cfg.EmbedModel,
			ChatModel:    cfg.ChatModel,
			Dim:          cfg.Dim,
			Provider:     ai.ProviderOpenAI,
			SystemPrompt: cfg.SystemPrompt,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			TopP:         cfg.TopP,
		}
	case "vertexai", "google":
		clientConfig = &ai.ClientConfig{
			APIKey:       cfg.APIKey,
			EmbedModel:   cfg.EmbedModel,
			ChatModel:    cfg.ChatModel,
			Dim:          cfg.Dim,
			ProjectID:    cfg.ProjectID,
			Location:     cfg.Location,
			Provider:     ai.ProviderVertexAI,
			SystemPrompt: cfg.SystemPrompt,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			TopP:         cfg.TopP,
		}
	case "local":
		clientConfig = &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderLocal,
		}
	default:
		log.Fatalf("unsupported provider: %s", cfg.Provider)
	}

	// Initialize auth with configuration
	auth.InitializeAuth(cfg.Auth.JwtSecret, cfg.Auth.Enabled)

	ctx := context.Background()

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}
	logger.Info().Int("embedding_dim", c.Dim()).Str("embed_model", clientConfig.EmbedModel).Msg("AI client initialized")

	var st store.IndexStore
	if cfg.Database != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx, c.Dim()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		st = pg
	} else {
		st = store.NewFileStore(cfg.IndexFile)
	}

	pages := scraper.New(time.Duration(cfg.FetchTimeout) * time.Second)
	svc, err := service.NewService(c, pages, st, service.Config{
		SourceURLs:          cfg.SourceURLs,
		DocsDir:             cfg.DocsDir,
		ChunkSize:           cfg.ChunkSize,
		ChunkOverlap:        cfg.ChunkOverlap,
		Threshold:           cfg.Threshold,
		MaxContextLength:    cfg.MaxContextLength,
		BoostKeywords:       cfg.BoostKeywords,
		FallbackContext:     cfg.FallbackContext,
		FallbackSourceURL:   cfg.SourceURLs[0],
		FallbackSourceTitle: "Accueil NIRD",
	})
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	// Reload a previously persisted index, or scrape in the background so
	// the server starts serving immediately.
	loaded, err := svc.LoadPersisted(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load persisted index")
	}
	if loaded {
		logger.Info().Msg("persisted index loaded")
	} else if cfg.AutoScrape {
		go func() {
			count, builtAt, err := svc.Rebuild(context.Background())
			if err != nil {
				logger.Error().Err(err).Msg("startup scrape failed")
				return
			}
			logger.Info().Int("chunks", count).Time("built_at", builtAt).Msg("startup scrape complete")
		}()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Bienvenue sur Chat-Bruti API 🤪",
			"version":     apiVersion,
			"description": "Le chatbot le plus absurde du web",
			"endpoints": map[string]string{
				"POST /chat":   "Pose une question à Chat-Bruti (tout-en-un)",
				"POST /scrape": "Force un nouveau scraping",
				"POST /search": "Recherche sémantique seule (debug)",
				"GET /stats":   "Statistiques sur les données",
				"GET /health":  "Statut de l'API",
			},
		})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats()
		body := map[string]any{"status": "healthy", "data_indexed": err == nil}
		if err == nil {
			body["index"] = stats
		}
		writeJSON(w, http.StatusOK, body)
	})

	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		start := time.Now()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		question := strings.TrimSpace(req.Question)
		if question == "" {
			http.Error(w, "question vide", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		answer, res, err := svc.Chat(ctx, question)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, search.ErrEmptyIndex) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), status)
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{
			Question:    question,
			Response:    answer,
			Context:     res.Context,
			Confidence:  res.Confidence,
			SourceURL:   res.SourceURL,
			SourceTitle: res.SourceTitle,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		})

		hlog.FromRequest(r).Info().Str("path", "/chat").Float64("confidence", res.Confidence).Dur("dur", time.Since(start)).Msg("served")
	})

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		question := strings.TrimSpace(req.Question)
		if question == "" {
			http.Error(w, "question vide", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		res, err := svc.Search(ctx, question)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, search.ErrEmptyIndex) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("/scrape", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		count, builtAt, err := svc.Rebuild(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrRebuildInProgress) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}

		writeJSON(w, http.StatusOK, scrapeResponse{
			Success:     true,
			Message:     "Scraping terminé avec succès",
			TotalChunks: count,
			BuiltAt:     builtAt.UTC().Format(time.RFC3339),
		})
	}))

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats()
		if err != nil {
			http.Error(w, "Aucune donnée indexée", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"search_stats": stats,
			"config": map[string]any{
				"chunk_size":           cfg.ChunkSize,
				"chunk_overlap":        cfg.ChunkOverlap,
				"similarity_threshold": cfg.Threshold,
				"max_context_length":   cfg.MaxContextLength,
			},
		})
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
