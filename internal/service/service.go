package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatbruti/chatbruti/internal/ai"
	"github.com/chatbruti/chatbruti/internal/chunker"
	"github.com/chatbruti/chatbruti/internal/index"
	"github.com/chatbruti/chatbruti/internal/scraper"
	"github.com/chatbruti/chatbruti/internal/search"
	"github.com/chatbruti/chatbruti/internal/store"
	"github.com/chatbruti/chatbruti/pkg/models"
)

// ErrRebuildInProgress reports that a rebuild was requested while another one
// is still running. Rebuilds never interleave; the caller retries later.
var ErrRebuildInProgress = errors.New("rebuild already in progress")

// keywordBoost is subtracted from the acceptance threshold for every
// configured keyword present in the query, making on-topic questions easier
// to answer without touching the reported confidence.
const keywordBoost = 0.18

// PageScraper fetches and extracts the remote source documents.
type PageScraper interface {
	ScrapeAll(ctx context.Context, urls []string) ([]models.Document, error)
}

// Config carries the retrieval knobs validated at startup.
type Config struct {
	SourceURLs       []string
	DocsDir          string
	ChunkSize        int
	ChunkOverlap     int
	Threshold        float64
	MaxContextLength int
	BoostKeywords    []string

	// Returned in place of a chunk when nothing clears the threshold.
	FallbackContext     string
	FallbackSourceURL   string
	FallbackSourceTitle string
}

// Service owns the process-wide index and exposes the caller-facing
// operations: Search, Rebuild, Stats and Chat. Any number of searches may run
// concurrently; readers always see either the previous index or the fully
// built new one, never a partial state.
type Service struct {
	Client ai.Client
	Pages  PageScraper
	Store  store.IndexStore
	Config Config

	// LoadLocal walks the optional local corpus; replaceable in tests.
	LoadLocal func(dir string) ([]models.Document, error)

	mu         sync.RWMutex
	idx        *index.Index
	rebuilding atomic.Bool
}

// NewService creates a service with the default local-corpus loader.
func NewService(client ai.Client, pages PageScraper, st store.IndexStore, cfg Config) (*Service, error) {
	if err := chunker.Validate(cfg.ChunkSize, cfg.ChunkOverlap); err != nil {
		return nil, err
	}
	return &Service{
		Client:    client,
		Pages:     pages,
		Store:     st,
		Config:    cfg,
		LoadLocal: scraper.LoadDir,
	}, nil
}

// current returns the active index snapshot, which may be nil before the
// first load or rebuild.
func (s *Service) current() *index.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx
}

// swap atomically replaces the active index.
func (s *Service) swap(ix *index.Index) {
	s.mu.Lock()
	s.idx = ix
	s.mu.Unlock()
}

// LoadPersisted restores the last saved index, if any. Returns false when no
// saved index exists.
func (s *Service) LoadPersisted(ctx context.Context) (bool, error) {
	ix, err := s.Store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	s.swap(ix)
	log.Info().Int("chunks", ix.Len()).Time("built_at", ix.BuiltAt()).Msg("loaded persisted index")
	return true, nil
}

// Search embeds the query and returns the best-matching chunk, or the
// configured fallback context when nothing clears the threshold.
func (s *Service) Search(ctx context.Context, query string) (models.RetrievalResult, error) {
	ix := s.current()
	if ix == nil {
		return models.RetrievalResult{}, search.ErrEmptyIndex
	}

	queryVec, err := s.Client.Embed(strings.TrimSpace(query))
	if err != nil {
		return models.RetrievalResult{}, fmt.Errorf("embed query: %w", err)
	}

	threshold := s.Config.Threshold - s.boost(query)
	res, err := search.Retrieve(queryVec, ix, threshold, s.Config.MaxContextLength)
	if err != nil {
		return models.RetrievalResult{}, err
	}
	if !res.Found {
		res.Context = s.Config.FallbackContext
		res.SourceURL = s.Config.FallbackSourceURL
		res.SourceTitle = s.Config.FallbackSourceTitle
	}
	return res, nil
}

// boost counts configured keywords present in the query.
func (s *Service) boost(query string) float64 {
	q := strings.ToLower(query)
	var b float64
	for _, kw := range s.Config.BoostKeywords {
		if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
			b += keywordBoost
		}
	}
	return b
}

// Chat runs Search and hands the retrieved snippet to the generation backend.
// A generation failure degrades to the canned fallback answer rather than
// failing the request.
func (s *Service) Chat(ctx context.Context, question string) (string, models.RetrievalResult, error) {
	res, err := s.Search(ctx, question)
	if err != nil {
		return "", models.RetrievalResult{}, err
	}

	answer, err := s.Client.Generate(ctx, question, res.Context)
	if err != nil {
		log.Error().Err(err).Msg("generation failed, using fallback answer")
		answer = "Oups ! Mon cerveau a planté plus vite qu'un Windows 95. " +
			"Réessaye, ou pas, je m'en fiche un peu en vrai. Yeahh !"
	}
	return answer, res, nil
}

// Rebuild runs the full fetch-chunk-embed-replace cycle. The new index
// replaces the active one only after every chunk embedded successfully; a
// failure anywhere leaves the previous index untouched. Only one rebuild may
// run at a time.
func (s *Service) Rebuild(ctx context.Context) (int, time.Time, error) {
	if !s.rebuilding.CompareAndSwap(false, true) {
		return 0, time.Time{}, ErrRebuildInProgress
	}
	defer s.rebuilding.Store(false)

	docs, err := s.Pages.ScrapeAll(ctx, s.Config.SourceURLs)
	if err != nil {
		return 0, time.Time{}, err
	}
	if s.Config.DocsDir != "" {
		local, err := s.LoadLocal(s.Config.DocsDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", s.Config.DocsDir).Msg("local corpus unavailable")
		} else {
			docs = append(docs, local...)
		}
	}

	builtAt := time.Now().UTC()
	ix, err := s.buildIndex(ctx, docs, builtAt)
	if err != nil {
		return 0, time.Time{}, err
	}

	s.swap(ix)
	log.Info().Int("chunks", ix.Len()).Int("documents", len(docs)).Msg("index rebuilt")

	// Persistence failure does not roll back the swap; the fresh index stays
	// usable even if it could not be saved.
	if err := s.Store.Save(ctx, ix); err != nil {
		log.Error().Err(err).Msg("failed to persist index")
	}

	return ix.Len(), builtAt, nil
}

// buildIndex chunks every document and embeds the chunks with a bounded
// worker pool, preserving document order in the assembled index.
func (s *Service) buildIndex(ctx context.Context, docs []models.Document, builtAt time.Time) (*index.Index, error) {
	var chunks []models.Chunk
	id := 0
	for _, doc := range docs {
		spans, err := chunker.Chunk(doc.Text, s.Config.ChunkSize, s.Config.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		for _, span := range spans {
			chunks = append(chunks, models.Chunk{
				ID:          id,
				Text:        span,
				SourceURL:   doc.URL,
				SourceTitle: doc.Title,
				CreatedAt:   builtAt,
			})
			id++
		}
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced from %d documents", scraper.ErrExtraction, len(docs))
	}

	vecs := make([][]float32, len(chunks))
	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8 // keep remote embedding backends comfortable
	}

	work := make(chan int)
	var wg sync.WaitGroup
	var embedErr error
	var once sync.Once
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				vec, err := s.Client.Embed(chunks[i].Text)
				if err != nil {
					once.Do(func() { embedErr = err })
					continue
				}
				vecs[i] = vec
			}
		}()
	}

feed:
	for i := range chunks {
		select {
		case work <- i:
		case <-ctx.Done():
			once.Do(func() { embedErr = ctx.Err() })
			break feed
		}
	}
	close(work)
	wg.Wait()

	if embedErr != nil {
		return nil, fmt.Errorf("embed chunks: %w", embedErr)
	}

	sourceURL := ""
	if len(s.Config.SourceURLs) > 0 {
		sourceURL = s.Config.SourceURLs[0]
	}
	ix := index.New(sourceURL, builtAt)
	for i, c := range chunks {
		if err := ix.Add(c, vecs[i]); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// Stats reports the active index size and build metadata.
func (s *Service) Stats() (models.IndexStats, error) {
	ix := s.current()
	if ix == nil {
		return models.IndexStats{}, search.ErrEmptyIndex
	}
	return ix.Stats(), nil
}
