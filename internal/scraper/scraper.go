package scraper

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatbruti/chatbruti/pkg/models"
)

var (
	// ErrFetch reports a network or HTTP-level failure while downloading the
	// source document. Retrying is the caller's decision.
	ErrFetch = errors.New("fetch failed")
	// ErrExtraction reports that the fetched document contained no extractable
	// text.
	ErrExtraction = errors.New("no extractable text")
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Scraper downloads pages and reduces them to plain text documents.
type Scraper struct {
	http *http.Client
}

// New creates a Scraper whose requests are bounded by timeout.
func New(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{
		http: &http.Client{Timeout: timeout},
	}
}

// Scrape fetches url and returns the extracted document.
func (s *Scraper) Scrape(ctx context.Context, url string) (models.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Document{}, fmt.Errorf("%w: %s returned %s", ErrFetch, url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	doc, err := ExtractDocument(url, string(body))
	if err != nil {
		return models.Document{}, err
	}

	log.Info().Str("url", url).Int("chars", len(doc.Text)).Msg("scraped page")
	return doc, nil
}

// ScrapeAll fetches every url, skipping pages that fail and logging why.
// It fails only when not a single page could be scraped.
func (s *Scraper) ScrapeAll(ctx context.Context, urls []string) ([]models.Document, error) {
	var docs []models.Document
	var lastErr error
	for _, u := range urls {
		doc, err := s.Scrape(ctx, u)
		if err != nil {
			log.Warn().Err(err).Str("url", u).Msg("skipping page")
			lastErr = err
			continue
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrExtraction
	}
	return docs, nil
}

// Pre-compiled regular expressions for HTML stripping.
var (
	titleTag     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	headTag      = regexp.MustCompile(`(?is)<head>.*?</head>`)
	scriptTag    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag  = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	navTag       = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	footerTag    = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	headerTag    = regexp.MustCompile(`(?is)<header[^>]*>.*?</header>`)
	svgTag       = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockClose   = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	brTags       = regexp.MustCompile(`(?i)<br\s*/?>`)
	allTags      = regexp.MustCompile(`<[^>]+>`)
	blankRuns    = regexp.MustCompile(`[ \t]+`)
	newlineRuns  = regexp.MustCompile(`\n{2,}`)
)

// ExtractDocument strips markup from raw HTML and returns a plain-text
// document with its title. Boilerplate containers (script, style, nav, footer,
// header) are removed before the text is flattened.
func ExtractDocument(url, raw string) (models.Document, error) {
	title := extractTitle(url, raw)

	text := raw
	for _, re := range []*regexp.Regexp{headTag, scriptTag, styleTag, noscriptTag, navTag, footerTag, headerTag, svgTag, htmlComments} {
		text = re.ReplaceAllString(text, "")
	}
	text = blockClose.ReplaceAllString(text, "\n")
	text = brTags.ReplaceAllString(text, "\n")
	text = allTags.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)

	text = blankRuns.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")
	text = strings.TrimSpace(newlineRuns.ReplaceAllString(text, "\n"))

	if text == "" {
		return models.Document{}, fmt.Errorf("%w: %s", ErrExtraction, url)
	}

	return models.Document{
		URL:       url,
		Title:     title,
		Text:      text,
		ScrapedAt: time.Now(),
	}, nil
}

// extractTitle pulls the <title> tag content, falling back to the URL.
func extractTitle(url, raw string) string {
	matches := titleTag.FindStringSubmatch(raw)
	if len(matches) > 1 {
		title := strings.TrimSpace(html.UnescapeString(matches[1]))
		if title != "" {
			return title
		}
	}
	return url
}
