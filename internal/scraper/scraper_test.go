package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>  D&eacute;marche NIRD </title>
  <style>body { color: red; }</style>
  <script>console.log("tracking");</script>
</head>
<body>
  <header>Site header junk</header>
  <nav><a href="/">Accueil</a></nav>
  <h1>Numérique Inclusif</h1>
  <p>Le reconditionnement prolonge la vie des machines.</p>
  <p>Linux &amp; logiciels libres.</p>
  <!-- hidden comment -->
  <footer>Mentions légales</footer>
</body>
</html>`

func TestExtractDocument(t *testing.T) {
	doc, err := ExtractDocument("https://example.org/", samplePage)
	if err != nil {
		t.Fatalf("ExtractDocument failed: %v", err)
	}

	if doc.Title != "Démarche NIRD" {
		t.Errorf("Expected decoded title, got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Numérique Inclusif") {
		t.Errorf("Expected heading text, got %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "Linux & logiciels libres.") {
		t.Errorf("Expected entity-decoded paragraph, got %q", doc.Text)
	}
	for _, junk := range []string{"tracking", "color: red", "Site header junk", "Accueil", "Mentions légales", "hidden comment"} {
		if strings.Contains(doc.Text, junk) {
			t.Errorf("Boilerplate %q leaked into extracted text", junk)
		}
	}
}

func TestExtractDocumentTitleFallback(t *testing.T) {
	doc, err := ExtractDocument("https://example.org/page", "<p>du contenu</p>")
	if err != nil {
		t.Fatalf("ExtractDocument failed: %v", err)
	}
	if doc.Title != "https://example.org/page" {
		t.Errorf("Expected URL fallback title, got %q", doc.Title)
	}
}

func TestExtractDocumentNoText(t *testing.T) {
	_, err := ExtractDocument("https://example.org/", "<html><script>only();</script></html>")
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("Expected ErrExtraction, got %v", err)
	}
}

func TestScrapeOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("Expected a User-Agent header")
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	s := New(5 * time.Second)
	doc, err := s.Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if doc.URL != srv.URL {
		t.Errorf("Expected source URL %q, got %q", srv.URL, doc.URL)
	}
	if doc.ScrapedAt.IsZero() {
		t.Error("Expected ScrapedAt timestamp to be set")
	}
}

func TestScrapeNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(5 * time.Second)
	_, err := s.Scrape(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Errorf("Expected ErrFetch on 503, got %v", err)
	}
}

func TestScrapeNetworkError(t *testing.T) {
	s := New(time.Second)
	_, err := s.Scrape(context.Background(), "http://127.0.0.1:1")
	if !errors.Is(err, ErrFetch) {
		t.Errorf("Expected ErrFetch on connection failure, got %v", err)
	}
}

func TestScrapeAllSkipsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	s := New(5 * time.Second)
	docs, err := s.ScrapeAll(context.Background(), []string{srv.URL + "/bad", srv.URL + "/ok"})
	if err != nil {
		t.Fatalf("ScrapeAll failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("Expected 1 document, got %d", len(docs))
	}
}

func TestScrapeAllAllFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := New(5 * time.Second)
	_, err := s.ScrapeAll(context.Background(), []string{srv.URL})
	if !errors.Is(err, ErrFetch) {
		t.Errorf("Expected ErrFetch when every page fails, got %v", err)
	}
}
