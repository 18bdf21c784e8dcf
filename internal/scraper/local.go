package scraper

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"

	"github.com/chatbruti/chatbruti/pkg/models"
)

// LoadDir walks root and turns every .html, .htm, .md and .txt file into a
// document, complementing the scraped site with a local corpus. Files that
// fail to read or contain no text are skipped with a warning.
func LoadDir(root string) ([]models.Document, error) {
	var docs []models.Document
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false, // deterministic chunk IDs across rebuilds
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			switch ext {
			case ".html", ".htm", ".md", ".txt":
			default:
				return nil
			}

			b, err := os.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to read file")
				return nil
			}

			var doc models.Document
			if ext == ".html" || ext == ".htm" {
				doc, err = ExtractDocument(path, string(b))
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("no text in file")
					return nil
				}
			} else {
				text := strings.TrimSpace(string(b))
				if text == "" {
					return nil
				}
				doc = models.Document{
					URL:       path,
					Title:     strings.TrimSuffix(filepath.Base(path), ext),
					Text:      text,
					ScrapedAt: time.Now(),
				}
			}
			docs = append(docs, doc)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, errors.New("no loadable documents under " + root)
	}
	return docs, nil
}
