package ai

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultLocalDim is the vector length used by the hashed term-frequency
// embedder when no dimensionality is configured.
const DefaultLocalDim = 512

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// French function words dropped before hashing. Matching the scraped corpus
// language keeps the signal in content words.
var stopwords = map[string]struct{}{
	"le": {}, "la": {}, "les": {}, "de": {}, "du": {}, "des": {}, "un": {}, "une": {},
	"et": {}, "ou": {}, "à": {}, "au": {}, "aux": {}, "en": {}, "dans": {}, "sur": {},
	"pour": {}, "par": {}, "avec": {}, "sans": {}, "sous": {}, "chez": {}, "ce": {},
	"cette": {}, "ces": {}, "son": {}, "sa": {}, "ses": {}, "mon": {}, "ma": {}, "mes": {},
	"ton": {}, "ta": {}, "tes": {}, "je": {}, "tu": {}, "il": {}, "elle": {}, "nous": {},
	"vous": {}, "ils": {}, "elles": {}, "qui": {}, "que": {}, "quoi": {}, "dont": {},
	"où": {}, "quand": {}, "comment": {}, "mais": {}, "est": {}, "sont": {}, "pas": {},
	"plus": {}, "très": {},
}

// LocalClient embeds text as fixed-length hashed term-frequency vectors. It
// needs no network, and identical text always hashes to the identical vector,
// so it doubles as the test double for the remote providers.
type LocalClient struct {
	dim int
}

// NewLocalClient creates a new LocalClient.
func NewLocalClient(dim int) *LocalClient {
	if dim <= 0 {
		dim = DefaultLocalDim
	}
	return &LocalClient{dim: dim}
}

// Embed lowercases, tokenizes and buckets term counts by FNV hash.
func (c *LocalClient) Embed(text string) ([]float32, error) {
	vec := make([]float32, c.dim)
	for _, w := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(c.dim)]++
	}
	return vec, nil
}

// Generate returns the canned degraded answer; the local provider has no
// generation backend.
func (c *LocalClient) Generate(ctx context.Context, question, snippet string) (string, error) {
	return "Oups ! Mon cerveau a planté plus vite qu'un Windows 95. " +
		"Réessaye, ou pas, je m'en fiche un peu en vrai. Yeahh !", nil
}

// Dim returns the embedding dimension
func (c *LocalClient) Dim() int {
	return c.dim
}

// tokenize extracts lowercase content words, dropping stopwords and tokens of
// two runes or fewer.
func tokenize(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	out := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}
