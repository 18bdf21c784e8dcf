package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/chatbruti/chatbruti/internal/chunker"
)

type Specification struct {
	SourceURLs       []string `yaml:"sourceURLs" envconfig:"SOURCE_URLS"`
	DocsDir          string   `yaml:"docsDir" split_words:"true"`
	IndexFile        string   `yaml:"indexFile" split_words:"true"`
	ChunkSize        int      `yaml:"chunkSize" split_words:"true"`
	ChunkOverlap     int      `yaml:"chunkOverlap" split_words:"true"`
	Threshold        float64  `yaml:"similarityThreshold" envconfig:"SIMILARITY_THRESHOLD"`
	MaxContextLength int      `yaml:"maxContextLength" split_words:"true"`
	BoostKeywords    []string `yaml:"boostKeywords" split_words:"true"`
	FetchTimeout     int      `yaml:"fetchTimeoutSeconds" envconfig:"FETCH_TIMEOUT_SECONDS"`
	AutoScrape       bool     `yaml:"autoScrapeOnStartup" envconfig:"AUTO_SCRAPE_ON_STARTUP"`

	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"providerApiKey" envconfig:"PROVIDER_API_KEY"`
	EmbedModel  string  `yaml:"providerEmbedModel" envconfig:"PROVIDER_EMBEDDING_MODEL"`
	ChatModel   string  `yaml:"providerChatModel" envconfig:"PROVIDER_CHAT_MODEL"`
	ProjectID   string  `yaml:"providerProjectID" envconfig:"PROVIDER_PROJECT_ID"`
	Location    string  `yaml:"providerLocation" envconfig:"PROVIDER_LOCATION"`
	Dim         int     `yaml:"providerDim" envconfig:"EMBED_DIM"`
	Temperature float64 `yaml:"chatTemperature" envconfig:"CHAT_TEMPERATURE"`
	MaxTokens   int     `yaml:"chatMaxTokens" envconfig:"CHAT_MAX_TOKENS"`
	TopP        float64 `yaml:"chatTopP" envconfig:"CHAT_TOP_P"`

	SystemPrompt    string `yaml:"systemPrompt" split_words:"true"`
	FallbackContext string `yaml:"fallbackContext" split_words:"true"`

	Database string            `yaml:"database" envconfig:"DB_URL"`
	LogLevel string            `yaml:"logLevel" split_words:"true"`
	Port     int               `yaml:"port" split_words:"true"`
	Auth     AuthSpecification `yaml:"auth"`

	flags *pflag.FlagSet `ignored:"true"`
}

type AuthSpecification struct {
	Enabled   bool   `yaml:"enabled"`
	JwtSecret string `yaml:"jwtSecret" split_words:"true"`
}

const envPrefix = "CHATBRUTI"

// Personality given to the generation backend. The bot is deliberately
// unhelpful; it riffs on the retrieved context instead of answering.
const defaultSystemPrompt = `Tu es Chat-Bruti, un chatbot volontairement con.
Tu ne réponds jamais directement à la question.
Tu exagères, tu inventes, tu oublies.
Tu fais de l'humour.
Tu te prends pour un philosophe du dimanche.
Les figures de style et les jeux de mots sont tes meilleurs amis.
Ta réponse doit être courte, inutile, mais drôle.
Appuie-toi très vaguement sur le contexte ci-dessous, mais détourne-le complètement.
Utilise des mots comme waouh, yeahh, oups, dans tes réponses`

const defaultFallbackContext = "La démarche NIRD promeut un numérique Inclusif, Responsable et Durable " +
	"dans les établissements scolaires via Linux, le reconditionnement et " +
	"les logiciels libres."

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	// set defaults (lowest precedence)
	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	// config file
	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/chatbruti.yaml",
				"config/config.yaml",
				"./chatbruti.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	// Minimal sanity
	if len(cfg.SourceURLs) == 0 {
		return Specification{}, fmt.Errorf("at least one source URL is required (env/file/flag)")
	}
	if err := chunker.Validate(cfg.ChunkSize, cfg.ChunkOverlap); err != nil {
		return Specification{}, err
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return Specification{}, fmt.Errorf("similarity threshold %f out of [0, 1]", cfg.Threshold)
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.StringSlice("source-url", c.SourceURLs, "Site URL(s) to scrape")
	fs.String("docs-dir", c.DocsDir, "Optional directory of local documents to index")
	fs.String("index-file", c.IndexFile, "Path of the JSON index file")

	fs.Int("chunk-size", c.ChunkSize, "Chunk window size in characters")
	fs.Int("chunk-overlap", c.ChunkOverlap, "Overlap between consecutive chunks")
	fs.Float64("similarity-threshold", c.Threshold, "Minimum cosine similarity to accept a match")
	fs.Int("max-context-length", c.MaxContextLength, "Maximum characters of context handed to generation")
	fs.Int("fetch-timeout", c.FetchTimeout, "HTTP fetch timeout in seconds")
	fs.Bool("auto-scrape", c.AutoScrape, "Scrape and index on startup when no saved index exists")

	fs.String("provider", c.Provider, "Provider (local, groq, openai, vertexai)")
	fs.String("provider-api-key", c.APIKey, "Provider API key")
	fs.String("provider-embedding-model", c.EmbedModel, "Provider embedding model")
	fs.String("provider-chat-model", c.ChatModel, "Provider chat model")
	fs.String("provider-project-id", c.ProjectID, "Provider project ID")
	fs.String("provider-location", c.Location, "Provider location/region")
	fs.Int("embed-dim", c.Dim, "Embedding dimensionality")

	fs.String("db-url", c.Database, "Optional database URL (DSN); empty means file persistence")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")

	fs.Bool("auth-enabled", c.Auth.Enabled, "Require an admin token on rebuild requests")
	fs.String("auth-jwt-secret", c.Auth.JwtSecret, "JWT secret for signing tokens")

	// Used later for usage/help
	// create a shallow copy of fs (so Usage can be called safely without mutating caller)
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}
	setFloat := func(name string, dst *float64) {
		if fs.Changed(name) {
			v, _ := fs.GetFloat64(name)
			*dst = v
		}
	}
	setBool := func(name string, dst *bool) {
		if fs.Changed(name) {
			v, _ := fs.GetBool(name)
			*dst = v
		}
	}

	// (We ignore --config here; it's for discovery.)
	if fs.Changed("source-url") {
		v, _ := fs.GetStringSlice("source-url")
		c.SourceURLs = v
	}
	setStr("docs-dir", &c.DocsDir)
	setStr("index-file", &c.IndexFile)

	setInt("chunk-size", &c.ChunkSize)
	setInt("chunk-overlap", &c.ChunkOverlap)
	setFloat("similarity-threshold", &c.Threshold)
	setInt("max-context-length", &c.MaxContextLength)
	setInt("fetch-timeout", &c.FetchTimeout)
	setBool("auto-scrape", &c.AutoScrape)

	setStr("provider", &c.Provider)
	setStr("provider-api-key", &c.APIKey)
	setStr("provider-embedding-model", &c.EmbedModel)
	setStr("provider-chat-model", &c.ChatModel)
	setStr("provider-project-id", &c.ProjectID)
	setStr("provider-location", &c.Location)
	setInt("embed-dim", &c.Dim)

	setStr("db-url", &c.Database)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)

	setBool("auth-enabled", &c.Auth.Enabled)
	setStr("auth-jwt-secret", &c.Auth.JwtSecret)
}

func setDefaults(c *Specification) {
	c.SourceURLs = []string{"https://nird.forge.apps.education.fr/"}
	c.IndexFile = "data/nird_chunks.json"
	c.ChunkSize = 1000
	c.ChunkOverlap = 200
	c.Threshold = 0.12
	c.MaxContextLength = 600
	c.BoostKeywords = []string{
		"linux", "reconditionnement", "nird", "primtux", "tchap",
		"écologique", "libre", "inclusif", "durable", "obsolescence", "forge",
	}
	c.FetchTimeout = 15
	c.AutoScrape = true
	c.Provider = "local"
	c.Temperature = 1.5
	c.MaxTokens = 200
	c.TopP = 0.95
	c.SystemPrompt = defaultSystemPrompt
	c.FallbackContext = defaultFallbackContext
	c.Location = "us-central1"
	c.LogLevel = "info"
	c.Port = 8080
	c.Auth.Enabled = false
}
