// Package config loads service configuration from a YAML file with
// environment-variable overrides. A local .env file, if present, is loaded
// first so development setups need no exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig is the full configuration tree shared by the CrisisMap binaries.
type AppConfig struct {
	HTTP     HTTPConfig      `yaml:"http"`
	Qdrant   QdrantConfig    `yaml:"qdrant"`
	Neo4j    Neo4jConfig     `yaml:"neo4j"`
	NATS     NATSConfig      `yaml:"nats"`
	Ollama   OllamaConfig    `yaml:"ollama"`
	Scraper  ScraperConfig   `yaml:"scraper"`
	Classify []ProfileConfig `yaml:"classify"`
	// Gazetteer lists lowercase words the answer formatter re-capitalises as
	// proper nouns.
	Gazetteer []string `yaml:"gazetteer"`
}

type HTTPConfig struct {
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
	Dims       uint64 `yaml:"dims"`
}

type Neo4jConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type OllamaConfig struct {
	URL        string `yaml:"url"`
	EmbedModel string `yaml:"embed_model"`
	GenModel   string `yaml:"gen_model"`
	MaxTokens  int    `yaml:"max_tokens"`
}

type ScraperConfig struct {
	UserAgent  string        `yaml:"user_agent"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ProfileConfig tunes evidence gathering for one class of query. A query
// matches a profile when it contains every keyword in Match.
type ProfileConfig struct {
	Name         string   `yaml:"name"`
	Match        []string `yaml:"match"`
	ResultBudget int      `yaml:"result_budget"`
	// SkipDatabaseMinWebHits skips the database search when at least this many
	// web results arrived. Zero disables the skip.
	SkipDatabaseMinWebHits int `yaml:"skip_database_min_web_hits"`
	// ExtraTerms are appended to the query before web search.
	ExtraTerms []string `yaml:"extra_terms"`
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	return AppConfig{
		HTTP:   HTTPConfig{Port: 8000, CORSOrigin: "*"},
		Qdrant: QdrantConfig{Addr: "localhost:6334", Collection: "crisis_events", Dims: 768},
		Neo4j:  Neo4jConfig{URL: "bolt://localhost:7687", User: "neo4j", Password: "password"},
		NATS:   NATSConfig{URL: "nats://localhost:4222"},
		Ollama: OllamaConfig{
			URL:        "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
			GenModel:   "llama3.2",
			MaxTokens:  300,
		},
		Scraper: ScraperConfig{
			UserAgent:  "CrisisMapBot/1.0 (crisis information aggregator)",
			RatePerSec: 2,
			Timeout:    10 * time.Second,
		},
		Classify: []ProfileConfig{
			{
				Name:                   "california-wildfire",
				Match:                  []string{"california", "fire"},
				ResultBudget:           5,
				SkipDatabaseMinWebHits: 2,
				ExtraTerms:             []string{"wildfire", "2025", "damage", "evacuation"},
			},
		},
		Gazetteer: []string{
			"israel", "iran", "gaza", "ukraine", "russia", "turkey", "syria",
			"california", "monday", "tuesday", "wednesday", "thursday",
			"friday", "saturday", "sunday",
		},
	}
}

// Load reads configuration from path. A missing file is not an error; the
// defaults apply. Environment variables override file values afterwards.
func Load(path string) (AppConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
	envStr("CORS_ORIGIN", &cfg.HTTP.CORSOrigin)
	envStr("QDRANT_ADDR", &cfg.Qdrant.Addr)
	envStr("QDRANT_COLLECTION", &cfg.Qdrant.Collection)
	envStr("NEO4J_URL", &cfg.Neo4j.URL)
	envStr("NEO4J_USER", &cfg.Neo4j.User)
	envStr("NEO4J_PASSWORD", &cfg.Neo4j.Password)
	envStr("NATS_URL", &cfg.NATS.URL)
	envStr("OLLAMA_URL", &cfg.Ollama.URL)
	envStr("OLLAMA_EMBED_MODEL", &cfg.Ollama.EmbedModel)
	envStr("OLLAMA_GEN_MODEL", &cfg.Ollama.GenModel)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
