package blotter

import (
	"os"
	"path/filepath"

	"blotter/llm"
)

// Config holds all configuration for the incident pipeline.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.blotter/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "blotter".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set. Options: "home" (default) uses ~/.blotter/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Chat is the classifier used for the unstructured path and for
	// date extraction from free text.
	Chat llm.Config `json:"chat" yaml:"chat"`

	// Embedding is optional. When configured, incident details are
	// embedded and new incidents are checked against stored ones for
	// likely re-reports that exact-key dedup would miss. Matches are
	// logged only.
	Embedding llm.Config `json:"embedding" yaml:"embedding"`

	// EmbeddingDim must match the embedding model's output dimension.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// SimilarityThreshold is the minimum cosine similarity for a stored
	// incident to be flagged as a likely re-report. Defaults to 0.9.
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// Section is the article section processed by the driver.
	// Defaults to "Police/Fire".
	Section string `json:"section" yaml:"section"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.blotter/blotter.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "blotter",
		StorageDir: "home",
		Chat: llm.Config{
			Provider: "ollama",
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:        768,
		SimilarityThreshold: 0.9,
		Section:             "Police/Fire",
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "blotter"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".blotter", name+".db")
	}
}
