package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Providers  []ProviderConfig `json:"providers"`
	Database   DatabaseConfig   `json:"database"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Simulation SimulationConfig `json:"simulation"`
	Keywords   KeywordConfig    `json:"keywords"`
	Notify     NotifyConfig     `json:"notify"`
	Agents     []AgentConfig    `json:"agents"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Model    string            `json:"model"`
	Extra    map[string]string `json:"extra,omitempty"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type EmbeddingConfig struct {
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// SimulationConfig tunes the simulation engine. Zero values fall back to
// the reference defaults applied by Normalize.
type SimulationConfig struct {
	LearningRate        float64 `json:"learning_rate"`        // trust update step
	AdaptationThreshold float64 `json:"adaptation_threshold"` // strategy dip trigger
	GroupingThreshold   float64 `json:"grouping_threshold"`   // concept Jaccard cutoff
	ExplorationRate     float64 `json:"exploration_rate"`     // random partner pick
	ClusterThreshold    float64 `json:"cluster_threshold"`    // trust cluster cutoff
	ContextLimit        int     `json:"context_limit"`        // messages per prompt
	ExtractWorkers      int     `json:"extract_workers"`      // integration fan-out pool
	Seed                int64   `json:"seed"`                 // 0 = time-based
}

// KeywordConfig carries the word lists used by the lexical heuristics.
// Detection is substring matching on purpose; the lists are configuration
// so experiments can swap vocabularies without a rebuild.
type KeywordConfig struct {
	Cooperation []string `json:"cooperation"`
	Competition []string `json:"competition"`
	Uncertainty []string `json:"uncertainty"`
	Confidence  []string `json:"confidence"`
	DomainTerms []string `json:"domain_terms"`
}

type NotifyConfig struct {
	Slack   SlackNotifyConfig   `json:"slack"`
	Discord DiscordNotifyConfig `json:"discord"`
}

type SlackNotifyConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

type DiscordNotifyConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

// AgentConfig seeds one simulated agent.
type AgentConfig struct {
	Name                string  `json:"name"`
	Personality         string  `json:"personality"`
	Strategy            string  `json:"strategy"`
	TrustLevel          float64 `json:"trust_level"`
	CooperationTendency float64 `json:"cooperation_tendency"`
	ProviderID          string  `json:"provider_id"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Normalize fills unset simulation parameters and keyword lists with the
// reference defaults.
func (c *Config) Normalize() {
	s := &c.Simulation
	if s.LearningRate == 0 {
		s.LearningRate = 0.1
	}
	if s.AdaptationThreshold == 0 {
		s.AdaptationThreshold = 0.3
	}
	if s.GroupingThreshold == 0 {
		s.GroupingThreshold = 0.5
	}
	if s.ExplorationRate == 0 {
		s.ExplorationRate = 0.2
	}
	if s.ClusterThreshold == 0 {
		s.ClusterThreshold = 0.7
	}
	if s.ContextLimit == 0 {
		s.ContextLimit = 10
	}
	if s.ExtractWorkers == 0 {
		s.ExtractWorkers = 4
	}

	k := &c.Keywords
	if len(k.Cooperation) == 0 {
		k.Cooperation = []string{"cooperate", "trust", "mutual", "benefit", "share", "collaborate"}
	}
	if len(k.Competition) == 0 {
		k.Competition = []string{"defect", "compete", "advantage", "win", "strategy", "exploit"}
	}
	if len(k.Uncertainty) == 0 {
		k.Uncertainty = []string{"uncertain", "maybe", "perhaps", "might", "unsure", "difficult"}
	}
	if len(k.Confidence) == 0 {
		k.Confidence = []string{"certain", "confident", "definitely", "clearly", "sure"}
	}
	if len(k.DomainTerms) == 0 {
		k.DomainTerms = []string{"strategy", "cooperation", "trust", "knowledge", "approach", "solution", "insight", "pattern"}
	}
}
