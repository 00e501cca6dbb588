// Package config loads the engine's hierarchical YAML configuration,
// mirroring the nested-struct-plus-DefaultConfig idiom used throughout this
// codebase: every subsystem owns a config struct with yaml tags, and
// DefaultConfig populates conservative defaults so a missing config file
// never prevents startup.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MCP       MCPConfig       `yaml:"mcp"`
	Conductor ConductorConfig `yaml:"conductor"`
	QueryAgent QueryAgentConfig `yaml:"queryAgent"`
	DevAgent  DevAgentConfig  `yaml:"devAgent"`
	Parser    ParserConfig    `yaml:"parser"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig controls the SQLite-backed graph+vector store.
type DatabaseConfig struct {
	Path           string `yaml:"path"`
	MaxReadConns   int    `yaml:"maxReadConns"`
	MinReadConns   int    `yaml:"minReadConns"`
	BusyTimeoutMs  int    `yaml:"busyTimeoutMs"`
	BackupRetained int    `yaml:"backupRetained"`
}

// MCPConfig groups the agent-pool and embedding-provider settings exposed
// under the mcp.* namespace.
type MCPConfig struct {
	Agents    MCPAgentsConfig    `yaml:"agents"`
	Embedding MCPEmbeddingConfig `yaml:"embedding"`
	Semantic  MCPSemanticConfig  `yaml:"semantic"`
}

type MCPAgentsConfig struct {
	MaxConcurrent int `yaml:"maxConcurrent"`
}

// MCPEmbeddingConfig selects and configures the embedding provider.
type MCPEmbeddingConfig struct {
	Provider string               `yaml:"provider"` // memory | onnx | http
	Model    string               `yaml:"model"`
	Ollama   EmbeddingProviderBlock `yaml:"ollama"`
	OpenAI   EmbeddingProviderBlock `yaml:"openai"`
	CloudRU  EmbeddingProviderBlock `yaml:"cloudru"`
	Memory   EmbeddingProviderBlock `yaml:"memory"`
}

// EmbeddingProviderBlock is the shared shape for every named provider block.
type EmbeddingProviderBlock struct {
	BaseURL       string `yaml:"baseUrl"`
	APIKey        string `yaml:"apiKey"`
	TimeoutMs     int    `yaml:"timeoutMs"`
	Concurrency   int    `yaml:"concurrency"`
	MaxBatchSize  int    `yaml:"maxBatchSize"`
	AutoPull      bool   `yaml:"autoPull"`
	WarmupText    string `yaml:"warmupText"`
}

type MCPSemanticConfig struct {
	CacheWarmupLimit    int    `yaml:"cacheWarmupLimit"`
	PopularEntitiesTopic string `yaml:"popularEntitiesTopic"`
}

// ConductorConfig governs the orchestration core.
type ConductorConfig struct {
	MaxConcurrency        int           `yaml:"maxConcurrency"`
	MemoryLimitMB         int           `yaml:"memoryLimit"`
	Priority              int           `yaml:"priority"`
	TaskQueueLimit        int           `yaml:"taskQueueLimit"`
	LoadBalancingStrategy string        `yaml:"loadBalancingStrategy"`
	ComplexityThreshold   int           `yaml:"complexityThreshold"`
	MandatoryDelegation   bool          `yaml:"mandatoryDelegation"`
	ResourceConstraints   ResourceConstraints `yaml:"resourceConstraints"`
}

// ResourceConstraints are the process-wide caps the Conductor enforces.
type ResourceConstraints struct {
	MaxMemoryMB        int `yaml:"maxMemoryMB"`
	MaxCPUPercent      int `yaml:"maxCpuPercent"`
	MaxConcurrentAgents int `yaml:"maxConcurrentAgents"`
	MaxTaskQueueSize   int `yaml:"maxTaskQueueSize"`
}

type QueryAgentConfig struct {
	MaxConcurrency      int           `yaml:"maxConcurrency"`
	MemoryLimitMB       int           `yaml:"memoryLimit"`
	Priority            int           `yaml:"priority"`
	SimpleQueryTimeoutMs  int         `yaml:"simpleQueryTimeout"`
	ComplexQueryTimeoutMs int         `yaml:"complexQueryTimeout"`
	CacheWarmupSize     int           `yaml:"cacheWarmupSize"`
	CacheTTL            time.Duration `yaml:"cacheTTL"`
	CacheCapacity       int           `yaml:"cacheCapacity"`
	HotspotWeights      HotspotWeights `yaml:"hotspotWeights"`
	TraversalMaxDepth   int           `yaml:"traversalMaxDepth"`
}

// HotspotWeights exposes the scoring constants the original spec left fixed.
type HotspotWeights struct {
	Incoming   float64 `yaml:"incoming"`
	Outgoing   float64 `yaml:"outgoing"`
	Complexity float64 `yaml:"complexity"`
}

type DevAgentConfig struct {
	MaxConcurrency int      `yaml:"maxConcurrency"`
	MemoryLimitMB  int      `yaml:"memoryLimit"`
	Priority       int      `yaml:"priority"`
	IndexBatchSize int      `yaml:"indexBatchSize"`
	UseParser      bool     `yaml:"useParser"`
	Extensions     []string `yaml:"extensions"`
	IgnorePatterns []string `yaml:"ignorePatterns"`
	DebugMode      bool     `yaml:"debugMode"`
}

type ParserConfig struct {
	TreeSitter TreeSitterConfig `yaml:"treeSitter"`
}

type TreeSitterConfig struct {
	Enabled         bool                       `yaml:"enabled"`
	LanguageConfigs map[string]LanguageConfig  `yaml:"languageConfigs"`
}

type LanguageConfig struct {
	Extensions []string `yaml:"extensions"`
}

type CoordinatorConfig struct {
	LoadBalancingStrategy string `yaml:"loadBalancingStrategy"`
}

type LoggingConfig struct {
	DebugMode  bool     `yaml:"debugMode"`
	Structured bool     `yaml:"structured"`
	Dir        string   `yaml:"dir"`
	Categories []string `yaml:"categories"`
}

// DefaultConfig returns the engine's out-of-the-box configuration.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Path:           "vectors.db",
			MaxReadConns:   4,
			MinReadConns:   1,
			BusyTimeoutMs:  5000,
			BackupRetained: 5,
		},
		MCP: MCPConfig{
			Agents: MCPAgentsConfig{MaxConcurrent: 4},
			Embedding: MCPEmbeddingConfig{
				Provider: "memory",
				Model:    "stub-384",
				Ollama: EmbeddingProviderBlock{
					BaseURL: "http://localhost:11434", TimeoutMs: 10_000,
					Concurrency: 2, MaxBatchSize: 32,
				},
			},
			Semantic: MCPSemanticConfig{CacheWarmupLimit: 200, PopularEntitiesTopic: "semantic:warmup:complete"},
		},
		Conductor: ConductorConfig{
			MaxConcurrency:        8,
			MemoryLimitMB:         2048,
			Priority:              5,
			TaskQueueLimit:        500,
			LoadBalancingStrategy: "least-loaded",
			ComplexityThreshold:   8,
			MandatoryDelegation:   true,
			ResourceConstraints: ResourceConstraints{
				MaxMemoryMB: 4096, MaxCPUPercent: 80, MaxConcurrentAgents: 16, MaxTaskQueueSize: 500,
			},
		},
		QueryAgent: QueryAgentConfig{
			MaxConcurrency:        4,
			MemoryLimitMB:         512,
			Priority:              5,
			SimpleQueryTimeoutMs:  100,
			ComplexQueryTimeoutMs: 1000,
			CacheWarmupSize:       100,
			CacheTTL:              5 * time.Minute,
			CacheCapacity:         1000,
			HotspotWeights:        HotspotWeights{Incoming: 2, Outgoing: 1, Complexity: 1},
			TraversalMaxDepth:     10,
		},
		DevAgent: DevAgentConfig{
			MaxConcurrency: 2,
			MemoryLimitMB:  1024,
			Priority:       5,
			IndexBatchSize: 100,
			UseParser:      true,
			Extensions:     []string{".ts", ".tsx", ".js", ".jsx", ".py", ".java", ".cpp", ".c", ".go", ".rs"},
			IgnorePatterns: []string{"node_modules", "dist", "build", "out", "coverage", ".git"},
		},
		Parser: ParserConfig{
			TreeSitter: TreeSitterConfig{
				Enabled: true,
				LanguageConfigs: map[string]LanguageConfig{
					"go":         {Extensions: []string{".go"}},
					"javascript": {Extensions: []string{".js", ".jsx"}},
					"typescript": {Extensions: []string{".ts", ".tsx"}},
					"python":     {Extensions: []string{".py"}},
				},
			},
		},
		Coordinator: CoordinatorConfig{LoadBalancingStrategy: "round-robin"},
		Logging:     LoggingConfig{DebugMode: false, Dir: ".codegraph/logs"},
	}
}

// Load reads a YAML config file, overlaying it on DefaultConfig. A missing
// file is not an error: the caller gets the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
