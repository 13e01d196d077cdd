package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for clonewatch.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis"`

	// Thresholds for clone and dead-code detection
	Thresholds ThresholdConfig `koanf:"thresholds"`

	// Duplicate detection settings
	Duplicates DuplicateConfig `koanf:"duplicates"`

	// Reachability / dead-code detection settings
	Reachability ReachabilityConfig `koanf:"reachability"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output"`
}

// AnalysisConfig controls which analyzers run.
type AnalysisConfig struct {
	Duplicates  bool  `koanf:"duplicates"`
	DeadCode    bool  `koanf:"dead_code"`
	MaxFileSize int64 `koanf:"max_file_size"` // Maximum file size in bytes (0 = no limit)
}

// ThresholdConfig defines metric thresholds.
type ThresholdConfig struct {
	DuplicateMinLines   int     `koanf:"duplicate_min_lines"`
	DuplicateSimilarity float64 `koanf:"duplicate_similarity"`
	DeadCodeConfidence  float64 `koanf:"dead_code_confidence"`
}

// DuplicateConfig defines duplicate detection settings (pmat-compatible).
type DuplicateConfig struct {
	MinTokens            int     `koanf:"min_tokens"`
	SimilarityThreshold  float64 `koanf:"similarity_threshold"`
	ShingleSize          int     `koanf:"shingle_size"`
	NumHashFunctions     int     `koanf:"num_hash_functions"`
	NumBands             int     `koanf:"num_bands"`
	RowsPerBand          int     `koanf:"rows_per_band"`
	NormalizeIdentifiers bool    `koanf:"normalize_identifiers"`
	NormalizeLiterals    bool    `koanf:"normalize_literals"`
	IgnoreComments       bool    `koanf:"ignore_comments"`
	MinGroupSize         int     `koanf:"min_group_size"`
	CloneTypes           []string `koanf:"clone_types"` // subset of "type1","type2","type3"
}

// ReachabilityConfig defines dead-code / unused-declaration detection settings.
type ReachabilityConfig struct {
	// EntryPoints are additional root symbols (beyond main/exported/test
	// entry points) that should always be treated as reachable.
	EntryPoints []string `koanf:"entry_points"`

	// TreatExportedAsRoot marks all exported declarations in library
	// packages as reachable roots, regardless of call-graph reachability.
	TreatExportedAsRoot bool `koanf:"treat_exported_as_root"`

	// CoveragePath is an optional path to a coverage profile used to
	// corroborate static reachability with runtime exercise data.
	CoveragePath string `koanf:"coverage_path"`

	// DetectUnreachableBlocks enables within-function unreachable-block
	// detection (code after return/panic/os.Exit, etc.).
	DetectUnreachableBlocks bool `koanf:"detect_unreachable_blocks"`
}

// ExcludeConfig defines file exclusion patterns using gitignore-style syntax.
// All patterns in the Patterns list are parsed as gitignore patterns and combined
// with the repository's .gitignore file (when Gitignore is true).
type ExcludeConfig struct {
	// Patterns uses gitignore syntax for excluding files:
	//   - "*_test.go"     matches any file ending in _test.go
	//   - "vendor/"       matches the vendor directory
	//   - "*.min.js"      matches minified JS files
	//   - "cmd/**/main.go" matches main.go in any subdirectory of cmd
	//   - "!important.go" negates a previous pattern (include the file)
	Patterns []string `koanf:"patterns"`

	// Gitignore controls whether to also respect .gitignore files.
	// When true, patterns from .gitignore are combined with Patterns.
	Gitignore bool `koanf:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	TTL     int    `koanf:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, json, markdown
	Color   bool   `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Duplicates:  true,
			DeadCode:    true,
			MaxFileSize: 10 * 1024 * 1024, // 10 MB default
		},
		Thresholds: ThresholdConfig{
			DuplicateMinLines:   6,
			DuplicateSimilarity: 0.8,
			DeadCodeConfidence:  0.8,
		},
		Duplicates: DuplicateConfig{
			MinTokens:            50,
			SimilarityThreshold:  0.70,
			ShingleSize:          5,
			NumHashFunctions:     200,
			NumBands:             20,
			RowsPerBand:          10,
			NormalizeIdentifiers: true,
			NormalizeLiterals:    true,
			IgnoreComments:       true,
			MinGroupSize:         2,
			CloneTypes:           []string{"type1", "type2", "type3"},
		},
		Reachability: ReachabilityConfig{
			EntryPoints:             []string{},
			TreatExportedAsRoot:     false,
			DetectUnreachableBlocks: true,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				// Test files
				"*_test.go",
				"*_test.ts",
				"*_test.py",
				"*.spec.ts",
				"*.spec.js",
				"*_spec.rb",
				"**/*_test/**",
				"**/test/**",
				"**/tests/**",
				"**/spec/**",
				// Minified assets
				"*.min.js",
				"*.min.css",
				// Lock files
				"*.lock",
				"go.sum",
				// Vendor directories
				"vendor/",
				"node_modules/",
				"third_party/",
				"external/",
				// Build/output directories
				".git/",
				".clonewatch/",
				"dist/",
				"build/",
				"target/",
				"out/",
				"bin/",
				// Python
				"__pycache__/",
				".venv/",
				"venv/",
				"site-packages/",
				// Ruby
				".bundle/",
				"sorbet/",
				// JavaScript/Node
				".yarn/", // Yarn 2+ PnP releases and plugins
				// Coverage/test output
				"coverage/",
				".nyc_output/",
				// Auto-generated code
				"**/mocks/",
				"**/*.gen.go",
				"**/*.generated.go",
				"**/*.pb.go",
				"**/generated/",
				"**/gen/",
				"**/*.auto.ts",
				"**/*.g.dart",
				"*_generated.rb",
				// Schema/migration files (often auto-generated)
				"**/schema.rb",
				"**/structure.sql",
				// IDE/editor directories
				".idea/",
				".vscode/",
				".vs/",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".clonewatch/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		parser = json.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		parser = yaml.Parser()
	}

	// Load the config file
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path if found, or empty string if not found.
func FindConfigFile() string {
	configNames := []string{
		".clonewatch.yaml",
		".clonewatch.yml",
		".clonewatch.json",
	}

	searchDirs := []string{".", ".clonewatch"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOption configures how configuration is loaded.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
}

// WithPath specifies an explicit config file path.
// If the path doesn't exist, an error is returned.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadResult contains the loaded configuration and metadata.
type LoadResult struct {
	Config *Config
	Source string // Path to the config file, empty if using defaults
}

// LoadConfig loads configuration with the provided options.
// If no path is specified, it searches standard locations.
// Returns defaults if no config file is found.
// Always validates the config before returning.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var cfg *Config
	var source string
	var err error

	if o.path != "" {
		if _, statErr := os.Stat(o.path); os.IsNotExist(statErr) {
			return nil, fmt.Errorf("config file not found: %s", o.path)
		}
		cfg, err = Load(o.path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", o.path, err)
		}
		source = o.path
	} else {
		source = FindConfigFile()
		if source == "" {
			cfg = DefaultConfig()
		} else {
			cfg, err = Load(source)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", source, err)
			}
		}
	}

	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("config validation failed: %w", validationErr)
	}

	return &LoadResult{Config: cfg, Source: source}, nil
}

// LoadOrDefault loads config from standard locations or returns defaults.
// Returns an error if validation fails.
func LoadOrDefault() (*Config, error) {
	result, err := LoadConfig()
	if err != nil {
		if FindConfigFile() == "" {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return result.Config, nil
}

// ShouldExclude is deprecated. Use the scanner's gitignore-based matching instead.
// This method is kept for backward compatibility but only does basic pattern matching.
func (c *Config) ShouldExclude(path string) bool {
	// Basic pattern matching for backward compatibility
	// The scanner now handles full gitignore-style matching
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		// Skip directory patterns (handled by scanner)
		if strings.HasSuffix(pattern, "/") {
			continue
		}
		// Skip glob patterns with path separators (handled by scanner)
		if strings.Contains(pattern, "/") {
			continue
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// ErrFileTooLarge is returned when a file exceeds the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// IsFileTooLarge checks if a file exceeds the configured maximum size.
// Returns true if the file is too large, false otherwise.
// If maxSize is 0, no limit is enforced.
func IsFileTooLarge(size int64, maxSize int64) bool {
	if maxSize <= 0 {
		return false
	}
	return size > maxSize
}

// Validate checks that all config values are within acceptable ranges.
// Returns an error describing any validation failures.
func (c *Config) Validate() error {
	var errs []error

	if c.Analysis.MaxFileSize < 0 {
		errs = append(errs, errors.New("analysis.max_file_size must be non-negative"))
	}

	// Threshold validation
	if c.Thresholds.DuplicateMinLines < 1 {
		errs = append(errs, errors.New("thresholds.duplicate_min_lines must be at least 1"))
	}
	if c.Thresholds.DuplicateSimilarity < 0 || c.Thresholds.DuplicateSimilarity > 1 {
		errs = append(errs, errors.New("thresholds.duplicate_similarity must be between 0 and 1"))
	}
	if c.Thresholds.DeadCodeConfidence < 0 || c.Thresholds.DeadCodeConfidence > 1 {
		errs = append(errs, errors.New("thresholds.dead_code_confidence must be between 0 and 1"))
	}

	// Duplicate config validation
	if c.Duplicates.MinTokens < 1 {
		errs = append(errs, errors.New("duplicates.min_tokens must be at least 1"))
	}
	if c.Duplicates.SimilarityThreshold < 0 || c.Duplicates.SimilarityThreshold > 1 {
		errs = append(errs, errors.New("duplicates.similarity_threshold must be between 0 and 1"))
	}
	if c.Duplicates.ShingleSize < 1 {
		errs = append(errs, errors.New("duplicates.shingle_size must be at least 1"))
	}
	if c.Duplicates.NumHashFunctions < 1 {
		errs = append(errs, errors.New("duplicates.num_hash_functions must be at least 1"))
	}
	if c.Duplicates.NumBands < 1 {
		errs = append(errs, errors.New("duplicates.num_bands must be at least 1"))
	}
	if c.Duplicates.RowsPerBand < 1 {
		errs = append(errs, errors.New("duplicates.rows_per_band must be at least 1"))
	}
	if c.Duplicates.MinGroupSize < 2 {
		errs = append(errs, errors.New("duplicates.min_group_size must be at least 2"))
	}

	// Validate relationship: NumHashFunctions should equal NumBands * RowsPerBand
	if c.Duplicates.NumHashFunctions != c.Duplicates.NumBands*c.Duplicates.RowsPerBand {
		errs = append(errs, fmt.Errorf(
			"duplicates.num_hash_functions (%d) should equal num_bands (%d) * rows_per_band (%d) = %d",
			c.Duplicates.NumHashFunctions,
			c.Duplicates.NumBands,
			c.Duplicates.RowsPerBand,
			c.Duplicates.NumBands*c.Duplicates.RowsPerBand,
		))
	}

	// Cache config validation
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must be non-negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
