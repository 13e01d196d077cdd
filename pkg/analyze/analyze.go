// Package analyze is the top-level facade: it wires the ignore scanner,
// clone detection engine, reachability engine, and result filter together
// into the three operations a driver actually calls.
package analyze

import (
	"context"
	"errors"
	"os"
	"regexp"

	"github.com/panbanda/clonewatch/pkg/clones"
	"github.com/panbanda/clonewatch/pkg/ignore"
	"github.com/panbanda/clonewatch/pkg/reachgraph"
	"github.com/panbanda/clonewatch/pkg/resultfilter"
	"github.com/panbanda/clonewatch/pkg/source"
)

// Config carries every recognized option for both detectors plus the result
// filter's exclusion flags, named after the vocabulary a driver exposes on
// its command line or config file.
type Config struct {
	// Clone detection.
	MinTokens           int
	SimilarityThreshold float64
	CloneTypes          []clones.Type

	// Unused-declaration detection.
	Confidence        float64
	MaxFileSize       int64
	BFSMode           reachgraph.BFSMode
	TreatPublicAsRoot bool
	TreatTestsAsRoot  bool

	// Result filter.
	ExcludeTestSuites   bool
	ExcludeImports      bool
	ExcludeDeinit       bool
	ExcludeEnumCases    bool
	ExcludePaths        []string
	ExcludeNamePatterns []string
	SensibleDefaults    bool
}

// DefaultConfig returns the recognized defaults: minTokens 50, 0.70
// similarity, reachability confidence 0.8, safe parallel BFS, public API and
// tests both treated as roots.
func DefaultConfig() Config {
	return Config{
		MinTokens:           50,
		SimilarityThreshold: 0.70,
		Confidence:          0.8,
		BFSMode:             reachgraph.BFSSafe,
		TreatPublicAsRoot:   true,
		TreatTestsAsRoot:    true,
	}
}

// Validate rejects configuration values the detectors can't act on, rather
// than silently clamping them.
func (c Config) Validate() error {
	if c.MinTokens < 1 || c.MinTokens > 10000 {
		return &ConfigError{Field: "minTokens", Message: "must be in 1..10000"}
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return &ConfigError{Field: "minSimilarity", Message: "must be in 0..1"}
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return &ConfigError{Field: "confidence", Message: "must be in 0..1"}
	}
	for _, pattern := range c.ExcludeNamePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return &ConfigError{Field: "excludeNamePatterns", Message: err.Error()}
		}
	}
	return nil
}

// Result is the combined output of a full analyze call.
type Result struct {
	Clones *clones.Analysis
	Unused *reachgraph.Analysis
}

// Analyze runs both detectors over files and returns their filtered
// results.
func Analyze(ctx context.Context, files []string, src source.ContentSource, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = source.NewFilesystem()
	}

	cloneAnalysis, err := DetectClones(ctx, files, src, cfg)
	if err != nil {
		return nil, err
	}

	unusedAnalysis, err := DetectUnused(ctx, files, cfg)
	if err != nil {
		return nil, err
	}

	return &Result{Clones: cloneAnalysis, Unused: unusedAnalysis}, nil
}

// DetectClones runs the clone detection engine over files, then filters the
// result against ignore directives scanned from the same files.
func DetectClones(ctx context.Context, files []string, src source.ContentSource, cfg Config) (*clones.Analysis, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{}
	}
	if src == nil {
		src = source.NewFilesystem()
	}

	regions, err := scanRegionsFromSource(files, src)
	if err != nil {
		return nil, err
	}

	analyzer := clones.New(
		clones.WithMinTokens(cfg.MinTokens),
		clones.WithSimilarityThreshold(cfg.SimilarityThreshold),
		clones.WithCloneTypes(cfg.CloneTypes...),
	)
	defer analyzer.Close()

	result, err := analyzer.Analyze(ctx, files, src)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, &CancelledError{}
		}
		return nil, err
	}

	return buildFilter(cfg).FilterClones(regions, result), nil
}

// DetectUnused runs the reachability engine over files, then filters the
// result against ignore-unused directives scanned from the same files.
func DetectUnused(ctx context.Context, files []string, cfg Config) (*reachgraph.Analysis, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{}
	}

	regions, err := scanRegionsFromDisk(files)
	if err != nil {
		return nil, err
	}

	analyzer := reachgraph.New(
		reachgraph.WithConfidence(cfg.Confidence),
		reachgraph.WithMaxFileSize(cfg.MaxFileSize),
		reachgraph.WithBFSMode(validBFSMode(cfg.BFSMode)),
		reachgraph.WithPublicAsRoot(cfg.TreatPublicAsRoot),
		reachgraph.WithTestsAsRoot(cfg.TreatTestsAsRoot),
	)
	defer analyzer.Close()

	result, err := analyzer.Analyze(ctx, files)
	if err != nil {
		if errors.Is(err, reachgraph.ErrCancelled) || errors.Is(err, context.Canceled) {
			return nil, &CancelledError{}
		}
		return nil, err
	}

	return buildFilter(cfg).FilterUnused(regions, result), nil
}

func validBFSMode(mode reachgraph.BFSMode) reachgraph.BFSMode {
	switch mode {
	case reachgraph.BFSNone, reachgraph.BFSSafe, reachgraph.BFSMaximum:
		return mode
	default:
		return reachgraph.BFSSafe
	}
}

func buildFilter(cfg Config) *resultfilter.Filter {
	var opts []resultfilter.Option
	if cfg.SensibleDefaults {
		opts = append(opts, resultfilter.WithSensibleDefaults())
	}
	if cfg.ExcludeTestSuites {
		opts = append(opts, resultfilter.WithExcludeTestSuites())
	}
	if cfg.ExcludeImports {
		opts = append(opts, resultfilter.WithExcludeImports())
	}
	if cfg.ExcludeDeinit {
		opts = append(opts, resultfilter.WithExcludeDeinit())
	}
	if cfg.ExcludeEnumCases {
		opts = append(opts, resultfilter.WithExcludeEnumCases())
	}
	if len(cfg.ExcludePaths) > 0 {
		opts = append(opts, resultfilter.WithExcludePaths(cfg.ExcludePaths...))
	}

	f := resultfilter.New(opts...)
	for _, pattern := range cfg.ExcludeNamePatterns {
		_ = f.AddNamePattern(pattern) // already validated by Config.Validate
	}
	return f
}

// scanRegionsFromSource scans every file through src, the same ContentSource
// the clone detector reads from, so the two stay consistent over a git-tree
// or other non-filesystem source.
func scanRegionsFromSource(files []string, src source.ContentSource) ([]ignore.Region, error) {
	scanner := ignore.New()
	var regions []ignore.Region
	for _, path := range files {
		content, err := src.Read(path)
		if err != nil {
			return nil, &IOError{Path: path, Cause: err}
		}
		regions = append(regions, scanner.Scan(path, content)...)
	}
	return regions, nil
}

// scanRegionsFromDisk scans every file directly from the filesystem,
// matching how pkg/reachgraph itself reads files (no ContentSource
// indirection in that engine).
func scanRegionsFromDisk(files []string) ([]ignore.Region, error) {
	scanner := ignore.New()
	var regions []ignore.Region
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, &IOError{Path: path, Cause: err}
		}
		regions = append(regions, scanner.Scan(path, content)...)
	}
	return regions, nil
}
