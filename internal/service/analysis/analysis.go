// Package analysis wires the clone detection and reachability engines
// into a cacheable, config-aware service consumed by the CLI.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v6/plumbing/format/gitignore"
	"github.com/panbanda/clonewatch/internal/cache"
	"github.com/panbanda/clonewatch/internal/vcs"
	"github.com/panbanda/clonewatch/pkg/analyze"
	"github.com/panbanda/clonewatch/pkg/analyzer"
	"github.com/panbanda/clonewatch/pkg/clones"
	"github.com/panbanda/clonewatch/pkg/config"
	"github.com/panbanda/clonewatch/pkg/reachgraph"
	"github.com/panbanda/clonewatch/pkg/source"
)

// Service orchestrates code analysis operations.
type Service struct {
	config *config.Config
	opener vcs.Opener
	cache  *cache.Cache
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithOpener sets the VCS opener (for testing).
func WithOpener(opener vcs.Opener) Option {
	return func(s *Service) {
		s.opener = opener
	}
}

// WithCache sets the cache for storing analysis results.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	cfg, _ := config.LoadOrDefault()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Service{
		config: cfg,
		opener: vcs.DefaultOpener(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases any resources held by the service.
func (s *Service) Close() error {
	return nil
}

// cacheKey generates a unique key for caching analysis results.
func (s *Service) cacheKey(analyzerName string, files []string, opts any) string {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(analyzerName))
	h.Write([]byte(strings.Join(sorted, "\n")))

	if opts != nil {
		if optsJSON, err := json.Marshal(opts); err == nil {
			h.Write(optsJSON)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func computeFilesHash(files []string) (string, error) {
	h := sha256.New()
	for _, f := range files {
		hash, err := cache.HashFile(f)
		if err != nil {
			return "", err
		}
		h.Write([]byte(hash))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Service) createExcludeMatcher() gitignore.Matcher {
	var patterns []gitignore.Pattern
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	return gitignore.NewMatcher(patterns)
}

func (s *Service) shouldExcludePath(path string) bool {
	matcher := s.createExcludeMatcher()
	cleanPath := filepath.Clean(path)
	cleanPath = strings.TrimPrefix(cleanPath, "./")
	parts := strings.Split(cleanPath, string(filepath.Separator))
	return matcher.Match(parts, false)
}

// DuplicatesOptions configures clone detection.
type DuplicatesOptions struct {
	MinLines            int
	MinTokens           int
	SimilarityThreshold float64
	CloneTypes          []clones.Type
	OnProgress          func()
}

type duplicatesCacheOpts struct {
	MinTokens           int     `json:"min_tokens"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// AnalyzeDuplicates detects code clones across the given files.
func (s *Service) AnalyzeDuplicates(ctx context.Context, files []string, opts DuplicatesOptions) (*clones.Analysis, error) {
	minTokens := opts.MinTokens
	if minTokens <= 0 && opts.MinLines > 0 {
		minTokens = opts.MinLines * 8
	}
	if minTokens <= 0 {
		minTokens = s.config.Thresholds.DuplicateMinLines * 8
	}

	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = s.config.Thresholds.DuplicateSimilarity
	}

	cacheOpts := duplicatesCacheOpts{MinTokens: minTokens, SimilarityThreshold: threshold}
	cacheKey := s.cacheKey("clones", files, cacheOpts)
	var filesHash string
	if s.cache != nil {
		var err error
		filesHash, err = computeFilesHash(files)
		if err != nil {
			filesHash = ""
		}
	}
	if s.cache != nil && filesHash != "" {
		if data, ok := s.cache.GetWithHash(cacheKey, filesHash); ok {
			var result clones.Analysis
			if err := json.Unmarshal(data, &result); err == nil {
				return &result, nil
			}
		}
	}

	if opts.OnProgress != nil {
		tracker := analyzer.NewTracker(func(_, _ int, _ string) {
			opts.OnProgress()
		})
		ctx = analyzer.WithTracker(ctx, tracker)
	}

	cfg := analyze.DefaultConfig()
	cfg.MinTokens = minTokens
	cfg.SimilarityThreshold = threshold
	cfg.CloneTypes = opts.CloneTypes
	cfg.ExcludePaths = s.config.Exclude.Patterns

	result, err := analyze.DetectClones(ctx, files, source.NewFilesystem(), cfg)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && filesHash != "" {
		if data, err := json.Marshal(result); err == nil {
			s.cache.SetWithHash(cacheKey, filesHash, data)
		}
	}

	return result, nil
}

// DeadCodeOptions configures reachability / unused-code detection.
type DeadCodeOptions struct {
	Confidence  float64
	MaxFileSize int64
	OnProgress  func()
}

// AnalyzeDeadCode detects potentially unreachable declarations.
func (s *Service) AnalyzeDeadCode(ctx context.Context, files []string, opts DeadCodeOptions) (*reachgraph.Analysis, error) {
	confidence := opts.Confidence
	if confidence == 0 {
		confidence = s.config.Thresholds.DeadCodeConfidence
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = s.config.Analysis.MaxFileSize
	}

	if opts.OnProgress != nil {
		tracker := analyzer.NewTracker(func(_, _ int, _ string) {
			opts.OnProgress()
		})
		ctx = analyzer.WithTracker(ctx, tracker)
	}

	cfg := analyze.DefaultConfig()
	cfg.Confidence = confidence
	cfg.MaxFileSize = maxFileSize
	cfg.ExcludePaths = s.config.Exclude.Patterns

	result, err := analyze.DetectUnused(ctx, files, cfg)
	if err != nil {
		return nil, err
	}

	result.DeadFunctions = s.filterDeadFunctions(result.DeadFunctions)
	return result, nil
}

func (s *Service) filterDeadFunctions(items []reachgraph.Function) []reachgraph.Function {
	if len(s.config.Exclude.Patterns) == 0 {
		return items
	}
	filtered := make([]reachgraph.Function, 0, len(items))
	for _, f := range items {
		if !s.shouldExcludePath(f.File) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// RankedFile represents a file with its duplication severity for sorting.
type RankedFile struct {
	Path  string
	Score float64
}

// SortFilesByDuplication ranks files by hotspot severity from a clone analysis.
func (s *Service) SortFilesByDuplication(ctx context.Context, files []string, opts DuplicatesOptions) ([]RankedFile, error) {
	analysis, err := s.AnalyzeDuplicates(ctx, files, opts)
	if err != nil {
		return nil, err
	}

	scoreMap := make(map[string]float64)
	for _, hs := range analysis.Summary.Hotspots {
		scoreMap[hs.File] = hs.Severity
	}

	ranked := make([]RankedFile, 0, len(files))
	for _, f := range files {
		ranked = append(ranked, RankedFile{Path: f, Score: scoreMap[f]})
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked, nil
}
