// Package clones detects duplicated code fragments across a project using
// three independent algorithms, one per clone type: a rolling-hash sliding
// window over raw tokens for exact (Type-1) clones, a suffix array over
// normalized tokens for near (Type-2) clones, and AST structural
// fingerprints plus MinHash+LSH candidate search for semantic (Type-3)
// clones. Each clone's type comes from which algorithm found it, not from a
// similarity-score cutoff.
package clones

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/panbanda/clonewatch/internal/fileproc"
	"github.com/panbanda/clonewatch/pkg/analyzer"
	"github.com/panbanda/clonewatch/pkg/config"
	"github.com/panbanda/clonewatch/pkg/parser"
	"github.com/panbanda/clonewatch/pkg/source"
	"github.com/panbanda/clonewatch/pkg/stats"
	"github.com/panbanda/clonewatch/pkg/tokennorm"
	"github.com/cespare/xxhash/v2"
)

// Analyzer detects code clones via rolling-hash, suffix-array, and
// AST-fingerprint/MinHash detection.
type Analyzer struct {
	parser      *parser.Parser
	config      Config
	maxFileSize int64
	normalizer  *tokennorm.Normalizer
}

// Compile-time check that Analyzer implements analyzer.SourceFileAnalyzer[*Analysis].
var _ analyzer.SourceFileAnalyzer[*Analysis] = (*Analyzer)(nil)

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMinTokens sets the minimum number of tokens for a code fragment.
func WithMinTokens(minTokens int) Option {
	return func(a *Analyzer) {
		a.config.MinTokens = minTokens
	}
}

// WithSimilarityThreshold sets the similarity threshold for clone detection.
func WithSimilarityThreshold(threshold float64) Option {
	return func(a *Analyzer) {
		a.config.SimilarityThreshold = threshold
	}
}

// WithCloneTypes restricts reported clones/groups to the given types.
func WithCloneTypes(types ...Type) Option {
	return func(a *Analyzer) {
		a.config.CloneTypes = types
	}
}

// WithConfig sets all clone detection configuration from a config struct.
func WithConfig(cfg config.DuplicateConfig) Option {
	return func(a *Analyzer) {
		a.config = Config{
			MinTokens:            cfg.MinTokens,
			SimilarityThreshold:  cfg.SimilarityThreshold,
			ShingleSize:          cfg.ShingleSize,
			NumHashFunctions:     cfg.NumHashFunctions,
			NumBands:             cfg.NumBands,
			RowsPerBand:          cfg.RowsPerBand,
			NormalizeIdentifiers: cfg.NormalizeIdentifiers,
			NormalizeLiterals:    cfg.NormalizeLiterals,
			IgnoreComments:       cfg.IgnoreComments,
			MinGroupSize:         cfg.MinGroupSize,
		}
		for _, t := range cfg.CloneTypes {
			a.config.CloneTypes = append(a.config.CloneTypes, Type(t))
		}
	}
}

// WithMaxFileSize sets the maximum file size to analyze (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(a *Analyzer) {
		a.maxFileSize = maxSize
	}
}

// New creates a new clone analyzer with default config.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		parser:      parser.New(),
		config:      DefaultConfig(),
		maxFileSize: 0,
		normalizer:  tokennorm.NewNormalizer(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze detects code clones across files read from src.
func (a *Analyzer) Analyze(ctx context.Context, files []string, src source.ContentSource) (*Analysis, error) {
	minTokens := a.config.MinTokens
	if minTokens <= 0 {
		minTokens = 1
	}
	if minTokens > 10000 {
		minTokens = 10000
	}

	tokenized := fileproc.MapSourceFilesWithSizeLimit(ctx, files, src, a.maxFileSize,
		func(psr *parser.Parser, path string, content []byte) (fileTokens, error) {
			return a.tokenize(psr, path, content)
		})

	byPath := make(map[string]fileTokens, len(tokenized))
	totalLines := 0
	for _, ft := range tokenized {
		byPath[ft.path] = ft
		if n := len(ft.original); n > 0 {
			totalLines += int(ft.original[n-1].Line)
		}
	}

	var groups []Group

	groups = append(groups, a.exactClones(tokenized, minTokens)...)
	groups = append(groups, a.nearClones(tokenized, minTokens)...)
	groups = append(groups, a.semanticClones(ctx, files, src, byPath, minTokens)...)

	for i := range groups {
		groups[i].ID = uint64(i + 1)
	}
	if len(a.config.CloneTypes) > 0 {
		groups = filterGroupsByType(groups, a.config)
	}

	return Rebuild(groups, len(files), minTokens, a.config.SimilarityThreshold, totalLines), nil
}

// exactClones runs the rolling-hash sliding-window detector over each
// file's raw token stream and reports Type1 groups.
func (a *Analyzer) exactClones(files []fileTokens, minTokens int) []Group {
	var windows []tokenWindow
	for _, ft := range files {
		windows = append(windows, slidingWindows(ft.path, rawTexts(ft), rawLines(ft), minTokens)...)
	}

	var groups []Group
	for _, members := range exactGroups(windows, minTokens) {
		groups = append(groups, Group{
			Type:              Type1,
			Method:            "rolling-hash",
			Instances:         windowsToInstances(members),
			TotalLines:        totalInstanceLines(members),
			TotalTokens:       len(members) * minTokens,
			AverageSimilarity: 1.0,
		})
	}
	return groups
}

// nearClones runs the suffix-array LCP detector over every file's
// normalized token stream and reports Type2 groups, scored against the
// original (pre-normalization) token text.
func (a *Analyzer) nearClones(files []fileTokens, minTokens int) []Group {
	byPath := make(map[string]fileTokens, len(files))
	for _, ft := range files {
		byPath[ft.path] = ft
	}

	ids, positions := buildCorpus(files, normalizedTexts, rawLines)

	var groups []Group
	for _, members := range suffixArrayGroups(ids, positions, minTokens) {
		var originals [][]string
		for _, w := range members {
			ft := byPath[w.file]
			texts := make([]string, 0, minTokens)
			for i := w.startIdx; i <= w.endIdx && i < len(ft.original); i++ {
				texts = append(texts, ft.original[i].Text)
			}
			originals = append(originals, texts)
		}

		similarity := averagePairwiseJaccard(originals)
		if similarity < a.config.SimilarityThreshold {
			continue
		}

		groups = append(groups, Group{
			Type:              Type2,
			Method:            "suffix-array",
			Instances:         windowsToInstances(members),
			TotalLines:        totalInstanceLines(members),
			TotalTokens:       len(members) * minTokens,
			AverageSimilarity: similarity,
		})
	}
	return groups
}

// semanticClones runs the AST-fingerprint detector and the MinHash+LSH
// candidate search over function-level fragments and reports Type3 groups.
func (a *Analyzer) semanticClones(ctx context.Context, files []string, src source.ContentSource, byPath map[string]fileTokens, minTokens int) []Group {
	var groups []Group

	fingerprints := fileproc.MapSourceFilesWithSizeLimit(ctx, files, src, a.maxFileSize,
		func(psr *parser.Parser, path string, content []byte) ([]astFingerprint, error) {
			return fingerprintFunctions(psr, path, content)
		})
	var allFingerprints []astFingerprint
	for _, fs := range fingerprints {
		allFingerprints = append(allFingerprints, fs...)
	}
	for _, members := range fingerprintGroups(allFingerprints, a.config.SimilarityThreshold) {
		var sum float64
		var count int
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				sum += fingerprintSimilarity(members[i], members[j])
				count++
			}
		}
		avg := 1.0
		if count > 0 {
			avg = sum / float64(count)
		}

		var instances []Instance
		var totalLines int
		for _, f := range members {
			lines := int(f.endLine - f.startLine + 1)
			instances = append(instances, Instance{
				File:      f.file,
				StartLine: f.startLine,
				EndLine:   f.endLine,
				Lines:     lines,
			})
			totalLines += lines
		}

		groups = append(groups, Group{
			Type:              Type3,
			Method:            "ast-fingerprint",
			Instances:         instances,
			TotalLines:        totalLines,
			AverageSimilarity: avg,
		})
	}

	fragments := a.functionFragments(files, byPath, minTokens)

	for i := range fragments {
		fragments[i].signature = a.computeMinHash(fragments[i].tokens)
		fragments[i].normalizedHash = computeNormalizedHash(fragments[i].tokens)
	}
	pairs := a.findClonePairsLSH(fragments)
	groups = append(groups, groupClonesLSH(fragments, pairs, a.config.MinGroupSize)...)

	return groups
}

// functionFragments builds one codeFragment per function-like span in each
// tokenized file, for the MinHash+LSH candidate search.
func (a *Analyzer) functionFragments(files []string, byPath map[string]fileTokens, minTokens int) []codeFragment {
	var fragments []codeFragment
	for _, path := range files {
		ft, ok := byPath[path]
		if !ok {
			continue
		}
		for _, fn := range ft.functions {
			frag := fragmentFromTokens(ft, uint32(fn.Pos.Line), uint32(fn.EndLine), a.config.IgnoreComments, minTokens)
			if frag != nil {
				fragments = append(fragments, *frag)
			}
		}
	}
	return fragments
}

// filterGroupsByType keeps only groups whose type is in cfg.CloneTypes.
func filterGroupsByType(groups []Group, cfg Config) []Group {
	filtered := make([]Group, 0, len(groups))
	for _, g := range groups {
		if cfg.includesType(g.Type) {
			filtered = append(filtered, g)
		}
	}
	return filtered
}

func windowsToInstances(windows []tokenWindow) []Instance {
	instances := make([]Instance, 0, len(windows))
	for _, w := range windows {
		instances = append(instances, Instance{
			File:           w.file,
			StartLine:      w.startLine,
			EndLine:        w.endLine,
			Lines:          int(w.endLine-w.startLine) + 1,
			NormalizedHash: w.hash,
			Similarity:     1.0,
		})
	}
	return instances
}

func totalInstanceLines(windows []tokenWindow) int {
	total := 0
	for _, w := range windows {
		total += int(w.endLine-w.startLine) + 1
	}
	return total
}

// computeNormalizedHash computes a hash of a token sequence, used as the
// Instance.NormalizedHash display field.
func computeNormalizedHash(tokens []string) uint64 {
	return xxhash.Sum64String(strings.Join(tokens, " "))
}

// computeHotspots identifies files with high duplication.
func computeHotspots(groups []Group) []Hotspot {
	fileStats := make(map[string]struct {
		lines     int
		groupsSet map[uint64]bool
	})

	for _, group := range groups {
		for _, inst := range group.Instances {
			st, ok := fileStats[inst.File]
			if !ok {
				st = struct {
					lines     int
					groupsSet map[uint64]bool
				}{groupsSet: make(map[uint64]bool)}
			}
			st.lines += inst.Lines
			st.groupsSet[group.ID] = true
			fileStats[inst.File] = st
		}
	}

	var hotspots []Hotspot
	for file, st := range fileStats {
		severity := math.Log(float64(st.lines)+1) * math.Sqrt(float64(len(st.groupsSet)))
		hotspots = append(hotspots, Hotspot{
			File:            file,
			DuplicateLines:  st.lines,
			CloneGroupCount: len(st.groupsSet),
			Severity:        severity,
		})
	}

	sort.Slice(hotspots, func(i, j int) bool {
		return hotspots[i].Severity > hotspots[j].Severity
	})

	if len(hotspots) > 10 {
		hotspots = hotspots[:10]
	}

	return hotspots
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {
	a.parser.Close()
}

// Rebuild reassembles an Analysis from a (possibly filtered) set of Groups,
// recomputing the pairwise Clone list, Summary, and Hotspots the same way
// Analyze does. Used by pkg/resultfilter after dropping ignored or excluded
// group members, so the derived fields never go stale relative to Groups.
func Rebuild(groups []Group, totalFilesScanned int, minTokens int, threshold float64, totalLines int) *Analysis {
	analysis := &Analysis{
		Clones:            make([]Clone, 0),
		Groups:            groups,
		Summary:           NewSummary(),
		TotalFilesScanned: totalFilesScanned,
		MinLines:          minTokens / 8,
		Threshold:         threshold,
	}
	analysis.Summary.TotalGroups = len(groups)

	for _, group := range groups {
		for i := 0; i < len(group.Instances); i++ {
			for j := i + 1; j < len(group.Instances); j++ {
				instA := group.Instances[i]
				instB := group.Instances[j]
				clone := Clone{
					Type:       group.Type,
					Similarity: group.AverageSimilarity,
					FileA:      instA.File,
					FileB:      instB.File,
					StartLineA: instA.StartLine,
					EndLineA:   instA.EndLine,
					StartLineB: instB.StartLine,
					EndLineB:   instB.EndLine,
					LinesA:     instA.Lines,
					LinesB:     instB.Lines,
					GroupID:    group.ID,
					Method:     group.Method,
				}
				analysis.Clones = append(analysis.Clones, clone)
				analysis.Summary.AddClone(clone)
			}
		}
	}

	if len(analysis.Clones) > 0 {
		similarities := make([]float64, len(analysis.Clones))
		var totalSim float64
		for i, c := range analysis.Clones {
			similarities[i] = c.Similarity
			totalSim += c.Similarity
		}
		analysis.Summary.AvgSimilarity = totalSim / float64(len(analysis.Clones))

		sort.Float64s(similarities)
		analysis.Summary.P50Similarity = stats.Percentile(similarities, 50)
		analysis.Summary.P95Similarity = stats.Percentile(similarities, 95)
	}

	analysis.Summary.TotalLines = totalLines
	if totalLines > 0 {
		ratio := float64(analysis.Summary.DuplicatedLines) / float64(totalLines)
		if ratio > 1.0 {
			ratio = 1.0
		}
		analysis.Summary.DuplicationRatio = ratio
	}

	analysis.Summary.Hotspots = computeHotspots(groups)

	return analysis
}
