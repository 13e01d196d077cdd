// Package resultfilter combines clone and unused-declaration analysis
// results with ignore-directive regions and explicit exclusion rules,
// producing the result set actually shown to a user.
package resultfilter

import (
	"path/filepath"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/panbanda/clonewatch/pkg/clones"
	"github.com/panbanda/clonewatch/pkg/ignore"
	"github.com/panbanda/clonewatch/pkg/reachgraph"
)

// Filter applies ignore regions and declaration-kind/path/name exclusion
// rules to a clones.Analysis or reachgraph.Analysis.
type Filter struct {
	excludeTestSuites   bool
	excludeImports      bool
	excludeDeinit       bool
	excludeEnumCases    bool
	excludePaths        []string
	excludeNamePatterns []*regexp.Regexp
	testPatterns        []*regexp.Regexp
}

// Option configures a Filter.
type Option func(*Filter)

// WithExcludeImports drops unused-import findings. Go has no standalone
// "unused import" declaration kind the way Swift/ObjC do (the compiler
// already rejects an unused import), so this flag is recognized for parity
// with the source specification but has nothing to drop in this port: no
// pkg/reachgraph finding is ever tagged as an import.
func WithExcludeImports() Option {
	return func(f *Filter) { f.excludeImports = true }
}

// WithExcludeTestSuites drops findings and clone instances located in test
// files.
func WithExcludeTestSuites() Option {
	return func(f *Filter) { f.excludeTestSuites = true }
}

// WithExcludeDeinit drops deinitializer findings. Go has no deinit/finalizer
// declaration analog (no pkg/reachgraph finding is ever tagged as one), so,
// like WithExcludeImports, this is recognized-but-inert in this port.
func WithExcludeDeinit() Option {
	return func(f *Filter) { f.excludeDeinit = true }
}

// WithExcludeEnumCases drops unused-enum-case findings. Go has no enum-case
// declaration kind distinct from a plain constant, so this is
// recognized-but-inert in this port, same as WithExcludeImports/WithExcludeDeinit.
func WithExcludeEnumCases() Option {
	return func(f *Filter) { f.excludeEnumCases = true }
}

// WithExcludePaths drops findings/instances whose file matches any of the
// given doublestar glob patterns (e.g. "**/*.pb.go", "vendor/**").
func WithExcludePaths(globs ...string) Option {
	return func(f *Filter) { f.excludePaths = append(f.excludePaths, globs...) }
}

// WithSensibleDefaults applies a fixed superset of exclusions suited to a
// typical project: test suites, generated/vendored code, and the
// declaration-kind flags that Go never actually produces.
func WithSensibleDefaults() Option {
	return func(f *Filter) {
		f.excludeTestSuites = true
		f.excludeImports = true
		f.excludeDeinit = true
		f.excludeEnumCases = true
		f.excludePaths = append(f.excludePaths,
			"**/vendor/**",
			"**/*.pb.go",
			"**/*_generated.go",
			"**/*.gen.go",
			"**/node_modules/**",
		)
	}
}

// New returns a Filter that drops nothing until configured with Options.
func New(opts ...Option) *Filter {
	f := &Filter{testPatterns: defaultTestPatterns()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AddNamePattern adds a regular expression; declarations whose name matches
// are dropped.
func (f *Filter) AddNamePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	f.excludeNamePatterns = append(f.excludeNamePatterns, re)
	return nil
}

func defaultTestPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`_test\.go$`),
		regexp.MustCompile(`test_.*\.py$`),
		regexp.MustCompile(`.*_test\.py$`),
		regexp.MustCompile(`.*\.test\.[jt]sx?$`),
		regexp.MustCompile(`.*\.spec\.[jt]sx?$`),
		regexp.MustCompile(`__tests__/`),
	}
}

func (f *Filter) isTestFile(path string) bool {
	for _, re := range f.testPatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func (f *Filter) pathExcluded(path string) bool {
	if f.excludeTestSuites && f.isTestFile(path) {
		return true
	}
	clean := filepath.ToSlash(path)
	for _, pattern := range f.excludePaths {
		if ok, _ := doublestar.Match(pattern, clean); ok {
			return true
		}
	}
	return false
}

func (f *Filter) nameExcluded(name string) bool {
	for _, re := range f.excludeNamePatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func regionsOverlapping(regions []ignore.Region, file string, start, end int, kinds ...ignore.Kind) bool {
	for _, r := range regions {
		if r.File != file {
			continue
		}
		if len(kinds) > 0 && !kindIn(r.Kind, kinds) {
			continue
		}
		if r.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func kindIn(k ignore.Kind, kinds []ignore.Kind) bool {
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// FilterClones drops clone-group members that overlap a duplicate-ignoring
// Region or an explicit exclusion rule, then drops any group left with
// fewer than two members, and rebuilds the derived Clone/Summary/Hotspot
// fields from what remains.
func (f *Filter) FilterClones(regions []ignore.Region, analysis *clones.Analysis) *clones.Analysis {
	if analysis == nil {
		return analysis
	}

	var filtered []clones.Group
	for _, group := range analysis.Groups {
		var kept []clones.Instance
		for _, inst := range group.Instances {
			if regionsOverlapping(regions, inst.File, int(inst.StartLine), int(inst.EndLine), ignore.KindDuplicates) {
				continue
			}
			if f.pathExcluded(inst.File) {
				continue
			}
			kept = append(kept, inst)
		}
		if len(kept) < 2 {
			continue
		}
		group.Instances = kept
		group.TotalLines = 0
		for _, inst := range kept {
			group.TotalLines += inst.Lines
		}
		filtered = append(filtered, group)
	}

	for i := range filtered {
		filtered[i].ID = uint64(i + 1)
	}

	return clones.Rebuild(filtered, analysis.TotalFilesScanned, analysis.MinLines*8, analysis.Threshold, analysis.Summary.TotalLines)
}

// FilterUnused drops unused-declaration findings that overlap an
// unused-ignoring Region, or match an explicit exclusion rule, from a
// reachgraph.Analysis.
func (f *Filter) FilterUnused(regions []ignore.Region, analysis *reachgraph.Analysis) *reachgraph.Analysis {
	if analysis == nil {
		return analysis
	}

	out := &reachgraph.Analysis{
		Summary:   reachgraph.NewSummary(),
		CallGraph: analysis.CallGraph,
	}

	for _, b := range analysis.UnreachableCode {
		if regionsOverlapping(regions, b.File, int(b.StartLine), int(b.EndLine), ignore.KindUnused, ignore.KindUnusedCases) {
			continue
		}
		if f.pathExcluded(b.File) {
			continue
		}
		out.UnreachableCode = append(out.UnreachableCode, b)
		out.Summary.AddUnreachableBlock(b)
	}

	for _, fn := range analysis.DeadFunctions {
		if f.declarationExcluded(regions, fn.File, fn.Name, int(fn.Line), int(fn.EndLine)) {
			continue
		}
		out.DeadFunctions = append(out.DeadFunctions, fn)
		out.Summary.AddFunction(fn)
	}
	for _, v := range analysis.DeadVariables {
		if f.declarationExcluded(regions, v.File, v.Name, int(v.Line), int(v.Line)) {
			continue
		}
		out.DeadVariables = append(out.DeadVariables, v)
		out.Summary.AddVariable(v)
	}
	for _, c := range analysis.DeadClasses {
		if f.declarationExcluded(regions, c.File, c.Name, int(c.Line), int(c.EndLine)) {
			continue
		}
		out.DeadClasses = append(out.DeadClasses, c)
		out.Summary.AddClass(c)
	}
	out.Summary.TotalFilesAnalyzed = analysis.Summary.TotalFilesAnalyzed
	out.Summary.TotalLinesAnalyzed = analysis.Summary.TotalLinesAnalyzed
	out.Summary.TotalNodesInGraph = analysis.Summary.TotalNodesInGraph
	out.Summary.ReachableNodes = analysis.Summary.ReachableNodes
	out.Summary.UnreachableNodes = analysis.Summary.UnreachableNodes
	out.Summary.CalculatePercentage()

	return out
}

// declarationExcluded reports whether a single declaration should be
// dropped: it inherits exclusion from any "ignore-unused"/"ignore-unused-cases"
// Region its [startLine,endLine] overlaps (the Go-flat approximation of the
// source specification's extension/class member inheritance -- a region
// spanning an enclosing declaration already covers every member inside it),
// or it matches an explicit path/name exclusion rule.
func (f *Filter) declarationExcluded(regions []ignore.Region, file, name string, startLine, endLine int) bool {
	if regionsOverlapping(regions, file, startLine, endLine, ignore.KindUnused, ignore.KindUnusedCases) {
		return true
	}
	if f.pathExcluded(file) {
		return true
	}
	if f.nameExcluded(name) {
		return true
	}
	return false
}
