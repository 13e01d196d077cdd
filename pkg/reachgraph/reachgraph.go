package reachgraph

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/panbanda/clonewatch/internal/fileproc"
	"github.com/panbanda/clonewatch/pkg/analyzer"
	"github.com/panbanda/clonewatch/pkg/parser"
)

// Analyzer finds functions, variables, classes and blocks unreachable from
// any root declaration. A root is a node the analysis treats as always live:
// main/init entries, exported symbols, test functions, FFI exports, and
// anything else matched by a RootReason below.
type Analyzer struct {
	parser *parser.Parser

	vtableResolver *VTableResolver
	coverageData   *CoverageData

	confidence        float64
	maxFileSize       int64
	bfsMode           BFSMode
	treatPublicAsRoot bool
	treatTestsAsRoot  bool
	nodeCounter       uint32
}

// Compile-time check that Analyzer implements analyzer.FileAnalyzer[*Analysis].
var _ analyzer.FileAnalyzer[*Analysis] = (*Analyzer)(nil)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConfidence sets the minimum confidence (0-1) a finding must reach to
// be reported.
func WithConfidence(confidence float64) Option {
	return func(a *Analyzer) {
		if confidence > 0 && confidence <= 1 {
			a.confidence = confidence
		}
	}
}

// WithMaxFileSize sets the maximum file size to analyze, in bytes (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(a *Analyzer) { a.maxFileSize = maxSize }
}

// WithCoverage adds test coverage data, shifting confidence toward "live"
// for anything the test suite actually executed.
func WithCoverage(coverage *CoverageData) Option {
	return func(a *Analyzer) { a.coverageData = coverage }
}

// WithBFSMode selects the reachability traversal's concurrency strategy.
func WithBFSMode(mode BFSMode) Option {
	return func(a *Analyzer) { a.bfsMode = mode }
}

// WithPublicAsRoot treats every exported symbol as a root, matching a
// library's public API surface rather than just its main/test entries.
func WithPublicAsRoot(v bool) Option {
	return func(a *Analyzer) { a.treatPublicAsRoot = v }
}

// WithTestsAsRoot treats Test/Benchmark/Example/Fuzz functions as roots.
func WithTestsAsRoot(v bool) Option {
	return func(a *Analyzer) { a.treatTestsAsRoot = v }
}

// New returns an Analyzer with sane defaults: public symbols and tests both
// count as roots, since most real codebases are libraries or have test
// suites that exercise otherwise "unreachable" code intentionally.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		parser:            parser.New(),
		vtableResolver:    NewVTableResolver(),
		confidence:        0.8,
		bfsMode:           BFSSafe,
		treatPublicAsRoot: true,
		treatTestsAsRoot:  true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close releases analyzer resources.
func (a *Analyzer) Close() { a.parser.Close() }

// Analyze walks files, builds a dependency graph, runs direction-optimizing
// BFS from every root, and classifies everything the traversal never
// touched as unused.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*Analysis, error) {
	analysis := &Analysis{
		DeadFunctions:   make([]Function, 0),
		DeadVariables:   make([]Variable, 0),
		DeadClasses:     make([]Class, 0),
		UnreachableCode: make([]UnreachableBlock, 0),
		Summary:         NewSummary(),
	}

	if len(files) == 0 {
		return analysis, nil
	}

	results, errs := fileproc.MapFiles(ctx, files, func(psr *parser.Parser, path string) (*fileData, error) {
		if a.maxFileSize > 0 {
			info, err := os.Stat(path)
			if err != nil {
				return nil, err
			}
			if info.Size() > a.maxFileSize {
				return nil, fmt.Errorf("file too large: %d bytes (limit: %d)", info.Size(), a.maxFileSize)
			}
		}
		return collectFile(psr, path)
	})
	if errs != nil && errs.HasErrors() {
		_ = errs
	}

	allDefs := make(map[string]definitionInfo)
	allCalls := make([]callRef, 0)

	for _, fd := range results {
		for name, def := range fd.definitions {
			def.nodeID = atomic.AddUint32(&a.nodeCounter, 1)
			allDefs[name] = def
		}
		allCalls = append(allCalls, fd.calls...)

		for _, impl := range fd.typeImpls {
			if impl.interfaceName != "" {
				a.vtableResolver.RegisterImplementation(impl.interfaceName, impl.typeName)
			}
		}

		analysis.UnreachableCode = append(analysis.UnreachableCode, fd.unreachableBlocks...)
		for _, block := range fd.unreachableBlocks {
			analysis.Summary.AddUnreachableBlock(block)
		}
		analysis.Summary.TotalFilesAnalyzed++
	}

	a.registerMethodsInVTables(allDefs)

	graph := a.buildGraph(allDefs, allCalls)
	a.resolveDynamicCalls(graph)

	dg := BuildDenseGraph(graph)
	visited, err := ReachableBFS(ctx, dg, a.bfsMode)
	if err != nil {
		return nil, err
	}

	unreachableOriginal := NewBitmap(0)
	reachableCount := 0
	for denseID := 0; denseID < dg.NodeCount; denseID++ {
		origID := dg.OriginalID[denseID]
		if visited.Test(uint32(denseID)) {
			reachableCount++
		} else {
			unreachableOriginal.Set(origID)
		}
	}
	selfRef := selfReferencedSets(dg, invertVisited(dg, visited))

	a.classifyDeadCode(analysis, allDefs, unreachableOriginal, dg.IDOf, selfRef)

	analysis.Summary.TotalNodesInGraph = len(graph.Nodes)
	analysis.Summary.ReachableNodes = reachableCount
	analysis.Summary.UnreachableNodes = dg.NodeCount - reachableCount
	analysis.CallGraph = graph

	analysis.Summary.CalculatePercentage()
	analysis.Summary.ConfidenceLevel = 0.85
	return analysis, nil
}

func invertVisited(dg *DenseGraph, visited *Bitmap) *Bitmap {
	b := NewBitmap(uint32(dg.NodeCount))
	for id := 0; id < dg.NodeCount; id++ {
		if !visited.Test(uint32(id)) {
			b.Set(uint32(id))
		}
	}
	return b
}

func (a *Analyzer) registerMethodsInVTables(defs map[string]definitionInfo) {
	typeMethods := make(map[string]map[string]uint32)
	for _, def := range defs {
		if def.kind == ItemTypeFunction && def.receiverType != "" {
			if typeMethods[def.receiverType] == nil {
				typeMethods[def.receiverType] = make(map[string]uint32)
			}
			typeMethods[def.receiverType][def.name] = def.nodeID
		}
	}
	for typeName, methods := range typeMethods {
		a.vtableResolver.RegisterType(typeName, "", methods)
	}
}

func (a *Analyzer) buildGraph(defs map[string]definitionInfo, calls []callRef) *CallGraph {
	graph := NewCallGraph()
	nameToNode := make(map[string]uint32, len(defs))

	for name, def := range defs {
		reason, isRoot := a.rootReason(name, def)
		node := &ReferenceNode{
			ID:         def.nodeID,
			Name:       name,
			File:       def.file,
			Line:       def.line,
			EndLine:    def.endLine,
			Kind:       string(def.kind),
			Language:   "",
			IsExported: def.exported,
			IsRoot:     isRoot,
			RootReason: reason,
		}
		graph.AddNode(node)
		nameToNode[name] = def.nodeID
	}

	for _, call := range calls {
		callerID, callerExists := nameToNode[call.caller]
		calleeID, calleeExists := nameToNode[call.callee]
		if callerExists && calleeExists {
			graph.AddEdge(ReferenceEdge{From: callerID, To: calleeID, Kind: call.kind, Confidence: 0.95})
		}
	}

	return graph
}

// resolveDynamicCalls resolves interface/protocol-dispatch edges to every
// conforming implementation, adding a protocolWitness edge per target.
func (a *Analyzer) resolveDynamicCalls(graph *CallGraph) {
	extra := make([]ReferenceEdge, 0)
	for _, edge := range graph.Edges {
		if edge.Kind != EdgeIndirectCall {
			continue
		}
		node, ok := graph.Nodes[edge.To]
		if !ok {
			continue
		}
		for _, target := range a.vtableResolver.ResolveDynamicCall("", node.Name) {
			if target != edge.To {
				extra = append(extra, ReferenceEdge{From: edge.From, To: target, Kind: EdgeProtocolWitness, Confidence: 0.7})
			}
		}
	}
	for _, e := range extra {
		graph.AddEdge(e)
	}
}

// rootReason decides whether a declaration is always-live and why. Treated
// as roots regardless of configuration: main/init entries and FFI exports,
// since both are invoked from outside any call graph this analysis can see.
func (a *Analyzer) rootReason(name string, def definitionInfo) (RootReason, bool) {
	if name == "main" || name == "init" || name == "Main" {
		return RootMainEntry, true
	}
	if def.isFFI {
		return RootExternalExport, true
	}
	if a.treatTestsAsRoot && isTestEntryName(name) {
		return RootTestEntry, true
	}
	if a.treatPublicAsRoot && def.exported {
		return RootPublicAPI, true
	}
	return "", false
}

func isTestEntryName(name string) bool {
	prefixes := []string{"Test", "Benchmark", "Example", "Fuzz"}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) && len(name) > len(p) {
			return true
		}
	}
	return false
}

func (a *Analyzer) classifyDeadCode(
	analysis *Analysis,
	defs map[string]definitionInfo,
	unreachable *Bitmap,
	denseOf map[uint32]uint32,
	selfRef map[uint32]bool,
) {
	for name, def := range defs {
		if _, isRoot := a.rootReason(name, def); isRoot {
			continue
		}
		if !unreachable.Test(def.nodeID) {
			continue
		}

		confidence := a.calculateConfidence(def)
		if confidence < a.confidence {
			continue
		}

		reason := ReasonNeverReferenced
		if denseID, ok := denseOf[def.nodeID]; ok && selfRef[denseID] {
			reason = ReasonOnlySelfRef
		}

		switch def.kind {
		case ItemTypeFunction:
			df := Function{
				Name: name, File: def.file, Line: def.line, EndLine: def.endLine,
				Visibility: def.visibility, Confidence: confidence,
				Reason: reason, Kind: ItemTypeFunction, NodeID: def.nodeID,
			}
			df.SetConfidenceLevel()
			analysis.DeadFunctions = append(analysis.DeadFunctions, df)
			analysis.Summary.AddFunction(df)
		case ItemTypeClass:
			dc := Class{
				Name: name, File: def.file, Line: def.line, EndLine: def.endLine,
				Visibility: def.visibility, Confidence: confidence,
				Reason: reason, Kind: ItemTypeClass, NodeID: def.nodeID,
			}
			dc.SetConfidenceLevel()
			analysis.DeadClasses = append(analysis.DeadClasses, dc)
			analysis.Summary.AddClass(dc)
		case ItemTypeVariable:
			dv := Variable{
				Name: name, File: def.file, Line: def.line,
				Visibility: def.visibility, Confidence: confidence,
				Reason: reason, Kind: ItemTypeVariable, NodeID: def.nodeID,
			}
			dv.SetConfidenceLevel()
			analysis.DeadVariables = append(analysis.DeadVariables, dv)
			analysis.Summary.AddVariable(dv)
		}
	}
}

// calculateConfidence scores how confident the analysis is that a
// declaration is genuinely unused, factoring in coverage data when present.
func (a *Analyzer) calculateConfidence(def definitionInfo) float64 {
	confidence := 0.95

	if def.exported {
		confidence -= 0.25
	}
	if def.visibility == "private" {
		confidence += 0.03
	}
	if def.isTestFile {
		confidence -= 0.15
	}
	if def.isFFI {
		confidence -= 0.30
	}

	if a.coverageData != nil {
		if a.coverageData.IsLineCovered(def.file, def.line) {
			confidence -= 0.40
		} else {
			confidence += 0.05
		}
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}
	return confidence
}
