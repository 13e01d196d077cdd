package resultfilter

import (
	"testing"

	"github.com/panbanda/clonewatch/pkg/clones"
	"github.com/panbanda/clonewatch/pkg/ignore"
	"github.com/panbanda/clonewatch/pkg/reachgraph"
)

func threeInstanceAnalysis() *clones.Analysis {
	group := clones.Group{
		ID:   1,
		Type: clones.Type1,
		Instances: []clones.Instance{
			{File: "a.go", StartLine: 1, EndLine: 10, Lines: 10},
			{File: "b.go", StartLine: 1, EndLine: 10, Lines: 10},
			{File: "c.go", StartLine: 1, EndLine: 10, Lines: 10},
		},
		TotalLines:        30,
		AverageSimilarity: 1.0,
	}
	return &clones.Analysis{
		Groups:            []clones.Group{group},
		Summary:           clones.NewSummary(),
		TotalFilesScanned: 3,
		MinLines:          5,
		Threshold:         0.85,
	}
}

func TestFilterClones_DropsMemberInsideIgnoreRegion(t *testing.T) {
	analysis := threeInstanceAnalysis()
	regions := []ignore.Region{
		{File: "c.go", StartLine: 1, EndLine: 10, Kind: ignore.KindDuplicates},
	}

	out := New().FilterClones(regions, analysis)

	if len(out.Groups) != 1 {
		t.Fatalf("len(Groups) = %d, want 1", len(out.Groups))
	}
	if len(out.Groups[0].Instances) != 2 {
		t.Fatalf("len(Instances) = %d, want 2", len(out.Groups[0].Instances))
	}
	for _, inst := range out.Groups[0].Instances {
		if inst.File == "c.go" {
			t.Errorf("c.go should have been dropped, found %+v", inst)
		}
	}
}

func TestFilterClones_GroupDroppedEntirelyWhenBelowTwoMembers(t *testing.T) {
	analysis := threeInstanceAnalysis()
	regions := []ignore.Region{
		{File: "b.go", StartLine: 1, EndLine: 10, Kind: ignore.KindDuplicates},
		{File: "c.go", StartLine: 1, EndLine: 10, Kind: ignore.KindDuplicates},
	}

	out := New().FilterClones(regions, analysis)

	if len(out.Groups) != 0 {
		t.Fatalf("len(Groups) = %d, want 0 (only one member survives)", len(out.Groups))
	}
	if len(out.Clones) != 0 {
		t.Errorf("len(Clones) = %d, want 0", len(out.Clones))
	}
}

func TestFilterClones_IgnoreRegionInDifferentFileDoesNotApply(t *testing.T) {
	analysis := threeInstanceAnalysis()
	regions := []ignore.Region{
		{File: "z.go", StartLine: 1, EndLine: 10, Kind: ignore.KindDuplicates},
	}

	out := New().FilterClones(regions, analysis)

	if len(out.Groups) != 1 || len(out.Groups[0].Instances) != 3 {
		t.Fatalf("expected all 3 instances to survive, got %+v", out.Groups)
	}
}

func TestFilterClones_ExcludePathsDropsInstance(t *testing.T) {
	analysis := threeInstanceAnalysis()
	f := New(WithExcludePaths("**/b.go"))

	out := f.FilterClones(nil, analysis)

	if len(out.Groups) != 1 || len(out.Groups[0].Instances) != 2 {
		t.Fatalf("expected b.go dropped leaving 2 instances, got %+v", out.Groups)
	}
	for _, inst := range out.Groups[0].Instances {
		if inst.File == "b.go" {
			t.Errorf("b.go should have been excluded by glob")
		}
	}
}

func TestFilterClones_ExcludeTestSuites(t *testing.T) {
	analysis := &clones.Analysis{
		Groups: []clones.Group{{
			ID:   1,
			Type: clones.Type1,
			Instances: []clones.Instance{
				{File: "pkg/foo/foo.go", StartLine: 1, EndLine: 5, Lines: 5},
				{File: "pkg/foo/foo_test.go", StartLine: 1, EndLine: 5, Lines: 5},
				{File: "pkg/bar/bar.go", StartLine: 1, EndLine: 5, Lines: 5},
			},
		}},
		Summary:           clones.NewSummary(),
		TotalFilesScanned: 3,
		MinLines:          5,
	}

	out := New(WithExcludeTestSuites()).FilterClones(nil, analysis)

	if len(out.Groups) != 1 || len(out.Groups[0].Instances) != 2 {
		t.Fatalf("expected foo_test.go dropped, got %+v", out.Groups)
	}
}

func TestFilterClones_NilAnalysisReturnsNil(t *testing.T) {
	if got := New().FilterClones(nil, nil); got != nil {
		t.Errorf("FilterClones(nil) = %v, want nil", got)
	}
}

func sampleUnusedAnalysis() *reachgraph.Analysis {
	return &reachgraph.Analysis{
		DeadFunctions: []reachgraph.Function{
			{Name: "helperOne", File: "a.go", Line: 10, EndLine: 15},
			{Name: "helperTwo", File: "a.go", Line: 20, EndLine: 25},
			{Name: "mockHelper", File: "a.go", Line: 30, EndLine: 35},
		},
		DeadVariables: []reachgraph.Variable{
			{Name: "staleCount", File: "b.go", Line: 3},
		},
		Summary: reachgraph.Summary{
			TotalFilesAnalyzed: 2,
			TotalLinesAnalyzed: 100,
		},
	}
}

func TestFilterUnused_DropsFunctionInsideIgnoreUnusedRegion(t *testing.T) {
	analysis := sampleUnusedAnalysis()
	regions := []ignore.Region{
		{File: "a.go", StartLine: 10, EndLine: 15, Kind: ignore.KindUnused},
	}

	out := New().FilterUnused(regions, analysis)

	if len(out.DeadFunctions) != 2 {
		t.Fatalf("len(DeadFunctions) = %d, want 2", len(out.DeadFunctions))
	}
	for _, fn := range out.DeadFunctions {
		if fn.Name == "helperOne" {
			t.Errorf("helperOne should have been dropped, region covered its lines")
		}
	}
	if out.Summary.TotalDeadFunctions != 2 {
		t.Errorf("Summary.TotalDeadFunctions = %d, want 2", out.Summary.TotalDeadFunctions)
	}
}

func TestFilterUnused_UnusedCasesRegionAlsoApplies(t *testing.T) {
	analysis := sampleUnusedAnalysis()
	regions := []ignore.Region{
		{File: "a.go", StartLine: 20, EndLine: 25, Kind: ignore.KindUnusedCases},
	}

	out := New().FilterUnused(regions, analysis)

	for _, fn := range out.DeadFunctions {
		if fn.Name == "helperTwo" {
			t.Errorf("helperTwo should have been dropped by an unused-cases region")
		}
	}
}

func TestFilterUnused_DuplicatesKindRegionDoesNotApply(t *testing.T) {
	analysis := sampleUnusedAnalysis()
	regions := []ignore.Region{
		{File: "a.go", StartLine: 10, EndLine: 15, Kind: ignore.KindDuplicates},
	}

	out := New().FilterUnused(regions, analysis)

	if len(out.DeadFunctions) != 3 {
		t.Fatalf("a duplicates-kind region must not drop unused findings, got %d", len(out.DeadFunctions))
	}
}

func TestFilterUnused_NamePatternExcludesMatchingDeclarations(t *testing.T) {
	analysis := sampleUnusedAnalysis()
	f := New()
	if err := f.AddNamePattern("^mock"); err != nil {
		t.Fatalf("AddNamePattern: %v", err)
	}

	out := f.FilterUnused(nil, analysis)

	for _, fn := range out.DeadFunctions {
		if fn.Name == "mockHelper" {
			t.Errorf("mockHelper should have been excluded by name pattern")
		}
	}
	if len(out.DeadFunctions) != 2 {
		t.Errorf("len(DeadFunctions) = %d, want 2", len(out.DeadFunctions))
	}
}

func TestFilterUnused_VariableUsesSingleLineOverlap(t *testing.T) {
	analysis := sampleUnusedAnalysis()
	regions := []ignore.Region{
		{File: "b.go", StartLine: 3, EndLine: 3, Kind: ignore.KindUnused},
	}

	out := New().FilterUnused(regions, analysis)

	if len(out.DeadVariables) != 0 {
		t.Fatalf("len(DeadVariables) = %d, want 0", len(out.DeadVariables))
	}
}

func TestFilterUnused_NilAnalysisReturnsNil(t *testing.T) {
	if got := New().FilterUnused(nil, nil); got != nil {
		t.Errorf("FilterUnused(nil) = %v, want nil", got)
	}
}

func TestWithSensibleDefaults_ExcludesGeneratedFiles(t *testing.T) {
	f := New(WithSensibleDefaults())
	if !f.pathExcluded("api/v1.pb.go") {
		t.Error("sensible defaults should exclude *.pb.go")
	}
	if !f.pathExcluded("pkg/foo/foo_test.go") {
		t.Error("sensible defaults should exclude test files")
	}
	if f.pathExcluded("pkg/foo/foo.go") {
		t.Error("sensible defaults should not exclude ordinary source files")
	}
}

func TestAddNamePattern_InvalidRegexReturnsError(t *testing.T) {
	f := New()
	if err := f.AddNamePattern("("); err == nil {
		t.Error("AddNamePattern with invalid regex should return an error")
	}
}
