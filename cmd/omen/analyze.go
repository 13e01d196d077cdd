package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/panbanda/clonewatch/internal/output"
	"github.com/panbanda/clonewatch/internal/progress"
	"github.com/panbanda/clonewatch/internal/service/analysis"
	scannerSvc "github.com/panbanda/clonewatch/internal/service/scanner"
	"github.com/panbanda/clonewatch/pkg/clones"
	"github.com/panbanda/clonewatch/pkg/reachgraph"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:     "analyze [path...]",
	Aliases: []string{"a"},
	Short:   "Run clone and dead-code analysis together",
	RunE:    runAnalyze,
}

// fullAnalysis holds combined clone and reachability results.
type fullAnalysis struct {
	Clones   *clones.Analysis     `json:"clones,omitempty"`
	DeadCode *reachgraph.Analysis `json:"dead_code,omitempty"`
}

func init() {
	// Persistent flags inherited by all analyzer subcommands.
	analyzeCmd.PersistentFlags().StringP("format", "f", "text", "Output format: text, json, markdown")
	analyzeCmd.PersistentFlags().StringP("output", "o", "", "Write output to file")
	analyzeCmd.PersistentFlags().Bool("no-cache", false, "Disable caching")
	analyzeCmd.PersistentFlags().String("ref", "", "Git ref (branch, tag, SHA) for remote repositories")
	analyzeCmd.PersistentFlags().Bool("shallow", false, "Shallow clone (depth=1) for remote repos")

	analyzeCmd.Flags().StringSlice("exclude", nil, "Analyzers to exclude when running both (clones, deadcode)")

	rootCmd.AddCommand(analyzeCmd)
}

// getFormat returns the format flag value from the command.
func getFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("format")
	return format
}

// getOutputFile returns the output file path from the command.
func getOutputFile(cmd *cobra.Command) string {
	outputFile, _ := cmd.Flags().GetString("output")
	return outputFile
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ref, _ := cmd.Flags().GetString("ref")
	shallow, _ := cmd.Flags().GetBool("shallow")

	paths, cleanup, err := resolvePaths(cmd.Context(), args, ref, shallow)
	if err != nil {
		return err
	}
	defer cleanup()

	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	if _, err := filepath.Abs(paths[0]); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	scanSvc := scannerSvc.New()
	scanResult, err := scanSvc.ScanPaths(paths)
	if err != nil {
		return err
	}

	if len(scanResult.Files) == 0 {
		color.Yellow("No source files found")
		return nil
	}

	files := scanResult.Files

	formatter, err := output.NewFormatter(output.ParseFormat(getFormat(cmd)), getOutputFile(cmd), true)
	if err != nil {
		return err
	}
	defer formatter.Close()

	excludeSet := make(map[string]bool)
	for _, e := range exclude {
		excludeSet[e] = true
	}

	results := fullAnalysis{}

	startTime := time.Now()
	color.Cyan("Running clone and dead-code analysis on %d files...\n", len(files))

	svc := analysis.New()

	if !excludeSet["clones"] {
		tracker := progress.NewTracker("Detecting duplicates...", len(files))
		results.Clones, _ = svc.AnalyzeDuplicates(context.Background(), files, analysis.DuplicatesOptions{
			OnProgress: tracker.Tick,
		})
		tracker.FinishSuccess()
	}

	if !excludeSet["deadcode"] {
		tracker := progress.NewTracker("Detecting dead code...", len(files))
		results.DeadCode, _ = svc.AnalyzeDeadCode(context.Background(), files, analysis.DeadCodeOptions{
			OnProgress: tracker.Tick,
		})
		tracker.FinishSuccess()
	}

	elapsed := time.Since(startTime)
	fmt.Printf("\nAnalysis completed in %s\n\n", elapsed.Round(time.Millisecond))

	if formatter.Format() == output.FormatJSON {
		return formatter.Output(results)
	}

	return printAnalysisSummary(formatter, results)
}

func printAnalysisSummary(formatter *output.Formatter, r fullAnalysis) error {
	w := formatter.Writer()

	if formatter.Colored() {
		color.Cyan("=== Analysis Summary ===\n")
	} else {
		fmt.Fprintln(w, "=== Analysis Summary ===")
	}

	if r.Clones != nil {
		fmt.Fprintf(w, "\nCode Clones:\n")
		fmt.Fprintf(w, "  Total: %d (Type-1: %d, Type-2: %d, Type-3: %d)\n",
			r.Clones.Summary.TotalClones,
			r.Clones.Summary.Type1Count,
			r.Clones.Summary.Type2Count,
			r.Clones.Summary.Type3Count)
		fmt.Fprintf(w, "  Groups: %d, Duplication Ratio: %.1f%%\n",
			len(r.Clones.Groups),
			r.Clones.Summary.DuplicationRatio*100)
	}

	if r.DeadCode != nil {
		fmt.Fprintf(w, "\nDead Code:\n")
		fmt.Fprintf(w, "  Functions: %d, Variables: %d, Classes: %d (%.1f%% dead)\n",
			r.DeadCode.Summary.TotalDeadFunctions,
			r.DeadCode.Summary.TotalDeadVariables,
			r.DeadCode.Summary.TotalDeadClasses,
			r.DeadCode.Summary.DeadCodePercentage)
		fmt.Fprintf(w, "  Unreachable blocks: %d\n", len(r.DeadCode.UnreachableCode))
	}

	return nil
}
