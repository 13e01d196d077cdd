package main

import (
	"context"
	"fmt"
	"os"

	"github.com/panbanda/clonewatch/internal/remote"
)

// getPaths returns paths from args, defaulting to ["."]
func getPaths(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

// resolvePaths converts args to local paths, cloning remote repos as needed.
// Returns resolved paths, a cleanup function, and any error.
// The cleanup function must be called (via defer) to remove cloned temp directories.
func resolvePaths(ctx context.Context, args []string, ref string, shallow bool) ([]string, func(), error) {
	paths := getPaths(args)
	var cleanups []func()

	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	for i, p := range paths {
		src, err := remote.Parse(p)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("parse %s: %w", p, err)
		}
		if src == nil {
			continue // local path
		}

		// Override ref if flag provided
		if ref != "" {
			src.Ref = ref
		}

		fmt.Fprintf(os.Stderr, "Cloning %s", src.URL)
		if src.Ref != "" {
			fmt.Fprintf(os.Stderr, " @ %s", src.Ref)
		}
		if shallow {
			fmt.Fprintf(os.Stderr, " (shallow)")
		}
		fmt.Fprintln(os.Stderr, "...")

		if err := src.Clone(ctx, os.Stderr, shallow); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clone %s: %w", p, err)
		}

		paths[i] = src.CloneDir
		cleanups = append(cleanups, func() {
			src.Cleanup()
		})
	}

	return paths, cleanup, nil
}

