// Package ignore scans source text for inline directives that mark a line
// range as excluded from clone or unused-declaration analysis.
package ignore

import (
	"regexp"
	"strings"

	"github.com/panbanda/clonewatch/pkg/parser"
)

// Kind distinguishes which analysis a Region was carved out of.
type Kind string

const (
	KindDuplicates  Kind = "duplicates"
	KindUnused      Kind = "unused"
	KindUnusedCases Kind = "unused-cases"
)

// Region is a closed, 1-indexed line interval a directive excluded.
type Region struct {
	File      string
	StartLine int
	EndLine   int
	Kind      Kind
}

// Overlaps reports whether the closed interval [s,e] intersects r.
func (r Region) Overlaps(s, e int) bool {
	return !(e < r.StartLine || s > r.EndLine)
}

// directivePattern matches the longest directive keyword first, so
// "ignore-unused-cases" isn't shadowed by the shorter "ignore-unused" or
// bare "ignore" alternatives. Group 1 is the directive word, group 2 the
// optional ":begin"/":end" suffix.
var directivePattern = regexp.MustCompile(`(ignore-duplicates|ignore-unused-cases|ignore-unused|ignore)(:begin|:end)?`)

func kindFromDirective(word string) Kind {
	switch word {
	case "ignore-unused-cases":
		return KindUnusedCases
	case "ignore-unused":
		return KindUnused
	default:
		return KindDuplicates
	}
}

// defaultDeclarationKeywords are checked against a trimmed line's prefix to
// recognize "a new declaration starts here" across the languages this
// project parses; a generic text scan rather than an AST query, since the
// scanner's contract (raw text in, regions out, never fails on malformed
// input) predates any parse.
var defaultDeclarationKeywords = []string{
	"func ", "func(", "type ", "struct ", "interface ", "const ", "var ",
	"class ", "def ", "fn ", "function ", "enum ", "protocol ", "extension ",
	"impl ", "trait ", "module ", "namespace ",
}

// Scanner finds IgnoreRegions in source text. The zero value is usable.
type Scanner struct {
	declKeywords []string
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithDeclarationKeywords overrides the prefixes used to recognize where a
// single-line directive's target declaration begins.
func WithDeclarationKeywords(words []string) Option {
	return func(s *Scanner) { s.declKeywords = words }
}

// New returns a Scanner with the default declaration-keyword set.
func New(opts ...Option) *Scanner {
	s := &Scanner{declKeywords: defaultDeclarationKeywords}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type openDirective struct {
	kind  Kind
	start int
}

// Scan finds every ignore directive in content and returns the Regions they
// carve out. Never fails: a malformed or unclosed directive degrades to the
// most permissive reasonable interpretation rather than an error.
func (s *Scanner) Scan(path string, content []byte) []Region {
	lines := strings.Split(string(content), "\n")
	style := commentStyleFor(path)

	var regions []Region
	var open []openDirective

	for i, raw := range lines {
		lineNum := i + 1

		comment, ok := commentPortion(raw, style)
		if !ok {
			continue
		}

		m := directivePattern.FindStringSubmatch(comment)
		if m == nil {
			continue
		}
		kind := kindFromDirective(m[1])

		switch m[2] {
		case ":begin":
			open = append(open, openDirective{kind: kind, start: lineNum})
		case ":end":
			if len(open) == 0 {
				continue
			}
			idx := lastIndexOfKind(open, kind)
			o := open[idx]
			open = append(open[:idx], open[idx+1:]...)
			regions = append(regions, Region{File: path, StartLine: o.start, EndLine: lineNum, Kind: o.kind})
		default:
			end := s.declarationExtent(lines, lineNum, style)
			regions = append(regions, Region{File: path, StartLine: lineNum, EndLine: end, Kind: kind})
		}
	}

	for _, o := range open {
		regions = append(regions, Region{File: path, StartLine: o.start, EndLine: len(lines), Kind: o.kind})
	}

	return regions
}

// lastIndexOfKind finds the innermost still-open directive of the matching
// kind, falling back to the innermost open directive of any kind so a
// mismatched "ignore:end" still closes something rather than being dropped.
func lastIndexOfKind(open []openDirective, kind Kind) int {
	for i := len(open) - 1; i >= 0; i-- {
		if open[i].kind == kind {
			return i
		}
	}
	return len(open) - 1
}

// declarationExtent implements the single-line-directive rule: skip blank
// and comment lines, then track brace depth from the first content line
// onward until it returns to zero. If a new declaration line is reached
// before any brace ever opens, or EOF is reached first, the region extends
// only to the directive's own line.
func (s *Scanner) declarationExtent(lines []string, directiveLine int, style commentStyleInfo) int {
	n := len(lines)
	idx := directiveLine // 0-indexed position of the line after the directive
	for idx < n && isBlankOrComment(lines[idx], style) {
		idx++
	}
	if idx >= n {
		return directiveLine
	}

	started := false
	depth := 0
	for j := idx; j < n; j++ {
		line := lines[j]
		if !started && j > idx && s.isDeclarationLine(line) {
			return directiveLine
		}
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")
		if opens > 0 {
			started = true
		}
		depth += opens - closes
		if started && depth <= 0 {
			return j + 1
		}
	}
	return directiveLine
}

func (s *Scanner) isDeclarationLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, kw := range s.declKeywords {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return false
}

func isBlankOrComment(line string, style commentStyleInfo) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	_, ok := commentPortion(line, style)
	return ok && strings.HasPrefix(trimmed, commentPrefix(trimmed, style))
}

func commentPrefix(trimmed string, style commentStyleInfo) string {
	for _, p := range style.lineComments {
		if strings.HasPrefix(trimmed, p) {
			return p
		}
	}
	if style.blockStart != "" && strings.HasPrefix(trimmed, style.blockStart) {
		return style.blockStart
	}
	return ""
}

// commentStyleInfo is a per-language comment table: directives are only
// honored after a comment marker on the line. The scan is textual, so a
// marker inside a string literal is not told apart from a real comment.
type commentStyleInfo struct {
	lineComments []string
	blockStart   string
}

func commentStyleFor(path string) commentStyleInfo {
	switch parser.DetectLanguage(path) {
	case parser.LangPython:
		return commentStyleInfo{lineComments: []string{"#"}, blockStart: `"""`}
	default:
		return commentStyleInfo{lineComments: []string{"//"}, blockStart: "/*"}
	}
}

// commentPortion returns the substring of line starting at its first
// comment marker, if any.
func commentPortion(line string, style commentStyleInfo) (string, bool) {
	best := -1
	for _, m := range style.lineComments {
		if idx := strings.Index(line, m); idx >= 0 && (best == -1 || idx < best) {
			best = idx
		}
	}
	if style.blockStart != "" {
		if idx := strings.Index(line, style.blockStart); idx >= 0 && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best == -1 {
		return "", false
	}
	return line[best:], true
}
