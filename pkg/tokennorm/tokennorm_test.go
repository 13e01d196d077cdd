package tokennorm

import (
	"testing"

	"github.com/panbanda/clonewatch/pkg/ast/treesitter"
)

func tokenize(t *testing.T, code string) TokenSequence {
	t.Helper()
	provider := treesitter.New()
	defer provider.Close()
	seq, err := TokensFromSource(provider, "fragment.go", []byte(code))
	if err != nil {
		t.Fatalf("TokensFromSource: %v", err)
	}
	return seq
}

func TestTokensFromSourceClassifiesKinds(t *testing.T) {
	seq := tokenize(t, `package p

func main() { x := 1 }`)

	var sawKeyword, sawIdentifier, sawLiteral bool
	for _, tok := range seq.Tokens {
		switch {
		case tok.Text == "func" && tok.Kind == KindKeyword:
			sawKeyword = true
		case tok.Text == "main" && tok.Kind == KindIdentifier:
			sawIdentifier = true
		case tok.Text == "1" && tok.Kind == KindLiteral:
			sawLiteral = true
		}
	}
	if !sawKeyword {
		t.Error("expected \"func\" classified as keyword")
	}
	if !sawIdentifier {
		t.Error("expected \"main\" classified as identifier")
	}
	if !sawLiteral {
		t.Error("expected \"1\" classified as literal")
	}
}

func TestNormalizerCanonicalizesConsistently(t *testing.T) {
	seq := tokenize(t, `package p

func f() { a := a + b }`)
	n := NewNormalizer()
	normalized := n.Normalize(seq, Options{NormalizeIdentifiers: true})

	var placeholders []string
	for _, tok := range normalized {
		if tok.Text == "$ID" {
			placeholders = append(placeholders, tok.Text)
		}
	}
	if len(placeholders) < 3 {
		t.Fatalf("expected at least 3 identifiers normalized to $ID, got %d", len(placeholders))
	}
}

func TestNormalizeRenamedFragmentsMatch(t *testing.T) {
	fooSeq := tokenize(t, `package p

func foo(x int) int { return x + 1 }`)
	barSeq := tokenize(t, `package p

func bar(y int) int { return y + 1 }`)

	n := NewNormalizer()
	opts := Options{NormalizeIdentifiers: true, NormalizeLiterals: true}
	fooNorm := n.Normalize(fooSeq, opts)
	barNorm := n.Normalize(barSeq, opts)

	if len(fooNorm) != len(barNorm) {
		t.Fatalf("normalized token counts differ: %d vs %d", len(fooNorm), len(barNorm))
	}
	for i := range fooNorm {
		if fooNorm[i].Text != barNorm[i].Text {
			t.Errorf("token %d: %q != %q; renamed-but-equivalent fragments must normalize identically",
				i, fooNorm[i].Text, barNorm[i].Text)
		}
	}
}

func TestNormalizeLiterals(t *testing.T) {
	seq := tokenize(t, `package p

func f() { x := "hi"; y := 1 }`)
	n := NewNormalizer()
	normalized := n.Normalize(seq, Options{NormalizeLiterals: true})

	var sawStr, sawNum bool
	for _, tok := range normalized {
		switch tok.Text {
		case "$STR":
			sawStr = true
		case "$NUM":
			sawNum = true
		}
	}
	if !sawStr {
		t.Error("expected quoted literal to normalize to $STR")
	}
	if !sawNum {
		t.Error("expected numeric literal to normalize to $NUM")
	}
}

func TestKeywordsNotNormalized(t *testing.T) {
	seq := tokenize(t, `package p

func f() { if true { return } }`)
	n := NewNormalizer()
	normalized := n.Normalize(seq, Options{NormalizeIdentifiers: true})

	var sawIf, sawReturn bool
	for _, tok := range normalized {
		if tok.Text == "if" {
			sawIf = true
		}
		if tok.Text == "return" {
			sawReturn = true
		}
	}
	if !sawIf || !sawReturn {
		t.Error("keywords must pass through Normalize unchanged")
	}
}

func TestPreservedIdentifiersKeepText(t *testing.T) {
	n := NewNormalizer()
	if got := n.canonicalize("string"); got != "string" {
		t.Errorf("canonicalize(%q) = %q, want preserved text", "string", got)
	}
	if got := n.canonicalize("myVar"); got != "$ID" {
		t.Errorf("canonicalize(%q) = %q, want $ID", "myVar", got)
	}
	if got := n.canonicalize("$0"); got != "$PARAM" {
		t.Errorf("canonicalize(%q) = %q, want $PARAM", "$0", got)
	}
}
