// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evidence

import (
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/ClarionAI/clarion/services/analysis/detect"
)

// urlOrEmail matches spans that are addresses rather than prose.
var urlOrEmail = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+|\b[\w.+-]+@[\w-]+\.[\w.]+`)

// codeSymbolDensity is the fraction of code-typical characters above which
// an unfenced sentence is handed to the tree-sitter sniff.
const codeSymbolDensity = 0.08

// Guard is the zero-false-positive pre-filter.
//
// # Description
//
// Guard inspects a detection's context before any clue accumulation and
// can force the score to exactly 0.0 for contexts that must never be
// flagged: code in all its shapes, URLs and emails, quoted material, and
// creative or legal registers for register-sensitive rules. This is a
// correctness invariant, not a tunable heuristic - no downstream clue can
// override a guard decision.
//
// For paragraph text, an unfenced code fragment (a shell one-liner pasted
// without a fence) is caught by a cheap symbol-density prefilter followed
// by a tree-sitter parse: if the span parses cleanly as Go or Python, it
// is treated as code.
//
// # Thread Safety
//
// Safe for concurrent use. Tree-sitter parsers are created per call; they
// are not reusable across goroutines.
type Guard struct {
	// registerSensitive lists the kinds suppressed under creative or
	// legal registers, where stylistic rules do not apply.
	registerSensitive map[detect.Kind]bool
}

// NewGuard creates a guard with the default register-sensitivity set.
func NewGuard() *Guard {
	return &Guard{
		registerSensitive: map[detect.Kind]bool{
			detect.KindPassiveVoice:     true,
			detect.KindSentenceFragment: true,
			detect.KindWordiness:        true,
			detect.KindWeakWording:      true,
		},
	}
}

// Suppress reports whether the detection must be forced to score zero,
// and the guard rule that fired.
func (g *Guard) Suppress(det detect.Detection, sctx *detect.Context) (string, bool) {
	switch sctx.BlockType {
	case detect.BlockCodeBlock, detect.BlockInlineCode, detect.BlockLiteral:
		return "code_context", true
	case detect.BlockQuote:
		return "quoted_material", true
	}

	if urlOrEmail.MatchString(det.FlaggedText) {
		return "url_or_email", true
	}
	if quoteDelimited(det) {
		return "inline_quote", true
	}

	switch sctx.ContentType {
	case detect.ContentCreative:
		if g.registerSensitive[det.Kind] {
			return "creative_register", true
		}
	case detect.ContentLegal:
		// Legal prose is deliberately passive and formulaic.
		if det.Kind == detect.KindPassiveVoice || det.Kind == detect.KindWordiness {
			return "legal_register", true
		}
	}

	if looksLikeUnfencedCode(det.Sentence) {
		return "unfenced_code", true
	}
	return "", false
}

// looksLikeUnfencedCode decides whether a paragraph sentence is actually a
// pasted code fragment. Cheap density check first; tree-sitter only runs
// on the rare sentence that passes it.
func looksLikeUnfencedCode(sentence string) bool {
	if len(sentence) < 8 {
		return false
	}
	var symbols int
	for _, r := range sentence {
		switch r {
		case '{', '}', '(', ')', '[', ']', '=', ';', '<', '>', '|', '&', '$':
			symbols++
		}
	}
	if float64(symbols)/float64(len(sentence)) < codeSymbolDensity {
		return false
	}
	for _, g := range codeGrammars {
		if parsesAsCode(g.wrap(sentence), g.lang) {
			return true
		}
	}
	return false
}

// codeGrammar pairs a grammar with the wrapping a bare fragment needs to
// form a parseable source file in that language.
type codeGrammar struct {
	lang *sitter.Language
	wrap func(string) string
}

var codeGrammars = []codeGrammar{
	// A bare statement is not a valid Go file; wrap it the way gofmt
	// snippets are wrapped.
	{golang.GetLanguage(), func(s string) string {
		return "package p\nfunc _() {\n" + s + "\n}"
	}},
	{python.GetLanguage(), func(s string) string {
		return "if True:\n    " + s
	}},
}

// parsesAsCode returns true when the source parses without error nodes.
// English prose fed to a programming grammar reliably produces errors, so
// a clean parse is strong evidence of code.
func parsesAsCode(source string, lang *sitter.Language) bool {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(source))
	if err != nil {
		return false
	}
	defer tree.Close()
	return !hasErrorNode(tree.RootNode())
}

func hasErrorNode(node *sitter.Node) bool {
	if node.IsError() || node.IsMissing() {
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if hasErrorNode(node.Child(i)) {
			return true
		}
	}
	return false
}

// quoteDelimited reports whether the flagged span sits entirely inside
// double quotes within the sentence. Quoted prose is someone else's
// wording and is never rewritten.
func quoteDelimited(det detect.Detection) bool {
	before := det.Sentence[:min(det.Span.Start, len(det.Sentence))]
	after := det.Sentence[min(det.Span.End, len(det.Sentence)):]
	return strings.Count(before, `"`)%2 == 1 && strings.Contains(after, `"`)
}
