// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detect defines the raw detection layer of the analysis pipeline.
//
// # Description
//
// A DetectionSource inspects one sentence of a parsed block and emits zero
// or more Detections: unscored candidate issues carrying the flagged span
// plus rule-specific structured evidence. Detections are noisy by design;
// the evidence and gate packages decide which ones survive.
//
// # Thread Safety
//
// Context is immutable after construction and safe to share across
// goroutines. DetectionSources must be stateless.
package detect

// BlockType identifies the structural role of the block a sentence lives in.
type BlockType string

const (
	BlockParagraph   BlockType = "paragraph"
	BlockHeading     BlockType = "heading"
	BlockListItem    BlockType = "list_item"
	BlockCodeBlock   BlockType = "code_block"
	BlockInlineCode  BlockType = "inline_code"
	BlockLiteral     BlockType = "literal_block"
	BlockTableCell   BlockType = "table_cell"
	BlockAdmonition  BlockType = "admonition"
	BlockQuote       BlockType = "quote"
	BlockCaption     BlockType = "caption"
	BlockUnknown     BlockType = "unknown"
)

// Known reports whether b is a recognized block type. BlockUnknown is
// known; it is the explicit "structure not determined" value, distinct
// from a type the caller invented.
func (b BlockType) Known() bool {
	switch b {
	case BlockParagraph, BlockHeading, BlockListItem, BlockCodeBlock,
		BlockInlineCode, BlockLiteral, BlockTableCell, BlockAdmonition,
		BlockQuote, BlockCaption, BlockUnknown:
		return true
	}
	return false
}

// ContentType identifies the editorial register of the whole document.
type ContentType string

const (
	ContentTechnical  ContentType = "technical"
	ContentCreative   ContentType = "creative"
	ContentLegal      ContentType = "legal"
	ContentAPI        ContentType = "api"
	ContentProcedural ContentType = "procedural"
	ContentMarketing  ContentType = "marketing"
	ContentGeneral    ContentType = "general"
)

// Kind is a rule identifier, e.g. "passive_voice" or "repeated_punctuation".
type Kind string

const (
	KindPassiveVoice        Kind = "passive_voice"
	KindMissingActor        Kind = "missing_actor"
	KindSentenceFragment    Kind = "sentence_fragment"
	KindRepeatedPunctuation Kind = "repeated_punctuation"
	KindTenseShift          Kind = "tense_shift"
	KindSubjectAgreement    Kind = "subject_agreement"
	KindWordiness           Kind = "wordiness"
	KindWeakWording         Kind = "weak_wording"
	KindArticleMisuse       Kind = "article_misuse"
	KindDoubleSpace         Kind = "double_space"
)

// Context is an immutable snapshot of where a span of text lives.
//
// Created once per analyzed block and shared read-only by every Detection
// derived from that block. Never mutated by detectors or scorers.
type Context struct {
	// BlockType is the structural role of the enclosing block.
	BlockType BlockType

	// ContentType is the document-level editorial register.
	ContentType ContentType

	// Domain is a free-form subject hint, e.g. "networking", "finance".
	Domain string

	// Audience describes the intended reader, e.g. "developer", "end_user".
	Audience string

	// PrecedingSentences holds up to a few sentences before the current one.
	PrecedingSentences []string

	// ParagraphContext is the full text of the enclosing paragraph.
	ParagraphContext string
}

// Span marks a half-open byte range [Start, End) inside the sentence.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Detection is one unscored candidate issue.
//
// Produced by a DetectionSource and consumed exactly once by the evidence
// scorer. It does not outlive the scoring step unless it is accepted.
type Detection struct {
	// Kind identifies the rule that produced this candidate.
	Kind Kind

	// FlaggedText is the exact span the rule objected to.
	FlaggedText string

	// Sentence is the full sentence containing the span.
	Sentence string

	// SentenceIndex is the zero-based position of the sentence in the block.
	SentenceIndex int

	// Span locates FlaggedText within Sentence.
	Span Span

	// Evidence carries rule-specific structured fields, e.g. "lemma",
	// "auxiliary", "construction". Keys are rule-defined.
	Evidence map[string]string
}

// Agent reports whether the detection recorded an explicit agent
// (a "by ..." phrase for passive constructions).
func (d Detection) Agent() (string, bool) {
	v, ok := d.Evidence["agent"]
	return v, ok && v != ""
}
