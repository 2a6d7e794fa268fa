// Package promptbuilder selects a content-type-aware prompt template for
// contextual enrichment and renders it either inline (document text embedded
// in the prompt) or as a cache-friendly {systemPrompt, promptText} pair where
// the document is left out so the caller can pass it to the LLM gateway as a
// separately-cached segment.
package promptbuilder

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// TokenCounter estimates how many tokens a string represents. It mirrors
// chunk.TokenCounter so callers can share the same counter across the
// chunker and the prompt builder without this package importing chunk.
type TokenCounter interface {
	Count(text string) int
}

// Template names, also used as map keys for the MIN/MAX token targets.
const (
	TemplateDefault = "default"
	TemplatePDF     = "pdf"
	TemplateMathPDF = "math-pdf"
	TemplateCode    = "code"
	TemplateTechnical = "technical"
)

type tokenTarget struct{ min, max int }

var targets = map[string]tokenTarget{
	TemplateDefault:   {60, 120},
	TemplatePDF:       {80, 150},
	TemplateMathPDF:   {100, 180},
	TemplateCode:      {100, 200},
	TemplateTechnical: {80, 160},
}

// Result is the output of Build: either Inline is populated (document text
// embedded directly in the prompt), or SystemPrompt/PromptText form the
// cache-friendly pair with the document left out of PromptText.
type Result struct {
	Template      string
	CacheFriendly bool
	Inline        string
	SystemPrompt  string
	PromptText    string
}

// IsError reports whether this Result represents a skip signal: a prompt
// whose rendered text begins with "Error:" because the chunk or document
// was missing.
func (r Result) IsError() bool {
	text := r.Inline
	if r.CacheFriendly {
		text = r.PromptText
	}
	return strings.HasPrefix(text, "Error:")
}

var codeMIMEHints = []string{"typescript", "python", "java", "c++", "code", "javascript", "golang", "rust"}

var mathKeywords = []string{
	"theorem", "lemma", "proof", "equation", "derivative", "integral",
	"matrix", "vector", "algorithm", "corollary", "axiom",
}

var (
	mathMarkerPattern  = regexp.MustCompile(`\$\$.*?\$\$|\\begin\{equation\}|\\frac|\\sum|[Α-Ωα-ω]`)
	httpVerbPattern    = regexp.MustCompile(`\b(GET|POST|PUT|DELETE|PATCH)\b`)
	htmlTagPattern     = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	versionPattern     = regexp.MustCompile(`\bv?\d+\.\d+(\.\d+)?\b`)
	headingPattern     = regexp.MustCompile(`(?i)\b(Introduction|Overview|API Reference)\b`)
	listPattern        = regexp.MustCompile(`(?m)^\s*([-*]|\d+\.)\s+`)
	apiSdkCliPattern   = regexp.MustCompile(`(?i)\b(API|SDK|CLI)\b`)
)

// selectTemplate applies the content-type and content heuristics from the
// template-selection table.
func selectTemplate(contentType, chunkText string) string {
	lowerType := strings.ToLower(contentType)

	for _, hint := range codeMIMEHints {
		if strings.Contains(lowerType, hint) {
			return TemplateCode
		}
	}

	if lowerType == "application/pdf" {
		if isMathSignal(chunkText) {
			return TemplateMathPDF
		}
		return TemplatePDF
	}

	if lowerType == "text/markdown" || lowerType == "text/html" || isTechnicalSignal(chunkText) {
		return TemplateTechnical
	}

	return TemplateDefault
}

func isMathSignal(text string) bool {
	if mathMarkerPattern.MatchString(text) {
		return true
	}
	count := 0
	lower := strings.ToLower(text)
	for _, kw := range mathKeywords {
		if strings.Contains(lower, kw) {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}

func isTechnicalSignal(text string) bool {
	signals := 0
	if versionPattern.MatchString(text) {
		signals++
	}
	if apiSdkCliPattern.MatchString(text) {
		signals++
	}
	if httpVerbPattern.MatchString(text) {
		signals++
	}
	if htmlTagPattern.MatchString(text) {
		signals++
	}
	if headingPattern.MatchString(text) {
		signals++
	}
	if listPattern.MatchString(text) {
		signals++
	}
	return signals >= 1
}

// Build renders the prompt for one chunk. cacheFriendly selects the
// document-external pairing form used for Claude/Gemini-via-OpenRouter
// caching; it is ignored (treated as inline) otherwise.
func Build(chunkText, contentType, fullDocumentText string, cacheFriendly bool, counter TokenCounter) Result {
	template := selectTemplate(contentType, chunkText)

	if strings.TrimSpace(chunkText) == "" || strings.TrimSpace(fullDocumentText) == "" {
		errText := "Error: missing chunk or document text for contextual enrichment"
		if cacheFriendly {
			return Result{Template: template, CacheFriendly: true, PromptText: errText}
		}
		return Result{Template: template, Inline: errText}
	}

	min, max := effectiveTargets(template, chunkText, counter)
	instructions := instructionsFor(template, min, max)

	if cacheFriendly {
		system := fmt.Sprintf("You are generating short retrieval context for document chunks. %s", instructions)
		prompt := fmt.Sprintf(
			"Here is the chunk we want to situate within the whole document:\n<chunk>\n%s\n</chunk>\n\n"+
				"Give a short, succinct context to situate this chunk within the overall document for the purposes of improving search retrieval of the chunk. "+
				"Answer only with the succinct context and nothing else. The original chunk must appear verbatim in your answer.",
			chunkText,
		)
		return Result{Template: template, CacheFriendly: true, SystemPrompt: system, PromptText: prompt}
	}

	inline := fmt.Sprintf(
		"<document>\n%s\n</document>\n\n"+
			"Here is the chunk we want to situate within the whole document:\n<chunk>\n%s\n</chunk>\n\n"+
			"%s Answer only with the succinct context and nothing else. The original chunk must appear verbatim in your answer.",
		fullDocumentText, chunkText, instructions,
	)
	return Result{Template: template, Inline: inline}
}

// effectiveTargets expands MAX (and raises MIN) when the chunk itself is
// already at or above 70% of the template's MAX, so the enrichment request
// never demands a result shorter than the input it's enriching.
func effectiveTargets(template, chunkText string, counter TokenCounter) (int, int) {
	t := targets[template]
	if counter == nil {
		return t.min, t.max
	}
	chunkTokens := counter.Count(chunkText)
	if chunkTokens*10 >= t.max*7 {
		newMax := int(math.Ceil(float64(chunkTokens) * 1.3))
		return chunkTokens, newMax
	}
	return t.min, t.max
}

func instructionsFor(template string, min, max int) string {
	base := fmt.Sprintf("Write a context of roughly %d-%d tokens.", min, max)
	switch template {
	case TemplateCode:
		return base + " Preserve syntax, imports, and type information relevant to the chunk."
	case TemplateMathPDF:
		return base + " Preserve notation, theorem/lemma numbering, and surrounding derivation context."
	case TemplatePDF:
		return base + " Describe the chunk's place in the document's argument or narrative."
	case TemplateTechnical:
		return base + " Preserve API names, version numbers, and section context."
	default:
		return base
	}
}
