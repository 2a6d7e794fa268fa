package promptbuilder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestSelectTemplateDispatchesOnContentType(t *testing.T) {
	assert.Equal(t, TemplateCode, selectTemplate("text/x-python", "def f(): pass"))
	assert.Equal(t, TemplatePDF, selectTemplate("application/pdf", "regular prose about history"))
	assert.Equal(t, TemplateMathPDF, selectTemplate("application/pdf", "By the theorem, the lemma implies the proof is complete."))
	assert.Equal(t, TemplateTechnical, selectTemplate("text/markdown", "# Overview"))
	assert.Equal(t, TemplateDefault, selectTemplate("text/plain", "just some ordinary sentences here"))
}

func TestSelectTemplateDetectsTechnicalSignalsInPlainMIME(t *testing.T) {
	assert.Equal(t, TemplateTechnical, selectTemplate("text/plain", "Call the API via a POST request to v1.2.3 of the SDK."))
}

func TestBuildInlineEmbedsDocumentInPrompt(t *testing.T) {
	r := Build("the chunk text", "text/plain", "the full document text", false, wordCounter{})
	assert.False(t, r.CacheFriendly)
	assert.Contains(t, r.Inline, "the full document text")
	assert.Contains(t, r.Inline, "the chunk text")
}

func TestBuildCacheFriendlyExcludesDocumentFromPromptText(t *testing.T) {
	r := Build("the chunk text", "text/plain", "the full document text", true, wordCounter{})
	assert.True(t, r.CacheFriendly)
	assert.NotContains(t, r.PromptText, "the full document text")
	assert.Contains(t, r.PromptText, "the chunk text")
	assert.NotEmpty(t, r.SystemPrompt)
}

func TestBuildReturnsErrorPromptWhenChunkMissing(t *testing.T) {
	r := Build("", "text/plain", "doc", false, wordCounter{})
	assert.True(t, r.IsError())
	assert.True(t, strings.HasPrefix(r.Inline, "Error:"))
}

func TestBuildReturnsErrorPromptWhenDocumentMissing(t *testing.T) {
	r := Build("chunk", "text/plain", "", true, wordCounter{})
	assert.True(t, r.IsError())
	assert.True(t, strings.HasPrefix(r.PromptText, "Error:"))
}

func TestEffectiveTargetsExpandsMaxWhenChunkAlreadyLarge(t *testing.T) {
	require.Equal(t, tokenTarget{60, 120}, targets[TemplateDefault])

	bigChunk := strings.Repeat("word ", 100) // 100 tokens, >= 70% of 120
	min, max := effectiveTargets(TemplateDefault, bigChunk, wordCounter{})
	assert.Equal(t, 100, min)
	assert.GreaterOrEqual(t, max, 130) // ceil(100*1.3) = 130
}

func TestEffectiveTargetsKeepsDefaultsForSmallChunk(t *testing.T) {
	smallChunk := "a short chunk"
	min, max := effectiveTargets(TemplateDefault, smallChunk, wordCounter{})
	assert.Equal(t, 60, min)
	assert.Equal(t, 120, max)
}
