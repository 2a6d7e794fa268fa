package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmptyProducesNoChunks(t *testing.T) {
	c := New()
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\n  \t"))
}

func TestChunkShortTextProducesOneChunkAtPositionZero(t *testing.T) {
	c := New()
	chunks := c.Chunk("# Title\n\nPara one. Para two.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Contains(t, chunks[0].Text, "Para one.")
	assert.Contains(t, chunks[0].Text, "Para two.")
}

func TestChunkPositionsAreSequentialFromZero(t *testing.T) {
	c := New(WithChunkSize(20), WithOverlap(5))
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 50)

	chunks := c.Chunk(text)
	require.True(t, len(chunks) > 1)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Position)
	}
}

func TestChunkOrderMirrorsSourceOrder(t *testing.T) {
	c := New(WithChunkSize(10), WithOverlap(2))
	text := "Alpha section text here.\n\nBravo section text here.\n\nCharlie section text here."

	chunks := c.Chunk(text)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.Contains(chunks[0].Text, "Alpha"))
	assert.True(t, strings.Contains(chunks[len(chunks)-1].Text, "Charlie"))
}

func TestChunkConsecutiveChunksOverlap(t *testing.T) {
	c := New(WithChunkSize(15), WithOverlap(8))
	text := strings.Repeat("word ", 400)

	chunks := c.Chunk(text)
	require.True(t, len(chunks) > 1)

	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1].Text
		prevWords := strings.Fields(prevTail)
		lastWord := prevWords[len(prevWords)-1]
		assert.True(t, strings.Contains(chunks[i].Text, lastWord) || strings.HasPrefix(chunks[i].Text, "word"))
	}
}

func TestWordCounterCountsWhitespaceDelimitedWords(t *testing.T) {
	wc := wordCounter{}
	assert.Equal(t, 4, wc.Count("the quick brown fox"))
	assert.Equal(t, 0, wc.Count("   "))
}
