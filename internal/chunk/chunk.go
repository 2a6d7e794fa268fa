// Package chunk splits extracted document text into approximately
// token-sized pieces with configurable overlap, recursively breaking on
// paragraph, sentence, and word boundaries so chunks cluster around but do
// not exceed the target size.
package chunk

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/teilomillet/ragingest/internal/model"
)

// charsPerToken approximates the character-to-token ratio used to convert a
// token budget into a character budget for the underlying splitter.
const charsPerToken = 3.5

// TokenCounter estimates how many tokens a string represents.
type TokenCounter interface {
	Count(text string) int
}

// wordCounter is the default, dependency-free approximation: one token per
// whitespace-delimited word.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// tiktokenCounter wraps github.com/pkoukk/tiktoken-go for callers who need
// tokenizer-accurate counts rather than the word-count approximation.
type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter builds a TokenCounter backed by the named tiktoken
// encoding (e.g. "cl100k_base").
func NewTiktokenCounter(encoding string) (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &tiktokenCounter{enc: enc}, nil
}

func (t *tiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize overrides the default 500-token target chunk size.
func WithChunkSize(tokens int) Option {
	return func(c *Chunker) { c.chunkSize = tokens }
}

// WithOverlap overrides the default 100-token overlap between consecutive
// chunks.
func WithOverlap(tokens int) Option {
	return func(c *Chunker) { c.overlap = tokens }
}

// WithTokenCounter stores a different TokenCounter on the Chunker, e.g. a
// tiktoken-backed one. Chunk itself measures chunks in characters
// (chunkSize × charsPerToken) and does not consult the counter.
func WithTokenCounter(tc TokenCounter) Option {
	return func(c *Chunker) { c.counter = tc }
}

// Chunker splits text into Chunks of approximately chunkSize tokens, with
// overlap tokens of repeated content between consecutive chunks.
type Chunker struct {
	chunkSize int
	overlap   int
	counter   TokenCounter
}

// New builds a Chunker with the default 500/100 token size/overlap and the
// word-count TokenCounter, as overridden by opts.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: 500,
		overlap:   100,
		counter:   wordCounter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits text into ordered Chunks. Empty or whitespace-only input
// yields zero chunks.
func (c *Chunker) Chunk(text string) []model.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	charBudget := int(float64(c.chunkSize) * charsPerToken)
	charOverlap := int(float64(c.overlap) * charsPerToken)

	paragraphs := splitParagraphs(text)

	var units []string
	for _, p := range paragraphs {
		if len(p) <= charBudget {
			units = append(units, p)
			continue
		}
		for _, s := range splitSentences(p) {
			if len(s) <= charBudget {
				units = append(units, s)
				continue
			}
			units = append(units, splitWords(s, charBudget)...)
		}
	}

	return c.pack(units, charBudget, charOverlap)
}

// pack greedily accumulates splitter units into chunks bounded by charBudget,
// carrying up to charOverlap characters of trailing content forward into the
// next chunk so consecutive fragments overlap. The carried overlap shrinks
// (down to none) when the next unit leaves less room under charBudget.
func (c *Chunker) pack(units []string, charBudget, charOverlap int) []model.Chunk {
	var chunks []model.Chunk
	var current strings.Builder
	position := 0

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text == "" {
			return
		}
		chunks = append(chunks, model.Chunk{Text: text, Position: position})
		position++
	}

	for _, unit := range units {
		if current.Len() > 0 && current.Len()+len(unit)+1 > charBudget {
			flush()
			overlapLen := charOverlap
			if room := charBudget - len(unit) - 2; room < overlapLen {
				overlapLen = room
			}
			overlapText := ""
			if overlapLen > 0 {
				overlapText = tailChars(current.String(), overlapLen)
			}
			current.Reset()
			if overlapText != "" {
				current.WriteString(overlapText)
				current.WriteString(" ")
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(unit)
	}
	flush()

	return chunks
}

// tailChars returns the last n characters of s, broken on a word boundary so
// overlap content doesn't start mid-word.
func tailChars(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return strings.TrimSpace(s)
	}
	tail := s[len(s)-n:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	} else {
		return ""
	}
	return strings.TrimSpace(tail)
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	var out []string
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// splitSentences breaks on '.', '!', '?' followed by whitespace, keeping the
// terminator attached to its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		isTerminator := runes[i] == '.' || runes[i] == '!' || runes[i] == '?'
		atBoundary := i == len(runes)-1 || runes[i+1] == ' ' || runes[i+1] == '\n'
		if isTerminator && atBoundary {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	return sentences
}

// splitWords breaks a long sentence into word-boundary pieces no longer than
// charBudget characters, the last resort when a sentence alone exceeds the
// target chunk size.
func splitWords(text string, charBudget int) []string {
	words := strings.Fields(text)
	var pieces []string
	var current strings.Builder

	for _, w := range words {
		if current.Len() > 0 && current.Len()+len(w)+1 > charBudget {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}
