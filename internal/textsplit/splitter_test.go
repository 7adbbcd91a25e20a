package textsplit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmpty(t *testing.T) {
	s := NewSplitter(100, 20)
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t  "))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("Hello world, this fits in one chunk.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world, this fits in one chunk.", chunks[0])
}

func TestSplitRespectsChunkSize(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 20; i++ {
		paragraphs = append(paragraphs, strings.Repeat("word ", 16)) // ~80 chars each
	}
	text := strings.Join(paragraphs, "\n\n")

	s := NewSplitter(200, 50)
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 200, "chunk %d exceeds size", i)
		assert.NotEmpty(t, chunk)
	}
}

func TestSplitPrefersHeadingBoundaries(t *testing.T) {
	text := "intro para\n## Section One\ncontent one\n## Section Two\ncontent two"

	s := NewSplitter(30, 5)
	chunks := s.Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, "intro para", chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], "## Section One"))
	assert.True(t, strings.HasPrefix(chunks[2], "## Section Two"))
}

func TestSplitOverlapCarriesContent(t *testing.T) {
	sentences := []string{"one alpha", "two bravo", "three charlie", "four delta", "five echo"}
	text := strings.Join(sentences, ". ")

	s := NewSplitter(30, 12)
	chunks := s.Split(text)

	require.Len(t, chunks, 3)
	// "two bravo" straddles the first boundary, so it appears in both
	// neighbouring chunks.
	assert.Contains(t, chunks[0], "two bravo")
	assert.Contains(t, chunks[1], "two bravo")
	assert.Contains(t, chunks[2], "five echo")
}

func TestSplitKeepsMarkerIntactAtCharacterLevel(t *testing.T) {
	marker := "[[IMAGE:images/very/long/path/screenshot.png|A long descriptive title]]"
	text := strings.Repeat("a", 30) + marker + strings.Repeat("b", 30)

	protected, placeholders := Protect(text)
	require.Contains(t, protected, "__IMAGE_MARKER_0__")

	// No spaces or newlines anywhere, so splitting degrades to single
	// characters. The placeholder must still come through whole.
	s := NewSplitter(20, 5)
	chunks := s.Split(protected)
	require.Greater(t, len(chunks), 1)

	found := 0
	for _, chunk := range chunks {
		restored := Restore(chunk, placeholders)
		assert.NotContains(t, restored, "__IMAGE_MARKER", "placeholder fragment leaked")
		if strings.Contains(restored, marker) {
			found++
		} else {
			assert.NotContains(t, restored, "[[IMAGE", "broken marker in chunk %q", restored)
		}
	}
	assert.Equal(t, 1, found, "marker must survive in exactly one chunk")
}

func TestSplitMarkerLargerThanChunkStaysWhole(t *testing.T) {
	text := "ab" + "[[IMAGE:images/x.png|Title]]" + "cd"
	protected, placeholders := Protect(text)

	// Placeholder is longer than the chunk size; it is emitted as its own
	// oversized chunk rather than being cut.
	s := NewSplitter(10, 3)
	chunks := s.Split(protected)

	var restored []string
	for _, chunk := range chunks {
		restored = append(restored, Restore(chunk, placeholders))
	}
	assert.Contains(t, restored, "[[IMAGE:images/x.png|Title]]")
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -1)
	assert.Equal(t, DefaultChunkSize, s.chunkSize)
	assert.Equal(t, DefaultChunkOverlap, s.chunkOverlap)

	// Overlap not smaller than size falls back to a fraction of the size.
	s = NewSplitter(100, 100)
	assert.Equal(t, 100, s.chunkSize)
	assert.Equal(t, 20, s.chunkOverlap)
}
