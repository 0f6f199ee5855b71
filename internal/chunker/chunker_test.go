package chunker

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat-go/internal/errs"
)

// reconstruct joins chunks dropping the shared overlap prefix of every chunk after the first.
func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			b.WriteString(ch)
			continue
		}
		b.WriteString(string([]rune(ch)[overlap:]))
	}
	return b.String()
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
		wantErr       bool
	}{
		{"defaults", DefaultChunkSize, DefaultChunkOverlap, false},
		{"zero overlap", 10, 0, false},
		{"overlap equals size", 10, 10, true},
		{"overlap exceeds size", 10, 20, true},
		{"negative overlap", 10, -1, true},
		{"zero size", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.size, tt.overlap)
			if tt.wantErr {
				require.ErrorIs(t, err, errs.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, c.Size())
			assert.Equal(t, tt.overlap, c.Overlap())
		})
	}
}

func TestNew_ToleranceCappedBelowStep(t *testing.T) {
	c, err := New(10, 8, WithBreakTolerance(50))
	require.NoError(t, err)
	assert.Equal(t, 1, c.tolerance)
}

func TestSplit_EmptyInput(t *testing.T) {
	c, err := New(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)
	assert.Empty(t, c.Split(""))
}

func TestSplit_ShortInputIsSingleChunk(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)
	chunks := c.Split("This is a small piece of content.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "This is a small piece of content.", chunks[0])
}

func TestSplit_2500CharactersWith1000And200(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)
	text := strings.Repeat("x", 2500)

	chunks := c.Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, 1000, len(chunks[0]))
	assert.Equal(t, 1000, len(chunks[1]))
	assert.Equal(t, 900, len(chunks[2]))
	assert.Equal(t, text[800:1800], chunks[1])
	assert.Equal(t, text[1600:], chunks[2])
}

func TestSplit_HardCutPropertiesWithoutSnapping(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("abcdef ghij.\n中文！")
	for i := 0; i < 50; i++ {
		size := 5 + rng.Intn(60)
		overlap := rng.Intn(size)
		c, err := New(size, overlap, WithBreakTolerance(0))
		require.NoError(t, err)

		runes := make([]rune, 1+rng.Intn(400))
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		text := string(runes)

		chunks := c.Split(text)
		require.NotEmpty(t, chunks)
		assert.Equal(t, text, reconstruct(chunks, overlap))
		for k, ch := range chunks {
			n := utf8.RuneCountInString(ch)
			if k < len(chunks)-1 {
				assert.Equal(t, size, n, "every chunk but the last has the window size")
				next := []rune(chunks[k+1])
				assert.Equal(t, string([]rune(ch)[n-overlap:]), string(next[:overlap]))
			} else {
				assert.LessOrEqual(t, n, size)
			}
		}
	}
}

func TestSplit_SnappingKeepsExactOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	words := []string{"alpha", "beta", "gamma.", "delta!", "\n", "\n\n", "epsilon?", "中文句子。"}
	for i := 0; i < 30; i++ {
		var b strings.Builder
		for b.Len() < 3000 {
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteString(" ")
		}
		text := b.String()
		c, err := New(200, 40)
		require.NoError(t, err)

		chunks := c.Split(text)
		assert.Equal(t, text, reconstruct(chunks, 40))
		for k, ch := range chunks[:len(chunks)-1] {
			n := utf8.RuneCountInString(ch)
			assert.LessOrEqual(t, n, 200)
			assert.GreaterOrEqual(t, n, 200-c.tolerance, "chunk %d shrank beyond tolerance", k)
		}
	}
}

func TestSplit_PrefersParagraphBreak(t *testing.T) {
	// paragraph break at 90, sentence end at 95, window 100, tolerance 20
	text := strings.Repeat("a", 88) + "\n\n" + "bb. " + strings.Repeat("c", 200)
	c, err := New(100, 10, WithBreakTolerance(20))
	require.NoError(t, err)

	chunks := c.Split(text)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"))
	assert.Equal(t, 90, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, text, reconstruct(chunks, 10))
}

func TestSplit_PrefersSentenceEndOverWhitespace(t *testing.T) {
	text := strings.Repeat("a", 80) + ". " + strings.Repeat("b", 10) + " " + strings.Repeat("c", 200)
	c, err := New(100, 10, WithBreakTolerance(30))
	require.NoError(t, err)

	chunks := c.Split(text)
	assert.True(t, strings.HasSuffix(chunks[0], ". "))
	assert.Equal(t, 82, utf8.RuneCountInString(chunks[0]))
}
