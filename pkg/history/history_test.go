package history

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"profilegrab/pkg/models"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want models.HistoryEntry
		ok   bool
	}{
		{"https://www.instagram.com/p/ABC/, 20231114_221320_img.jpg", models.HistoryEntry{PostURL: "https://www.instagram.com/p/ABC/", Filename: "20231114_221320_img.jpg"}, true},
		{"legacy.jpg", models.HistoryEntry{Filename: "legacy.jpg"}, true},
		{"   ", models.HistoryEntry{}, false},
		{"https://x/p/1, ", models.HistoryEntry{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenLoadsExistingLedger(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "out/history.txt", []byte("p1, a.jpg\np2, b.jpg\n\n"), 0644))

	l, err := Open(fs, "out/history.txt")
	require.NoError(t, err)
	defer l.Close()

	assert.True(t, l.Contains("a.jpg"))
	assert.True(t, l.Contains("b.jpg"))
	assert.False(t, l.Contains("c.jpg"))
	assert.Equal(t, 2, l.Len())
}

func TestAppendIsDurableAndDeduplicated(t *testing.T) {
	fs := afero.NewMemMapFs()
	l, err := Open(fs, "u/history.txt")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Append(ctx, models.HistoryEntry{PostURL: "p1", Filename: "a.jpg"}))
	require.NoError(t, l.Append(ctx, models.HistoryEntry{PostURL: "p1-again", Filename: "a.jpg"}))
	require.NoError(t, l.Append(ctx, models.HistoryEntry{PostURL: "p2", Filename: "b.jpg"}))
	require.NoError(t, l.Close())

	data, err := afero.ReadFile(fs, "u/history.txt")
	require.NoError(t, err)
	assert.Equal(t, "p1, a.jpg\np2, b.jpg\n", string(data))
}

func TestConcurrentAppendsNeverInterleave(t *testing.T) {
	fs := afero.NewMemMapFs()
	l, err := Open(fs, "h.txt")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				name := fmt.Sprintf("w%d_%d.jpg", w, i%10)
				assert.NoError(t, l.Append(context.Background(), models.HistoryEntry{PostURL: "post", Filename: name}))
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, l.Close())

	data, err := afero.ReadFile(fs, "h.txt")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 100)

	seen := map[string]bool{}
	for _, line := range lines {
		e, ok := ParseLine(line)
		require.True(t, ok, "corrupt line %q", line)
		assert.False(t, seen[e.Filename], "duplicate entry %s", e.Filename)
		seen[e.Filename] = true
	}
}

func TestReopenIsMonotonic(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	first, err := Open(fs, "h.txt")
	require.NoError(t, err)
	require.NoError(t, first.Append(ctx, models.HistoryEntry{PostURL: "p", Filename: "a.jpg"}))
	require.NoError(t, first.Close())

	second, err := Open(fs, "h.txt")
	require.NoError(t, err)
	require.NoError(t, second.Append(ctx, models.HistoryEntry{PostURL: "p", Filename: "b.jpg"}))
	require.NoError(t, second.Close())

	data, _ := afero.ReadFile(fs, "h.txt")
	assert.Equal(t, "p, a.jpg\np, b.jpg\n", string(data))
}

func TestAppendAfterClose(t *testing.T) {
	l, err := Open(afero.NewMemMapFs(), "h.txt")
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	err = l.Append(context.Background(), models.HistoryEntry{PostURL: "p", Filename: "a.jpg"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAppendRejectsLineBreaks(t *testing.T) {
	l, err := Open(afero.NewMemMapFs(), "h.txt")
	require.NoError(t, err)
	defer l.Close()

	assert.Error(t, l.Append(context.Background(), models.HistoryEntry{PostURL: "p\nx", Filename: "a.jpg"}))
	assert.Error(t, l.Append(context.Background(), models.HistoryEntry{PostURL: "p"}))
}
