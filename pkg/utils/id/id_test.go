package id

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsSortable(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g := NewULIDGenerator(WithClock(func() time.Time { return fixed }))

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = g.Generate()
	}

	assert.True(t, sort.StringsAreSorted(ids), "same-millisecond IDs must be monotonic")
	ts, err := Time(ids[0])
	require.NoError(t, err)
	assert.True(t, ts.Equal(fixed))
}

func TestGenerateConcurrent(t *testing.T) {
	const workers, perWorker = 8, 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s := New()
				mu.Lock()
				seen[s] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestChunkAndValidate(t *testing.T) {
	doc := New()
	assert.True(t, IsValid(doc))
	assert.Len(t, doc, 26)
	assert.Equal(t, doc+"-0007", Chunk(doc, 7))
	assert.False(t, IsValid("not-a-ulid"))

	_, err := Time("bad")
	assert.Error(t, err)
}
