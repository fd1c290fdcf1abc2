package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolRejectsZeroCapacity(t *testing.T) {
	_, err := NewPool("bad", RetrievalPool, &Config{})
	assert.Error(t, err)
}

func TestGroupRunsEveryTask(t *testing.T) {
	p, err := NewPool("retrieval", RetrievalPool, RetrievalPoolConfig(4))
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	var n atomic.Int64
	g := NewGroup(p)
	for i := 0; i < 50; i++ {
		g.Go(func() { n.Add(1) })
	}
	g.Wait()

	assert.Equal(t, int64(50), n.Load())
	assert.Equal(t, int64(50), p.Stats().SubmittedTasks)
}

func TestGroupWithoutPool(t *testing.T) {
	var n atomic.Int64
	g := NewGroup(nil)
	for i := 0; i < 10; i++ {
		g.Go(func() { n.Add(1) })
	}
	g.Wait()
	assert.Equal(t, int64(10), n.Load())
}

func TestGroupFallsBackWhenClosed(t *testing.T) {
	p, err := NewPool("closed", IngestPool, IngestPoolConfig())
	require.NoError(t, err)
	require.NoError(t, p.ReleaseTimeout(time.Second))

	ran := false
	g := NewGroup(p)
	g.Go(func() { ran = true })
	g.Wait()
	assert.True(t, ran)
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestSubmitWithContextSkipsCancelled(t *testing.T) {
	p, err := NewPool("ctx", IngestPool, IngestPoolConfig())
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.SubmitWithContext(ctx, func() {}), context.Canceled)
}

func TestPanicIsRecovered(t *testing.T) {
	p, err := NewPool("panic", IngestPool, IngestPoolConfig())
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	require.NoError(t, p.Submit(func() { panic("boom") }))
	assert.Eventually(t, func() bool { return p.Stats().PanicRecovered == 1 }, time.Second, 10*time.Millisecond)
}
