package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/pkg/infra/pool"
	options "github.com/kart-io/sentinel-rag/pkg/options/watcher"
)

type recordingIngester struct {
	mu      sync.Mutex
	records []biz.Record
}

func (r *recordingIngester) Ingest(_ context.Context, rec biz.Record) (*biz.IngestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return &biz.IngestResult{DocumentID: "doc", Chunks: 1}, nil
}

func (r *recordingIngester) sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.SourceURI
	}
	return out
}

func (r *recordingIngester) last() biz.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[len(r.records)-1]
}

func startWatcher(t *testing.T, dir string, ing Ingester) *Watcher {
	t.Helper()
	p, err := pool.NewPool("ingest-test", pool.IngestPool, pool.IngestPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.ReleaseTimeout(time.Second) })

	opts := options.NewOptions()
	opts.Dir = dir
	opts.Debounce = 100 * time.Millisecond
	opts.Extensions = []string{".md", "txt"}

	w := New(opts, ing, p)
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, w.Stop(ctx))
		assert.NoError(t, <-errCh)
	})
	return w
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestInitialScanFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "housing.md"), "housing program")
	write(t, filepath.Join(dir, "scan.pdf"), "binary")
	write(t, filepath.Join(dir, ".hidden.md"), "hidden")
	write(t, filepath.Join(dir, "blank.txt"), "  \n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "laws"), 0o755))
	write(t, filepath.Join(dir, "laws", "labor.TXT"), "labor law")

	ing := &recordingIngester{}
	startWatcher(t, dir, ing)

	assert.Eventually(t, func() bool { return len(ing.sources()) == 2 }, 2*time.Second, 20*time.Millisecond)
	assert.ElementsMatch(t, []string{"housing.md", "laws/labor.TXT"}, ing.sources())
	assert.Equal(t, "system", ing.last().Scope)
}

func TestWritesAreDebounced(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	startWatcher(t, dir, ing)

	path := filepath.Join(dir, "memo.txt")
	// give the watcher time to register the directory
	time.Sleep(50 * time.Millisecond)
	for _, content := range []string{"v1", "v2", "v3"} {
		write(t, path, content)
	}

	assert.Eventually(t, func() bool { return len(ing.sources()) == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, ing.sources(), 1)
	assert.Equal(t, "v3", ing.last().Content)
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{}
	startWatcher(t, dir, ing)
	time.Sleep(50 * time.Millisecond)

	sub := filepath.Join(dir, "reports")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(50 * time.Millisecond)
	write(t, filepath.Join(sub, "q1.md"), "quarterly report")

	assert.Eventually(t, func() bool {
		for _, s := range ing.sources() {
			if s == "reports/q1.md" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStopBeforeStart(t *testing.T) {
	p, err := pool.NewPool("ingest-idle", pool.IngestPool, pool.IngestPoolConfig())
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	w := New(options.NewOptions(), &recordingIngester{}, p)
	require.NoError(t, w.Stop(context.Background()))
	// Start after Stop returns immediately
	opts := options.NewOptions()
	opts.Dir = t.TempDir()
	w.opts = opts
	assert.NoError(t, w.Start(context.Background()))
}

func TestFiredTimerIsReplacedNotReset(t *testing.T) {
	p, err := pool.NewPool("ingest-stale", pool.IngestPool, pool.IngestPoolConfig())
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	dir := t.TempDir()
	path := filepath.Join(dir, "memo.md")
	write(t, path, "v1")

	opts := options.NewOptions()
	opts.Dir = dir
	opts.Debounce = 100 * time.Millisecond
	ing := &recordingIngester{}
	w := New(opts, ing, p)
	defer func() { _ = w.Stop(context.Background()) }()

	w.schedule(path)
	w.mu.Lock()
	old := w.pending[path]
	w.mu.Unlock()
	// a timer that already fired reports false from Stop
	require.True(t, old.timer.Stop())

	w.schedule(path)
	w.mu.Lock()
	current := w.pending[path]
	w.mu.Unlock()
	require.NotSame(t, old, current)

	// the late callback of the first timer finds itself replaced
	w.fire(path, old)
	assert.Eventually(t, func() bool { return len(ing.sources()) == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, []string{"memo.md"}, ing.sources())
}

func TestRemovedFileIsNotIngested(t *testing.T) {
	p, err := pool.NewPool("ingest-removed", pool.IngestPool, pool.IngestPoolConfig())
	require.NoError(t, err)
	defer func() { _ = p.ReleaseTimeout(time.Second) }()

	dir := t.TempDir()
	path := filepath.Join(dir, "draft.md")
	write(t, path, "draft")

	opts := options.NewOptions()
	opts.Dir = dir
	opts.Debounce = 50 * time.Millisecond
	ing := &recordingIngester{}
	w := New(opts, ing, p)
	defer func() { _ = w.Stop(context.Background()) }()

	w.schedule(path)
	w.mu.Lock()
	d := w.pending[path]
	w.mu.Unlock()
	w.cancelPending(path)
	w.fire(path, d)

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, ing.sources())
}
