// Package watcher 监听目录并自动入库新增或修改的文件。
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"

	"github.com/kart-io/sentinel-rag/internal/rag/biz"
	"github.com/kart-io/sentinel-rag/pkg/infra/pool"
	options "github.com/kart-io/sentinel-rag/pkg/options/watcher"
)

// Ingester 入库一条记录。
type Ingester interface {
	Ingest(ctx context.Context, rec biz.Record) (*biz.IngestResult, error)
}

// Watcher 目录监听器。
// 同一文件在防抖窗口内的多次写入只触发一次入库，入库任务在入库池中执行。
type Watcher struct {
	opts     *options.Options
	ingester Ingester
	pool     *pool.Pool
	exts     map[string]bool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*debounce
	running sync.WaitGroup

	done     chan struct{}
	stopOnce sync.Once
}

// debounce 单个文件的防抖计时器，回调只在自身仍登记于 pending 时入库。
type debounce struct {
	timer *time.Timer
}

// New 创建目录监听器。
func New(opts *options.Options, ingester Ingester, p *pool.Pool) *Watcher {
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		opts:     opts,
		ingester: ingester,
		pool:     p,
		exts:     exts,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]*debounce),
		done:     make(chan struct{}),
	}
}

// Name 返回组件名称。
func (w *Watcher) Name() string {
	return "watcher"
}

// Start 开始监听，阻塞直到 Stop 被调用或 ctx 取消。
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.opts.Dir, w.opts.InitialScan); err != nil {
		return err
	}
	logger.Infow("Directory watcher started", "dir", w.opts.Dir, "scope", w.opts.Scope, "extensions", w.opts.Extensions)

	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("Directory watcher error", "error", err.Error())
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		}
	}
}

// Stop 停止监听，取消未触发的防抖任务并等待进行中的入库结束。
func (w *Watcher) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		close(w.done)
		for path, d := range w.pending {
			d.timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
	})

	finished := make(chan struct{})
	go func() {
		w.running.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		return ctx.Err()
	}
}

// addTree 递归监听目录；scan 为 true 时同时入库已有文件。
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string, scan bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if scan && w.accepts(path) {
			w.submit(path)
		}
		return nil
	})
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelPending(ev.Name)
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// 新建目录中已有的文件也需要入库
			if err := w.addTree(fsw, ev.Name, true); err != nil {
				logger.Warnw("Failed to watch new directory", "dir", ev.Name, "error", err.Error())
			}
			return
		}
		if w.accepts(ev.Name) {
			w.schedule(ev.Name)
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// schedule 防抖：窗口内重复事件只重置计时器。
// 计时器已触发但回调尚未取得锁时 Stop 返回 false，此时换上新的计时器，
// 旧回调发现自己已被替换后直接返回。
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d, ok := w.pending[path]; ok && d.timer.Stop() {
		d.timer.Reset(w.opts.Debounce)
		return
	}
	d := &debounce{}
	w.pending[path] = d
	d.timer = time.AfterFunc(w.opts.Debounce, func() { w.fire(path, d) })
}

// fire 计时器回调。
func (w *Watcher) fire(path string, d *debounce) {
	w.mu.Lock()
	if w.pending[path] != d {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()
	w.submit(path)
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d, ok := w.pending[path]; ok {
		d.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) submit(path string) {
	w.mu.Lock()
	select {
	case <-w.done:
		w.mu.Unlock()
		return
	default:
	}
	w.running.Add(1)
	w.mu.Unlock()

	err := w.pool.Submit(func() {
		defer w.running.Done()
		if w.ctx.Err() != nil {
			return
		}
		if err := w.ingestFile(w.ctx, path); err != nil {
			logger.Warnw("Auto ingest failed", "path", path, "error", err.Error())
		}
	})
	if err != nil {
		w.running.Done()
		logger.Warnw("Auto ingest rejected", "path", path, "error", err.Error())
	}
}

// ingestFile 读取文件并以相对于监听目录的路径作为来源入库。
func (w *Watcher) ingestFile(ctx context.Context, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return nil
	}

	source, err := filepath.Rel(w.opts.Dir, path)
	if err != nil {
		source = filepath.Base(path)
	}
	res, err := w.ingester.Ingest(ctx, biz.Record{
		Content:   string(content),
		SourceURI: filepath.ToSlash(source),
		Scope:     w.opts.Scope,
		OwnerID:   w.opts.Owner,
	})
	if err != nil {
		return err
	}
	logger.Infow("Auto ingested file",
		"path", path,
		"document_id", res.DocumentID,
		"chunks", res.Chunks,
		"duplicate", res.Duplicate,
	)
	return nil
}
