package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/setanarut/quant"
)

// pathLocker provides per-path mutual exclusion so two bursts on the
// same source never write one output concurrently. Entries are never
// removed: every contender for a path must meet the same mutex, and the
// map stays bounded by the set of output paths the daemon touches.
type pathLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocker() *pathLocker {
	return &pathLocker{locks: make(map[string]*sync.Mutex)}
}

func (pl *pathLocker) Lock(path string) {
	pl.mu.Lock()
	l, ok := pl.locks[path]
	if !ok {
		l = &sync.Mutex{}
		pl.locks[path] = l
	}
	pl.mu.Unlock()
	l.Lock()
}

func (pl *pathLocker) Unlock(path string) {
	pl.mu.Lock()
	l, ok := pl.locks[path]
	pl.mu.Unlock()
	if ok {
		l.Unlock()
	}
}

// debouncer coalesces rapid event bursts into a single callback per
// file. After stop returns, no callback is running and none will fire.
type debouncer struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	fires   sync.WaitGroup
	delay   time.Duration
	onFire  func(path string)
}

func newDebouncer(delay time.Duration, onFire func(path string)) *debouncer {
	return &debouncer{
		timers: make(map[string]*time.Timer),
		delay:  delay,
		onFire: onFire,
	}
}

func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() { d.fire(path) })
}

func (d *debouncer) fire(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	d.fires.Add(1)
	d.mu.Unlock()

	d.onFire(path)
	d.fires.Done()
}

func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
	d.mu.Unlock()
	d.fires.Wait()
}

// runWatch quantizes everything under the input path once, then keeps
// going as files are created or rewritten, until SIGINT/SIGTERM.
func runWatch(o *options, mode quant.Mode, dirMode bool) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if dirMode {
		if err := watchRecursive(w, o.input); err != nil {
			return fmt.Errorf("watching %s: %w", o.input, err)
		}
	} else {
		// Watch the parent so atomic replaces of the file are seen.
		if err := w.Add(filepath.Dir(o.input)); err != nil {
			return fmt.Errorf("watching %s: %w", o.input, err)
		}
	}
	fmt.Printf("Watching: %s\n", o.input)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	outLock := newPathLocker()
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup

	db := newDebouncer(o.debounce, func(path string) {
		if ctx.Err() != nil {
			return
		}
		out, ok := o.watchTarget(path, dirMode)
		if !ok {
			return
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() { <-sem; wg.Done() }()
			outLock.Lock(out)
			defer outLock.Unlock(out)
			start := time.Now()
			if err := processFile(ctx, o, path, out, mode, false); err != nil {
				fmt.Fprintf(os.Stderr, "Error quantizing '%s': %v\n", path, err)
				return
			}
			fmt.Printf("Quantized '%s' -> '%s' (%.2fs)\n",
				filepath.Base(path), filepath.Base(out), time.Since(start).Seconds())
		}()
	})

	initialScan(o, db, dirMode)

	fmt.Println("Ready. Waiting for file changes...")
	eventLoop(ctx, w, db, dirMode)

	// Every wg.Add happens inside a debouncer fire, so the wait below
	// is safe once the debouncer has stopped.
	db.stop()
	fmt.Println("Waiting for in-flight work...")
	wg.Wait()
	return nil
}

// watchTarget decides whether path should be quantized and where the
// output goes. The daemon's own artifacts never qualify: quantizer
// outputs are excluded by their name marker and the swatch file by
// path, so the watcher cannot feed on its own results.
func (o *options) watchTarget(path string, dirMode bool) (string, bool) {
	if !quantizable(path) {
		return "", false
	}
	if o.swatch != "" && samePath(path, o.swatch) {
		return "", false
	}
	if !dirMode && !samePath(path, o.input) {
		return "", false
	}
	return o.outputFor(path, dirMode), true
}

// samePath reports whether a and b name the same file once both are
// absolute. Unresolvable paths never match.
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func watchRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// initialScan feeds the files already under the watch root through the
// debouncer so a fresh daemon starts from a quantized state.
func initialScan(o *options, db *debouncer, dirMode bool) {
	if !dirMode {
		db.trigger(o.input)
		return
	}
	filepath.WalkDir(o.input, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		db.trigger(path)
		return nil
	})
}

func eventLoop(ctx context.Context, w *fsnotify.Watcher, db *debouncer, dirMode bool) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) && dirMode {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					watchRecursive(w, ev.Name)
					continue
				}
			}
			// Atomic file replacement: verify the renamed path still
			// exists and re-add the parent for inode tracking.
			if ev.Has(fsnotify.Rename) {
				if _, err := os.Stat(ev.Name); err != nil {
					continue
				}
				w.Add(filepath.Dir(ev.Name))
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				db.trigger(ev.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
		}
	}
}
