package main

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPathLocker(t *testing.T) {
	t.Parallel()

	t.Run("Should serialize a chain of contenders on one path", func(t *testing.T) {
		t.Parallel()
		pl := newPathLocker()
		const path = "photo_quantized_16.png"

		var (
			inside  atomic.Int32
			overlap atomic.Bool
			wg      sync.WaitGroup
		)
		enter := func(hold time.Duration) {
			defer wg.Done()
			pl.Lock(path)
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(hold)
			inside.Add(-1)
			pl.Unlock(path)
		}

		// First holder, a contender blocked behind it, then a third
		// that arrives only after the first unlock. All three must
		// meet the same mutex.
		pl.Lock(path)
		wg.Add(1)
		go enter(30 * time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		pl.Unlock(path)
		wg.Add(1)
		go enter(0)
		wg.Wait()

		if overlap.Load() {
			t.Fatalf("expected exclusive access per path, but two goroutines were inside at once")
		}
	})

	t.Run("Should not serialize distinct paths", func(t *testing.T) {
		t.Parallel()
		pl := newPathLocker()

		pl.Lock("a_quantized_16.png")
		done := make(chan struct{})
		go func() {
			pl.Lock("b_quantized_16.png")
			pl.Unlock("b_quantized_16.png")
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("expected the second path to be free while the first is held")
		}
		pl.Unlock("a_quantized_16.png")
	})
}

func TestDebouncer(t *testing.T) {
	t.Parallel()

	t.Run("Should coalesce a burst into one fire", func(t *testing.T) {
		t.Parallel()
		var fired atomic.Int32
		db := newDebouncer(100*time.Millisecond, func(string) { fired.Add(1) })

		for range 5 {
			db.trigger("a.png")
		}
		time.Sleep(400 * time.Millisecond)
		db.stop()

		if got := fired.Load(); got != 1 {
			t.Fatalf("expected 1 fire, but got %d", got)
		}
	})

	t.Run("Should fire once per path", func(t *testing.T) {
		t.Parallel()
		var fired atomic.Int32
		db := newDebouncer(10*time.Millisecond, func(string) { fired.Add(1) })

		db.trigger("a.png")
		db.trigger("b.png")
		time.Sleep(100 * time.Millisecond)
		db.stop()

		if got := fired.Load(); got != 2 {
			t.Fatalf("expected 2 fires, but got %d", got)
		}
	})

	t.Run("Should never fire after stop", func(t *testing.T) {
		t.Parallel()
		var fired atomic.Int32
		db := newDebouncer(100*time.Millisecond, func(string) { fired.Add(1) })

		db.trigger("a.png")
		db.stop()
		db.trigger("b.png")
		time.Sleep(300 * time.Millisecond)

		if got := fired.Load(); got != 0 {
			t.Fatalf("expected no fires after stop, but got %d", got)
		}
	})

	t.Run("Should wait for an in-flight callback on stop", func(t *testing.T) {
		t.Parallel()
		entered := make(chan struct{})
		release := make(chan struct{})
		var finished atomic.Bool
		db := newDebouncer(time.Millisecond, func(string) {
			close(entered)
			<-release
			finished.Store(true)
		})

		db.trigger("a.png")
		<-entered

		stopped := make(chan struct{})
		go func() {
			db.stop()
			close(stopped)
		}()
		select {
		case <-stopped:
			t.Fatalf("expected stop to wait for the running callback")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		<-stopped
		if !finished.Load() {
			t.Fatalf("expected the callback to finish before stop returned")
		}
	})
}

func TestWatchTarget(t *testing.T) {
	t.Parallel()

	t.Run("Should accept a fresh image in directory mode", func(t *testing.T) {
		t.Parallel()
		o := &options{input: "in", count: 16}

		out, ok := o.watchTarget(filepath.Join("in", "sub", "a.png"), true)

		if !ok {
			t.Fatalf("expected the image to be accepted")
		}
		expected := filepath.Join("in", "sub", "a_quantized_16.png")
		if out != expected {
			t.Fatalf("expected %q, but got %q", expected, out)
		}
	})

	t.Run("Should reject quantizer outputs", func(t *testing.T) {
		t.Parallel()
		o := &options{input: "in", count: 16}

		if _, ok := o.watchTarget(filepath.Join("in", "a_quantized_16.png"), true); ok {
			t.Fatalf("expected the quantized output to be rejected")
		}
	})

	t.Run("Should reject the daemon's own swatch file", func(t *testing.T) {
		t.Parallel()
		o := &options{input: "in", count: 16, swatch: filepath.Join("in", "swatch.png")}

		if _, ok := o.watchTarget(filepath.Join("in", "swatch.png"), true); ok {
			t.Fatalf("expected the swatch output to be rejected")
		}
	})

	t.Run("Should match the swatch against a differently spelled path", func(t *testing.T) {
		t.Parallel()
		abs, err := filepath.Abs(filepath.Join("in", "swatch.png"))
		if err != nil {
			t.Fatalf("expected an absolute path, but got error %v", err)
		}
		o := &options{input: "in", count: 16, swatch: abs}

		if _, ok := o.watchTarget(filepath.Join("in", "swatch.png"), true); ok {
			t.Fatalf("expected the swatch output to be rejected")
		}
	})

	t.Run("Should accept only the watched file in single-file mode", func(t *testing.T) {
		t.Parallel()
		o := &options{input: filepath.Join("in", "a.png"), count: 16}

		if _, ok := o.watchTarget(filepath.Join("in", "b.png"), false); ok {
			t.Fatalf("expected a sibling file to be rejected")
		}
		out, ok := o.watchTarget(filepath.Join("in", "a.png"), false)
		if !ok {
			t.Fatalf("expected the watched file to be accepted")
		}
		if expected := filepath.Join("in", "a_quantized_16.png"); out != expected {
			t.Fatalf("expected %q, but got %q", expected, out)
		}
	})

	t.Run("Should reject undecodable files", func(t *testing.T) {
		t.Parallel()
		o := &options{input: "in", count: 16}

		if _, ok := o.watchTarget(filepath.Join("in", "notes.txt"), true); ok {
			t.Fatalf("expected a text file to be rejected")
		}
	})
}
