package workerpool

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeEngine blocks on Transform until release is closed, letting tests
// hold a task in flight to observe pool-width and reload behaviour.
type fakeEngine struct {
	release chan struct{}

	lastBuildOptions map[string]any
}

func (e *fakeEngine) Transform(req TransformRequest) (TransformResult, error) {
	if e.release != nil {
		<-e.release
	}
	return TransformResult{Code: "compiled:" + req.Source}, nil
}

func (e *fakeEngine) Build(req BuildRequest) (BuildResult, error) {
	e.lastBuildOptions = req.Options
	dir, _ := req.Options["outdir"].(string)
	return BuildResult{OutputFiles: map[string]string{dir + "main.js": "bundled"}}, nil
}

func newBlockingEngine() *fakeEngine {
	return &fakeEngine{release: make(chan struct{})}
}

func TestSubmitResolvesWithEngineOutput(t *testing.T) {
	pool := NewPool(2, func() Engine { return &fakeEngine{} })
	value, err := pool.Submit(context.Background(), Request{
		Kind:      KindTransform,
		Transform: &TransformRequest{Source: "let x = 1"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	result := value.(TransformResult)
	if result.Code != "compiled:let x = 1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSubmitBuildSetsOutdirAndStripsPrefix(t *testing.T) {
	engine := &fakeEngine{}
	pool := NewPool(1, func() Engine { return engine })

	value, err := pool.Submit(context.Background(), Request{
		Kind: KindBuild,
		Build: &BuildRequest{
			Snapshot: map[string]string{"index.js": "1"},
			Options:  map[string]any{"bundle": true},
		},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if engine.lastBuildOptions["outdir"] != "/dist/" {
		t.Fatalf("expected outdir forwarded to the engine, got %+v", engine.lastBuildOptions)
	}
	if engine.lastBuildOptions["bundle"] != true {
		t.Fatal("expected caller-supplied options preserved alongside outdir")
	}

	result := value.(BuildResult)
	if _, ok := result.OutputFiles["main.js"]; !ok {
		t.Fatalf("expected outdir prefix stripped from output path, got %+v", result.OutputFiles)
	}
	for p := range result.OutputFiles {
		if strings.HasPrefix(p, "/dist/") {
			t.Fatalf("output path still carries the outdir prefix: %q", p)
		}
	}
}

func TestPoolWidthBoundsInFlightTasks(t *testing.T) {
	const size = 2
	engine := newBlockingEngine()
	pool := NewPool(size, func() Engine { return engine })

	var wg sync.WaitGroup
	for i := 0; i < size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Submit(context.Background(), Request{
				Kind:      KindTransform,
				Transform: &TransformRequest{Source: "x"},
			}, nil)
		}()
	}

	deadline := time.After(time.Second)
	for {
		if pool.InFlight() == size {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for pool to saturate")
		case <-time.After(time.Millisecond):
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := pool.Submit(ctx, Request{Kind: KindTransform, Transform: &TransformRequest{Source: "y"}}, nil)
	if err == nil {
		t.Fatal("expected submit beyond pool width to block until timeout")
	}

	close(engine.release)
	wg.Wait()
}

func TestReloadRejectsPendingWithReloadReason(t *testing.T) {
	engine := newBlockingEngine()
	manager := NewManager(2, 2, 5, func() Engine { return engine })

	resultCh := make(chan error, 1)
	go func() {
		_, err := manager.Submit(context.Background(), Request{
			Kind:      KindTransform,
			Transform: &TransformRequest{Source: "never finishes"},
		}, nil)
		resultCh <- err
	}()

	// Give the submit a moment to register before reloading.
	time.Sleep(10 * time.Millisecond)
	manager.Reload(2, func() Engine { return &fakeEngine{} })

	select {
	case err := <-resultCh:
		if !errors.Is(err, ErrReload) {
			t.Fatalf("expected ErrReload, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending task was not rejected on reload")
	}
	close(engine.release)

	value, err := manager.Submit(context.Background(), Request{
		Kind:      KindTransform,
		Transform: &TransformRequest{Source: "after reload"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if value.(TransformResult).Code != "compiled:after reload" {
		t.Fatalf("unexpected post-reload result: %+v", value)
	}
}

func TestRejectAndShutdownSettlePendingWithReloadReason(t *testing.T) {
	engine := newBlockingEngine()
	pool := NewPool(1, func() Engine { return engine })

	resultCh := make(chan Result, 1)
	go func() {
		v, err := pool.Submit(context.Background(), Request{
			Kind:      KindTransform,
			Transform: &TransformRequest{Source: "x"},
		}, nil)
		resultCh <- Result{Value: v, Err: err}
	}()

	time.Sleep(10 * time.Millisecond)
	pool.reject(ErrReload)
	pool.shutdown()

	select {
	case r := <-resultCh:
		if !errors.Is(r.Err, ErrReload) {
			t.Fatalf("expected reload rejection, got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("task was never settled")
	}

	close(engine.release)
}

var ansiRe = regexp.MustCompile("\x1b\\[[0-9;]*m")

func TestMergeStderrDeduplicatesIgnoringANSI(t *testing.T) {
	raw := "plain error at line 3\nsome other native line"
	formatted := []string{"\x1b[31mplain error at line 3\x1b[0m", "a brand new formatted line"}

	merged := mergeStderr(formatted, raw)
	if ansiRe.MatchString(merged) == false && merged == "" {
		t.Fatal("merged stderr unexpectedly empty")
	}
	if occurrences := countOccurrences(merged, "plain error at line 3"); occurrences != 1 {
		t.Fatalf("expected deduplicated line to appear once, appeared %d times in %q", occurrences, merged)
	}
	if countOccurrences(merged, "a brand new formatted line") != 1 {
		t.Fatalf("expected new formatted line to be prepended: %q", merged)
	}
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
		}
	}
	return count
}
