package workerpool

import (
	"fmt"
	"strings"
	"time"

	"tractor.dev/sandbundle/vfs"
)

// outdir is the fixed output directory every build request is given,
// regardless of what the caller's own options specify, so the result's
// OutputFiles keys can be normalised back to project-relative paths.
const outdir = "/dist/"

// Worker is a single in-process executor: a goroutine with exclusive
// ownership of an Engine handle and a worker-local FS snapshot, reading
// tasks off its own inbox. This stands in for a browser Web Worker; see
// jsbridge.go for the real thing under js&&wasm.
type Worker struct {
	id     string
	engine Engine
	fsys   *vfs.FS
	pool   *Pool
	inbox  chan *Task
}

func newWorker(id string, engine Engine, pool *Pool) *Worker {
	return &Worker{
		id:     id,
		engine: engine,
		fsys:   vfs.New(),
		pool:   pool,
		inbox:  make(chan *Task, 1),
	}
}

func (w *Worker) run() {
	for task := range w.inbox {
		result := w.process(task)
		w.pool.complete(w, task.ID, result)
	}
}

func (w *Worker) process(task *Task) Result {
	switch task.Request.Kind {
	case KindTransform:
		return w.handleTransform(task.Request.Transform)
	case KindBuild:
		return w.handleBuild(task.Request.Build)
	case KindNpmInstall:
		return w.handleNpmInstall(task)
	default:
		return Result{Err: fmt.Errorf("workerpool: unknown request kind %q", task.Request.Kind)}
	}
}

func (w *Worker) handleTransform(req *TransformRequest) Result {
	if req == nil {
		return Result{Err: fmt.Errorf("workerpool: transform request missing payload")}
	}
	w.fsys.Reset(nil)

	start := time.Now()
	result, err := w.engine.Transform(*req)
	result.Duration = time.Since(start)
	if err != nil {
		formatted := formatEngineDiagnostics(err)
		result.Stderr = mergeStderr(formatted, result.Stderr)
		return Result{Value: result, Err: nil}
	}
	return Result{Value: result}
}

func (w *Worker) handleBuild(req *BuildRequest) Result {
	if req == nil {
		return Result{Err: fmt.Errorf("workerpool: build request missing payload")}
	}
	w.fsys.Reset(req.Snapshot)

	options := make(map[string]any, len(req.Options)+1)
	for k, v := range req.Options {
		options[k] = v
	}
	options["outdir"] = outdir

	start := time.Now()
	result, err := w.engine.Build(BuildRequest{Snapshot: req.Snapshot, Options: options})
	result.Duration = time.Since(start)
	if err != nil {
		formatted := formatEngineDiagnostics(err)
		result.Stderr = mergeStderr(formatted, result.Stderr)
		return Result{Value: result, Err: nil}
	}
	result.OutputFiles = stripOutdir(result.OutputFiles)
	return Result{Value: result}
}

// stripOutdir removes the fixed outdir prefix from every output path, so
// callers see project-relative paths regardless of the engine's own
// output-directory convention.
func stripOutdir(files map[string]string) map[string]string {
	if len(files) == 0 {
		return files
	}
	out := make(map[string]string, len(files))
	for p, contents := range files {
		out[strings.TrimPrefix(p, outdir)] = contents
	}
	return out
}

func (w *Worker) handleNpmInstall(task *Task) Result {
	req := task.Request.NpmInstall
	if req == nil {
		return Result{Err: fmt.Errorf("workerpool: npm_install request missing payload")}
	}
	w.fsys.Reset(req.Snapshot)

	installed, err := runNpmInstall(w.fsys, req, func(kind, message string) {
		task.Progress(map[string]string{"kind": kind, "message": message})
	})
	if err != nil {
		return Result{Err: err}
	}
	return Result{Value: NpmInstallResult{RawFiles: installed}}
}

// formatEngineDiagnostics turns an engine-level error into the formatted
// diagnostic lines mergeStderr expects to de-duplicate against raw
// stderr. Errors that do not implement diagnosticLister fall back to a
// single line holding err.Error().
func formatEngineDiagnostics(err error) []string {
	if lister, ok := err.(diagnosticLister); ok {
		return lister.Diagnostics()
	}
	return []string{err.Error()}
}

// diagnosticLister is implemented by Engine errors that carry structured
// warnings/errors arrays, so the worker can format them individually
// before merging into stderr.
type diagnosticLister interface {
	Diagnostics() []string
}
