package workerpool

import "time"

// Engine is the pluggable bundler/transformer binding each worker drives.
// The module does not implement a bundler itself; tests substitute a fake
// Engine, and the real implementation is the WASM artifact fetched by the
// js&&wasm edge (jsbridge.go).
type Engine interface {
	Transform(req TransformRequest) (TransformResult, error)
	Build(req BuildRequest) (BuildResult, error)
}

// TransformRequest compiles a single source text with options.
type TransformRequest struct {
	Source  string
	Loader  string
	Options map[string]any
}

// TransformResult is a single compiled source text plus its source map
// and any diagnostics.
type TransformResult struct {
	Code          string
	Map           string
	MangleCache   map[string]any
	LegalComments string
	Stderr        string
	Duration      time.Duration
}

// BuildRequest bundles a project from a provided path->text snapshot.
type BuildRequest struct {
	Snapshot map[string]string
	Options  map[string]any
}

// BuildResult is a completed multi-file build; OutputFiles has the
// outdir prefix already stripped from each path.
type BuildResult struct {
	OutputFiles map[string]string
	Metafile    string
	MangleCache map[string]any
	Duration    time.Duration
	Stderr      string
}
