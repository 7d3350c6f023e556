//go:build js && wasm

// The js&&wasm edge. It fetches the worker bootstrap script, the
// engine's JS host, and the engine's WASM binary in parallel from a CDN
// (with one fallback CDN), concatenates them into a same-origin blob
// URL, and instantiates real Web Workers via syscall/js, routing
// [id, status, payload] frames onto the same Pool abstraction the
// portable core uses.
package workerpool

import (
	"encoding/json"
	"fmt"
	"syscall/js"
	"time"

	"tractor.dev/sandbundle/web/jsutil"
)

const (
	jsdelivrBase = "https://cdn.jsdelivr.net/npm/"
	unpkgBase    = "https://unpkg.com/"
	fetchTimeout = 5 * time.Second
)

// fetchCDNAsset fetches subpath from jsdelivr, falling back to unpkg on a
// non-OK response or a thrown/aborted request. No further retries beyond
// the single fallback.
func fetchCDNAsset(subpath string) ([]byte, error) {
	if data, err := fetchOnce(jsdelivrBase + subpath); err == nil {
		return data, nil
	}
	return fetchOnce(unpkgBase + subpath)
}

func fetchOnce(url string) ([]byte, error) {
	controller := js.Global().Get("AbortController").New()
	signal := controller.Get("signal")
	timer := js.Global().Call("setTimeout", js.FuncOf(func(this js.Value, args []js.Value) any {
		controller.Call("abort")
		return nil
	}), fetchTimeout.Milliseconds())
	defer js.Global().Call("clearTimeout", timer)

	resp, err := jsutil.AwaitErr(js.Global().Call("fetch", url, map[string]any{"signal": signal}))
	if err != nil {
		return nil, fmt.Errorf("jsbridge: fetch %s: %w", url, err)
	}
	if !resp.Get("ok").Bool() {
		return nil, fmt.Errorf("jsbridge: fetch %s: status %d", url, resp.Get("status").Int())
	}

	buf, err := jsutil.AwaitErr(resp.Call("arrayBuffer"))
	if err != nil {
		return nil, fmt.Errorf("jsbridge: read body of %s: %w", url, err)
	}
	data := make([]byte, buf.Get("byteLength").Int())
	js.CopyBytesToGo(data, js.Global().Get("Uint8Array").New(buf))
	return data, nil
}

// buildWorkerBlobURL concatenates engineJs + "\nvar polywasm=1;\n" +
// workerBootstrapJs (the bootstrap's own source-map comment stripped)
// and wraps the result as a same-origin blob URL, so a Worker can be
// constructed without a same-origin restriction on the CDN's own URL.
func buildWorkerBlobURL(engineJs, workerBootstrapJs string) string {
	bootstrap := stripSourceMapComment(workerBootstrapJs)
	src := engineJs + "\nvar polywasm=1;\n" + bootstrap
	blob := js.Global().Get("Blob").New(
		js.ValueOf([]any{src}),
		js.ValueOf(map[string]any{"type": "text/javascript"}),
	)
	return js.Global().Get("URL").Call("createObjectURL", blob).String()
}

func stripSourceMapComment(src string) string {
	const marker = "//# sourceMappingURL="
	idx := indexOf(src, marker)
	if idx < 0 {
		return src
	}
	end := idx
	for end < len(src) && src[end] != '\n' {
		end++
	}
	return src[:idx] + src[end:]
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

// jsWorker wraps a single real Web Worker instance, satisfying the
// correlated [id, status, payload] protocol over postMessage.
type jsWorker struct {
	value js.Value
}

func newJSWorker(blobURL string, wasmBytes []byte, version string) (*jsWorker, error) {
	value := js.Global().Get("Worker").New(blobURL, map[string]any{"type": "module"})
	w := &jsWorker{value: value}

	setupDone := make(chan error, 1)
	handler := js.FuncOf(func(this js.Value, args []js.Value) any {
		msg := args[0].Get("data")
		if msg.Get("0").String() == "success" {
			setupDone <- nil
		} else {
			setupDone <- fmt.Errorf("jsbridge: worker setup failed: %s", msg.Get("1").String())
		}
		return nil
	})
	value.Call("addEventListener", "message", handler, map[string]any{"once": true})

	wasmBuf := js.Global().Get("Uint8Array").New(len(wasmBytes))
	js.CopyBytesToJS(wasmBuf, wasmBytes)
	value.Call("postMessage", js.ValueOf([]any{"setup", version, wasmBuf}))

	if err := <-setupDone; err != nil {
		return nil, err
	}
	return w, nil
}

// postRequest posts [id, request] and returns a channel that receives
// every [status, payload] frame addressed to id, terminal frames last.
func (w *jsWorker) postRequest(id string, request js.Value) <-chan frame {
	frames := make(chan frame, 8)
	var listener js.Func
	listener = js.FuncOf(func(this js.Value, args []js.Value) any {
		msg := args[0].Get("data")
		if msg.Get("0").String() != id {
			return nil
		}
		status := msg.Get("1").String()
		frames <- frame{status: status, payload: msg.Get("2")}
		if status == "resolve" || status == "reject" {
			w.value.Call("removeEventListener", "message", listener)
			close(frames)
		}
		return nil
	})
	w.value.Call("addEventListener", "message", listener)
	w.value.Call("postMessage", js.ValueOf([]any{id, request}))
	return frames
}

type frame struct {
	status  string
	payload js.Value
}

func (w *jsWorker) terminate() {
	w.value.Call("terminate")
}

// NewWASMEngineFactory builds an EngineFactory whose Engine handles are
// backed by real Web Workers set up against the given engine version,
// fetching the worker bootstrap, engine JS host, and engine WASM binary
// from the CDN in parallel. Each call allocates one jsWorker.
func NewWASMEngineFactory(version string) EngineFactory {
	return func() Engine {
		engine, err := newWASMEngine(version)
		if err != nil {
			return &brokenEngine{err: err}
		}
		return engine
	}
}

type wasmEngine struct {
	worker *jsWorker
}

func newWASMEngine(version string) (*wasmEngine, error) {
	type fetched struct {
		data []byte
		err  error
	}
	results := make([]fetched, 3)
	done := make(chan int, 3)
	paths := []string{
		"esbuild-wasm@" + version + "/lib/browser.min.js",
		"esbuild-wasm@" + version + "/esbuild.wasm",
		"sandbundle-worker-bootstrap@" + version + "/worker.js",
	}
	for i, p := range paths {
		i, p := i, p
		go func() {
			data, err := fetchCDNAsset(p)
			results[i] = fetched{data: data, err: err}
			done <- i
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	for _, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("jsbridge: engine artifact fetch: %w", r.err)
		}
	}

	engineJs := string(results[0].data)
	wasmBytes := results[1].data
	bootstrapJs := string(results[2].data)

	blobURL := buildWorkerBlobURL(engineJs, bootstrapJs)
	w, err := newJSWorker(blobURL, wasmBytes, version)
	if err != nil {
		return nil, err
	}
	return &wasmEngine{worker: w}, nil
}

// Transform and Build round-trip a request through the real Web Worker's
// [id, request] / [id, status, payload] protocol, marshalling Go structs
// to JSON and handing the parsed JS object across postMessage (structured
// clone handles plain objects directly; JSON is just the bridge from Go's
// typed struct to that object).
func (e *wasmEngine) Transform(req TransformRequest) (TransformResult, error) {
	var out TransformResult
	err := e.worker.call("transform", req, &out)
	return out, err
}

func (e *wasmEngine) Build(req BuildRequest) (BuildResult, error) {
	var out BuildResult
	err := e.worker.call("build", req, &out)
	return out, err
}

// call posts one request of the given kind to the worker and blocks
// until a terminal frame arrives, decoding its payload into out on
// resolve. Progress frames are not exposed here; this helper is only
// used for the synchronous jsbridge-internal Transform/Build contract,
// separate from Pool's own progress-forwarding Submit path.
func (w *jsWorker) call(kind string, req any, out any) error {
	payload, err := toJSValue(map[string]any{"kind": kind, "request": req})
	if err != nil {
		return err
	}

	id := newCorrelationID()
	for f := range w.postRequest(id, payload) {
		switch f.status {
		case "resolve":
			return fromJSValue(f.payload, out)
		case "reject":
			var reason string
			fromJSValue(f.payload, &reason)
			return fmt.Errorf("jsbridge: worker rejected %s: %s", kind, reason)
		}
	}
	return fmt.Errorf("jsbridge: worker closed without a terminal response for %s", kind)
}

// toJSValue marshals a Go value to JSON and parses it back as a JS value
// via the global JSON object, the simplest faithful bridge between Go
// structs and structured-clone-able JS objects without a reflection-based
// js.ValueOf of arbitrary structs.
func toJSValue(v any) (js.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return js.Undefined(), err
	}
	return js.Global().Get("JSON").Call("parse", string(data)), nil
}

func fromJSValue(v js.Value, out any) error {
	text := js.Global().Get("JSON").Call("stringify", v).String()
	return json.Unmarshal([]byte(text), out)
}

// brokenEngine reports its construction error from every call, so a
// pool-bootstrap failure surfaces through the normal Submit/promise path
// instead of panicking during NewPool.
type brokenEngine struct {
	err error
}

func (e *brokenEngine) Transform(TransformRequest) (TransformResult, error) {
	return TransformResult{}, e.err
}

func (e *brokenEngine) Build(BuildRequest) (BuildResult, error) {
	return BuildResult{}, e.err
}
