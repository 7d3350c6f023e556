//go:build js && wasm

// Real service worker glue: registers (or attaches to) the active service
// worker, relays UPLOAD_FILES/UPLOAD_COMPLETE messages from the main
// thread, and answers intercepted fetch events by running them through
// the portable Service.ServeHTTP via an httptest.ResponseRecorder bridge.
package previewsw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"syscall/js"

	"tractor.dev/sandbundle/web/jsutil"
)

// Worker owns the registered service worker registration and relays
// messages between the main thread and this Service.
type Worker struct {
	svc    *Service
	active js.Value
}

// Activate registers (or reuses) the active service worker at swPath and
// wires ch as the message channel used for both UPLOAD_FILES relay and
// fetch-event interception.
func Activate(ctx context.Context, svc *Service, ch js.Value, swPath string) *Worker {
	reg := jsutil.Await(jsutil.Get("navigator.serviceWorker").Call("getRegistration"))
	if reg.IsUndefined() {
		jsutil.Await(jsutil.Get("navigator.serviceWorker").Call("register", swPath, map[string]any{"type": "module"}))
		reg = jsutil.Await(jsutil.Get("navigator.serviceWorker.ready"))
	}

	w := &Worker{svc: svc, active: reg.Get("active")}
	ch.Get("port2").Set("onmessage", js.FuncOf(w.handleMessage))
	reg.Get("active").Call("postMessage", map[string]any{"listen": ch.Get("port1")}, []any{ch.Get("port1")})
	return w
}

// handleMessage dispatches UPLOAD_FILES control messages and intercepted
// fetch-event requests arriving over the same message channel.
func (w *Worker) handleMessage(this js.Value, args []js.Value) any {
	data := args[0].Get("data")

	if msgType := data.Get("type"); msgType.Truthy() && msgType.String() == "UPLOAD_FILES" {
		w.handleUploadFiles(data.Get("payload"))
		return nil
	}

	if data.Get("request").IsUndefined() {
		return nil
	}

	go w.handleFetchRequest(data)
	return nil
}

func (w *Worker) handleUploadFiles(payload js.Value) {
	projectID := payload.Get("projectId").String()
	jsFiles := payload.Get("files")

	files := make(map[string][]byte)
	keys := js.Global().Get("Object").Call("keys", jsFiles)
	for i := 0; i < keys.Length(); i++ {
		path := keys.Index(i).String()
		body := jsFiles.Get(path)
		buf := make([]byte, body.Get("length").Int())
		js.CopyBytesToGo(buf, body)
		files[path] = buf
	}

	w.svc.UploadFiles(projectID, files)

	w.active.Call("postMessage", map[string]any{
		"type":      "UPLOAD_COMPLETE",
		"projectId": projectID,
	})
}

func (w *Worker) handleFetchRequest(data js.Value) {
	jsReq := data.Get("request")
	jsResp := data.Get("responder")

	req, err := http.NewRequest(jsReq.Get("method").String(), jsReq.Get("url").String(), nil)
	if err != nil {
		jsResp.Call("postMessage", js.ValueOf(map[string]any{
			"status":     500,
			"statusText": "Gateway error",
			"body":       err.Error(),
		}))
		return
	}

	rw := httptest.NewRecorder()
	w.svc.ServeHTTP(rw, req)

	headers := make(map[string]any)
	for k, v := range rw.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	jsBuf := js.Global().Get("Uint8Array").New(rw.Body.Len())
	js.CopyBytesToJS(jsBuf, rw.Body.Bytes())

	jsResp.Call("postMessage", js.ValueOf(map[string]any{
		"status":     rw.Code,
		"statusText": http.StatusText(rw.Code),
		"body":       jsBuf,
		"headers":    headers,
	}))
}
