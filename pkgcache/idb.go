//go:build js && wasm

package pkgcache

import (
	"context"
	_ "embed"
	"syscall/js"

	"tractor.dev/sandbundle/web/jsutil"
)

//go:embed idb.js
var idbJS []byte

func loadDriver() {
	if !js.Global().Get("PKGCACHEDB").IsUndefined() {
		return
	}
	jsutil.LoadInlineScript(string(idbJS))
}

// IndexedDB is the browser-backed persistent Store, wrapping an embedded
// JS driver script behind a small js.Value-holding Go struct that reads
// and writes the dependency cache's object store.
type IndexedDB struct{}

// NewIndexedDB loads the embedded driver script (once per page) and
// returns a Store backed by it.
func NewIndexedDB() *IndexedDB {
	loadDriver()
	return &IndexedDB{}
}

var _ Store = (*IndexedDB)(nil)

func (db *IndexedDB) Get(_ context.Context, req string) (Entry, bool, error) {
	v, err := jsutil.AwaitErr(js.Global().Get("PKGCACHEDB").Call("get", req))
	if err != nil {
		return Entry{}, false, err
	}
	if v.IsNull() || v.IsUndefined() {
		return Entry{}, false, nil
	}
	data := v.Get("data")
	buf := make([]byte, data.Get("length").Int())
	js.CopyBytesToGo(buf, data)
	return Entry{Request: req, Data: buf}, true, nil
}

func (db *IndexedDB) Put(_ context.Context, entry Entry) error {
	jsBuf := js.Global().Get("Uint8Array").New(len(entry.Data))
	js.CopyBytesToJS(jsBuf, entry.Data)
	_, err := jsutil.AwaitErr(js.Global().Get("PKGCACHEDB").Call("put", entry.Request, jsBuf))
	return err
}

func (db *IndexedDB) IsCached(ctx context.Context, req string) (bool, error) {
	entry, ok, err := db.Get(ctx, req)
	if err != nil {
		return false, err
	}
	return ok && len(entry.Data) > 0, nil
}
