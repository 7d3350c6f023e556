//go:build js && wasm

package previewsw

import (
	"syscall/js"

	"tractor.dev/sandbundle/web/jsutil"
)

// BrowserCache implements Cache against the real Cache Storage API, so a
// service worker can survive termination between navigations without
// losing uploaded build output. Synthetic same-origin URLs key each
// entry: cacheName becomes a cache instance, path becomes the request
// URL under a fixed virtual origin.
type BrowserCache struct {
	origin string
}

// NewBrowserCache returns a Cache backed by the browser's caches object.
// origin is the virtual scheme+host entries are stored under, e.g.
// "https://sandbundle.invalid".
func NewBrowserCache(origin string) *BrowserCache {
	return &BrowserCache{origin: origin}
}

func caches() js.Value {
	return jsutil.Get("caches")
}

func (c *BrowserCache) entryURL(cacheName, path string) string {
	return c.origin + "/" + cacheName + "/" + path
}

func (c *BrowserCache) Get(cacheName, path string) (File, bool) {
	cache, err := jsutil.AwaitErr(caches().Call("open", cacheName))
	if err != nil {
		return File{}, false
	}
	response, err := jsutil.AwaitErr(cache.Call("match", c.entryURL(cacheName, path)))
	if err != nil || response.IsUndefined() || response.IsNull() {
		return File{}, false
	}

	buf, err := jsutil.AwaitErr(response.Call("arrayBuffer"))
	if err != nil {
		return File{}, false
	}
	array := js.Global().Get("Uint8Array").New(buf)
	body := make([]byte, array.Length())
	js.CopyBytesToGo(body, array)

	headers := map[string]string{}
	entries := response.Get("headers").Call("entries")
	jsutil.AsyncIter(entries, func(pair js.Value) error {
		headers[pair.Index(0).String()] = pair.Index(1).String()
		return nil
	})

	return File{Body: body, Headers: headers}, true
}

func (c *BrowserCache) Put(cacheName, path string, f File) {
	cache, err := jsutil.AwaitErr(caches().Call("open", cacheName))
	if err != nil {
		return
	}

	buf := js.Global().Get("Uint8Array").New(len(f.Body))
	js.CopyBytesToJS(buf, f.Body)

	jsHeaders := js.Global().Get("Headers").New()
	for k, v := range f.Headers {
		jsHeaders.Call("set", k, v)
	}

	responseInit := js.Global().Get("Object").New()
	responseInit.Set("headers", jsHeaders)
	response := js.Global().Get("Response").New(buf, responseInit)

	jsutil.AwaitErr(cache.Call("put", c.entryURL(cacheName, path), response))
}

func (c *BrowserCache) Clear(cacheName string) {
	jsutil.AwaitErr(caches().Call("delete", cacheName))
}
