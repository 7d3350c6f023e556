//go:build js && wasm

package jsutil

import (
	"syscall/js"
)

func LoadStylesheet(url string) {
	doc := js.Global().Get("document")
	link := doc.Call("createElement", "link")
	link.Set("href", url)
	link.Set("rel", "stylesheet")
	link.Set("type", "text/css")
	doc.Get("head").Call("appendChild", link)
}

// LoadInlineScript evaluates script text directly by appending a <script>
// element with its textContent set, the same append-to-head idiom
// LoadScript uses for a src URL. Used for embedded drivers such as the
// package cache's IndexedDB wrapper, where the source is compiled into
// the Go binary rather than fetched from a URL.
func LoadInlineScript(src string) {
	doc := js.Global().Get("document")
	script := doc.Call("createElement", "script")
	script.Set("textContent", src)
	doc.Get("head").Call("appendChild", script)
}

func LoadScript(url string, module bool) js.Value {
	promise := js.Global().Get("Promise").New(js.FuncOf(func(this js.Value, args []js.Value) any {
		resolve := args[0]
		reject := args[1]

		doc := js.Global().Get("document")
		script := doc.Call("createElement", "script")
		script.Set("src", url)
		if module {
			script.Set("type", "module")
		}
		script.Set("onload", resolve)
		script.Set("onerror", js.FuncOf(func(this js.Value, args []js.Value) any {
			err := js.Global().Get("Error").New("Failed to load script: " + url)
			reject.Invoke(err)
			return nil
		}))
		doc.Get("head").Call("appendChild", script)
		return nil
	}))
	return promise
}
