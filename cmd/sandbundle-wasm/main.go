//go:build js && wasm

// Command sandbundle-wasm is the browser main-thread entry point: it
// boots a sandbundle.Kernel and exposes Init/NpmInstall/Bundle/
// Transform/Reload as RPC methods over a duplex codec channel, the way
// the caller's main-thread JS drives any other in-page WASM binary.
package main

import (
	"log"
	"syscall/js"

	"tractor.dev/toolkit-go/duplex/codec"
	"tractor.dev/toolkit-go/duplex/mux"
	"tractor.dev/toolkit-go/duplex/talk"

	"tractor.dev/sandbundle/web/jsutil"
)

func main() {
	port := js.Global().Get("window").Get("sandbundlePort")
	if port.IsUndefined() || port.IsNull() {
		log.Fatal("sandbundle-wasm: window.sandbundlePort is not set")
	}

	wr := &jsutil.Writer{Value: port}
	rd := &jsutil.Reader{Value: port}
	sess, err := mux.DialIO(wr, rd)
	if err != nil {
		log.Fatal(err)
	}

	peer := talk.NewPeer(sess, codec.CBORCodec{})
	setupAPI(peer)
	peer.Respond()
}

