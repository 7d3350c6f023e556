//go:build js && wasm

package main

import (
	"context"
	"sync"

	"tractor.dev/toolkit-go/duplex/rpc"
	"tractor.dev/toolkit-go/duplex/talk"

	"tractor.dev/sandbundle"
	"tractor.dev/sandbundle/installer"
	"tractor.dev/sandbundle/pkgcache"
	"tractor.dev/sandbundle/workerpool"
)

// initArgs configures a new Kernel: the esbuild version to fetch engine
// artifacts for, and the worker pool's concurrency bounds.
type initArgs struct {
	EsbuildVersion string
	MinConcurrency int
	MaxConcurrency int
}

type npmInstallArgs struct {
	RegistryBaseURL string
	Cwd             string
	RawFiles        map[string]string
	Overrides       map[string]string
}

type bundleArgs struct {
	EngineOptions map[string]any
	RawFiles      map[string]string
}

type transformArgs struct {
	Source  string
	Loader  string
	Options map[string]any
}

type reloadArgs struct {
	EsbuildVersion string
}

// setupAPI registers the RPC surface a page's JS main thread drives,
// holding the active Kernel behind a mutex since Init/Reload replace it.
func setupAPI(peer *talk.Peer) {
	var mu sync.Mutex
	var k *sandbundle.Kernel

	peer.Handle("Init", rpc.HandlerFunc(func(r rpc.Responder, c *rpc.Call) {
		var args initArgs
		c.Receive(&args)

		kernel, err := sandbundle.Init(sandbundle.InitOptions{
			EsbuildVersion:      args.EsbuildVersion,
			MinConcurrency:      args.MinConcurrency,
			MaxConcurrency:      args.MaxConcurrency,
			HardwareConcurrency: args.MaxConcurrency,
			NewEngine:           workerpool.NewWASMEngineFactory(args.EsbuildVersion),
			NewPersistentStore:  func() pkgcache.Store { return pkgcache.NewIndexedDB() },
		})
		if err != nil {
			r.Return(err)
			return
		}

		mu.Lock()
		k = kernel
		mu.Unlock()
		r.Return(nil)
	}))

	peer.Handle("NpmInstall", rpc.HandlerFunc(func(r rpc.Responder, c *rpc.Call) {
		var args npmInstallArgs
		c.Receive(&args)

		mu.Lock()
		kernel := k
		mu.Unlock()
		if kernel == nil {
			r.Return(errUninitialized)
			return
		}

		err := kernel.NpmInstall(context.Background(), sandbundle.NpmInstallOptions{
			RegistryBaseURL: args.RegistryBaseURL,
			Cwd:             args.Cwd,
			RawFiles:        args.RawFiles,
			Overrides:       installer.Deps(args.Overrides),
		})
		r.Return(err)
	}))

	peer.Handle("Bundle", rpc.HandlerFunc(func(r rpc.Responder, c *rpc.Call) {
		var args bundleArgs
		c.Receive(&args)

		mu.Lock()
		kernel := k
		mu.Unlock()
		if kernel == nil {
			r.Return(errUninitialized)
			return
		}

		result, err := kernel.Bundle(context.Background(), sandbundle.BundleOptions{
			EngineOptions: args.EngineOptions,
			RawFiles:      args.RawFiles,
		})
		if err != nil {
			r.Return(err)
			return
		}
		r.Return(result)
	}))

	peer.Handle("Transform", rpc.HandlerFunc(func(r rpc.Responder, c *rpc.Call) {
		var args transformArgs
		c.Receive(&args)

		mu.Lock()
		kernel := k
		mu.Unlock()
		if kernel == nil {
			r.Return(errUninitialized)
			return
		}

		result, err := kernel.Transform(context.Background(), args.Source, args.Loader, args.Options)
		if err != nil {
			r.Return(err)
			return
		}
		r.Return(result)
	}))

	peer.Handle("Reload", rpc.HandlerFunc(func(r rpc.Responder, c *rpc.Call) {
		var args reloadArgs
		c.Receive(&args)

		mu.Lock()
		kernel := k
		mu.Unlock()
		if kernel == nil {
			r.Return(errUninitialized)
			return
		}

		kernel.Reload(args.EsbuildVersion, workerpool.NewWASMEngineFactory(args.EsbuildVersion))
		r.Return(nil)
	}))
}

type apiError string

func (e apiError) Error() string { return string(e) }

const errUninitialized = apiError("sandbundle-wasm: Init has not been called yet")
