// Package sandbundle exposes the public façade for the in-browser
// bundler: worker pool initialisation, dependency installation, and
// bundling/transforming source through a WASM engine, wiring together the
// vfs, pkgcache, installer, workerpool, and previewsw subsystems. This is
// glue: a small struct wiring the subsystems together and exposing a
// handful of entry points while the subsystems themselves do the work.
package sandbundle

import (
	"context"
	"fmt"

	"tractor.dev/sandbundle/installer"
	"tractor.dev/sandbundle/pkgcache"
	"tractor.dev/sandbundle/previewsw"
	"tractor.dev/sandbundle/vfs"
	"tractor.dev/sandbundle/workerpool"
)

// DefaultBundlerOptions returns the engine options a Bundle call uses
// when the caller does not override them.
func DefaultBundlerOptions() map[string]any {
	return map[string]any{
		"target":    "chrome67",
		"format":    "esm",
		"splitting": true,
		"bundle":    true,
		"sourcemap": true,
		"minify":    false,
		"loader":    defaultLoaderMap(),
	}
}

func defaultLoaderMap() map[string]string {
	return map[string]string{
		".js":   "js",
		".jsx":  "jsx",
		".ts":   "ts",
		".tsx":  "tsx",
		".css":  "css",
		".json": "json",
		".svg":  "text",
		".png":  "dataurl",
		".jpg":  "dataurl",
		".jpeg": "dataurl",
		".gif":  "dataurl",
	}
}

// InitOptions configures a new Kernel.
type InitOptions struct {
	EsbuildVersion string
	WorkerURL      string
	MinConcurrency int
	MaxConcurrency int

	// HardwareConcurrency is the caller's advertised concurrency hint
	// (navigator.hardwareConcurrency in a browser); 0 means unknown.
	HardwareConcurrency int

	// NewEngine builds one Engine per pool worker. It is required on
	// every platform: Init returns an error when it is nil. Tests and the
	// CLI harness supply their own; the js&&wasm entry point supplies
	// workerpool.NewWASMEngineFactory(EsbuildVersion).
	NewEngine workerpool.EngineFactory

	// NewPersistentStore builds the backing Store for the persistent
	// cache tier. Off js&&wasm this is supplied by the caller (tests use
	// an in-memory pkgcache.MemStore); the real js&&wasm entry point
	// supplies pkgcache.NewIndexedDB. Nil leaves the persistent tier
	// disabled.
	NewPersistentStore func() pkgcache.Store
}

// Kernel is the root facade wiring the virtual FS, package cache,
// dependency installer, worker pool, and preview service worker together
// behind three public operations: installing dependencies, bundling, and
// transforming source.
type Kernel struct {
	FS         *vfs.FS
	Local      *pkgcache.Local
	Persistent *pkgcache.Persistent
	Pool       *workerpool.Manager
	Preview    *previewsw.Service
	Installer  *installer.Installer
}

// Init loads the worker pool and returns a ready Kernel. A pool-bootstrap
// failure (engine artifact fetch or worker setup) surfaces through the
// returned error.
func Init(opts InitOptions) (*Kernel, error) {
	if opts.NewEngine == nil {
		return nil, fmt.Errorf("sandbundle: Init requires NewEngine (workerpool.NewWASMEngineFactory under js&&wasm)")
	}

	k := &Kernel{
		FS:        vfs.New(),
		Local:     pkgcache.NewLocal(),
		Installer: installer.New(),
	}
	if opts.NewPersistentStore != nil {
		k.Persistent = pkgcache.NewPersistent(opts.NewPersistentStore())
	}
	k.Pool = workerpool.NewManager(opts.HardwareConcurrency, opts.MinConcurrency, opts.MaxConcurrency, opts.NewEngine)
	return k, nil
}

// NpmInstallOptions configures a single NpmInstall call.
type NpmInstallOptions struct {
	RegistryBaseURL string
	Cwd             string
	RawFiles        map[string]string
	Progress        func(kind, message string)
	Overrides       installer.Deps
}

// NpmInstall runs the dependency installer against the kernel's FS (or,
// when RawFiles is supplied, a fresh snapshot routed through the worker
// pool's npm_install request, whose resulting files are then written
// back into the kernel's FS).
func (k *Kernel) NpmInstall(ctx context.Context, opts NpmInstallOptions) error {
	if opts.RawFiles != nil {
		value, err := k.Pool.Submit(ctx, workerpool.Request{
			Kind: workerpool.KindNpmInstall,
			NpmInstall: &workerpool.NpmInstallRequest{
				Snapshot:        opts.RawFiles,
				RegistryBaseURL: opts.RegistryBaseURL,
				Overrides:       opts.Overrides,
			},
		}, func(payload any) {
			if opts.Progress == nil {
				return
			}
			if m, ok := payload.(map[string]string); ok {
				opts.Progress(m["kind"], m["message"])
			}
		})
		if err != nil {
			return err
		}
		if result, ok := value.(workerpool.NpmInstallResult); ok {
			for p, contents := range result.RawFiles {
				if err := k.FS.WriteFile(p, contents); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if opts.Cwd != "" {
		k.FS.Chdir(opts.Cwd)
	}
	reg, err := installer.NewRegistry(ctx, opts.RegistryBaseURL)
	if err != nil {
		return err
	}
	return k.Installer.Install(ctx, k.FS, installer.Options{
		Registry:   reg,
		Local:      k.Local,
		Persistent: k.Persistent,
		Overrides:  opts.Overrides,
		Progress:   installer.Progress(opts.Progress),
	})
}

// BundleOptions configures a single Bundle call.
type BundleOptions struct {
	EngineOptions map[string]any
	RawFiles      map[string]string
}

// Bundle runs a multi-file build through the worker pool, applying
// DefaultBundlerOptions for any key the caller did not override.
func (k *Kernel) Bundle(ctx context.Context, opts BundleOptions) (workerpool.BuildResult, error) {
	snapshot := opts.RawFiles
	if snapshot == nil {
		snapshot = k.FS.RawFiles()
	}

	merged := DefaultBundlerOptions()
	for key, value := range opts.EngineOptions {
		merged[key] = value
	}

	value, err := k.Pool.Submit(ctx, workerpool.Request{
		Kind: workerpool.KindBuild,
		Build: &workerpool.BuildRequest{
			Snapshot: snapshot,
			Options:  merged,
		},
	}, nil)
	if err != nil {
		return workerpool.BuildResult{}, err
	}
	return value.(workerpool.BuildResult), nil
}

// Transform compiles a single source text through the worker pool.
func (k *Kernel) Transform(ctx context.Context, source string, loader string, options map[string]any) (workerpool.TransformResult, error) {
	value, err := k.Pool.Submit(ctx, workerpool.Request{
		Kind: workerpool.KindTransform,
		Transform: &workerpool.TransformRequest{
			Source:  source,
			Loader:  loader,
			Options: options,
		},
	}, nil)
	if err != nil {
		return workerpool.TransformResult{}, err
	}
	return value.(workerpool.TransformResult), nil
}

// Reload swaps the worker pool to a fresh engine version, rejecting every
// pending task with workerpool.ErrReload.
func (k *Kernel) Reload(newVersion string, newEngine workerpool.EngineFactory) {
	k.Pool.Reload(0, newEngine)
}
