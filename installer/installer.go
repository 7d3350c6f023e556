// Package installer implements the dependency installer: resolving a
// transitive dependency set from a remote content-addressed CDN,
// memoising results, fetching package tarballs concurrently under a
// bounded queue with retries, and populating a virtual /node_modules
// tree plus an executable-script map.
package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tractor.dev/sandbundle/pkgcache"
	"tractor.dev/sandbundle/vfs"
)

const (
	packageJSONHashPath = "~system/package-json-hash"
	scriptsMapPath      = "node_modules/.scripts.json"

	fetchConcurrency = 10
	fetchTimeout     = 60 * time.Second
	fetchRetries     = 3
	retryBackoff     = 1 * time.Second
)

// PackageJSON is the subset of package.json the installer reads.
type PackageJSON struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Main             string            `json:"main"`
	Bin              json.RawMessage   `json:"bin"`
	Scripts          map[string]string `json:"scripts"`
	Dependencies     map[string]string `json:"dependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
}

// Progress is the caller-supplied progress sink: a phase boundary or a
// per-package hit/miss record.
type Progress func(kind, message string)

func noopProgress(string, string) {}

// Options configures a single resolution or install run.
type Options struct {
	Registry    Registry
	Local       *pkgcache.Local
	Persistent  *pkgcache.Persistent
	Overrides   Deps
	Progress    Progress
	Logger      *slog.Logger
}

func (o *Options) progress() Progress {
	if o.Progress != nil {
		return o.Progress
	}
	return noopProgress
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// ResolutionResult carries the fingerprint of the dependency set that was
// read, and the resolved name->version map. Dependencies is nil when the
// fingerprint matched what was already persisted on the FS — nothing to
// do.
type ResolutionResult struct {
	Fingerprint  string
	Dependencies Deps
}

// Installer runs dependency resolution and installation against a vfs.FS.
// It retains the script map produced by the most recent successful
// Install, for later DependencyScripts lookups.
type Installer struct {
	mu      sync.Mutex
	scripts map[string]string

	// majorDedup is a legacy "highest major per package" view built
	// alongside resolution. It is never consulted by
	// ResolveDependencies's return value -- the full distTags map is
	// the sole source of truth. Kept only to document the shape (see
	// DESIGN.md).
	majorDedup map[string]string
}

// New creates an installer with no retained script map.
func New() *Installer {
	return &Installer{}
}

// ResolveDependencies reads the package.json at fs.Cwd(), merges its
// dependencies with any overrides, and compares the result's
// fingerprint against what was last persisted, fetching fresh distTags
// only on a mismatch.
func (in *Installer) ResolveDependencies(ctx context.Context, fsys *vfs.FS, opts Options) (*ResolutionResult, error) {
	progress := opts.progress()
	logger := opts.logger()

	progress("info", "reading package.json")
	pkg, err := readPackageJSON(fsys, fsys.Cwd())
	if err != nil {
		return nil, fmt.Errorf("installer: read package.json: %w", err)
	}

	deps := MergeDeps(pkg, opts.Overrides)
	fingerprint := Fingerprint(deps)

	previous := fsys.ReadFile(packageJSONHashPath)
	if previous == fingerprint {
		progress("info", "dependencies unchanged, skipping resolution")
		return &ResolutionResult{Fingerprint: fingerprint, Dependencies: nil}, nil
	}

	progress("info", "resolving dependencies")
	distTags, err := in.fetchDistTags(ctx, opts, fingerprint, deps)
	if err != nil {
		progress("error", err.Error())
		return nil, err
	}

	resolved := make(Deps, len(distTags))
	dedup := make(map[string]string, len(distTags))
	dedupMajor := make(map[string]int, len(distTags))
	for key, version := range distTags {
		name, major := splitNameMajor(key)
		resolved[name] = version
		m, _ := strconv.Atoi(major)
		if existing, ok := dedupMajor[name]; !ok || m > existing {
			dedupMajor[name] = m
			dedup[name] = version
		}
	}

	in.mu.Lock()
	in.majorDedup = dedup
	in.mu.Unlock()

	if err := fsys.WriteFile(packageJSONHashPath, fingerprint); err != nil {
		return nil, err
	}

	logger.Debug("resolved dependencies", "count", len(resolved), "fingerprint", fingerprint)
	return &ResolutionResult{Fingerprint: fingerprint, Dependencies: resolved}, nil
}

func (in *Installer) fetchDistTags(ctx context.Context, opts Options, fingerprint string, deps Deps) (map[string]string, error) {
	req := depsCacheKey(fingerprint)
	fetch := func() ([]byte, error) {
		distTags, err := opts.Registry.FetchDeps(ctx, fingerprint)
		if err != nil {
			return nil, err
		}
		return json.Marshal(distTags)
	}
	transform := func(b []byte) (map[string]string, error) {
		var out map[string]string
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if opts.Local != nil {
		return pkgcache.WithLocalCacheData(opts.Local, req, fetch, transform)
	}
	data, err := fetch()
	if err != nil {
		return nil, err
	}
	return transform(data)
}

// Install fetches and writes every resolved package under
// /node_modules, skipping packages already at the requested version,
// and (re)builds the script map.
func (in *Installer) Install(ctx context.Context, fsys *vfs.FS, opts Options) error {
	progress := opts.progress()

	result, err := in.ResolveDependencies(ctx, fsys, opts)
	if err != nil {
		return err
	}
	if result.Dependencies == nil {
		progress("info", "install: nothing to do")
		return nil
	}

	var (
		mu      sync.Mutex
		scripts = make(map[string]string)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for name, version := range result.Dependencies {
		name, version := name, version
		g.Go(func() error {
			taskCtx, cancel := context.WithTimeout(gctx, fetchTimeout)
			defer cancel()
			return in.installPackage(taskCtx, fsys, opts, name, version, &mu, scripts)
		})
	}

	if err := g.Wait(); err != nil {
		progress("error", err.Error())
		return fmt.Errorf("installer: install failed: %w", err)
	}

	scriptsJSON, err := json.Marshal(scripts)
	if err != nil {
		return err
	}
	if err := fsys.WriteFile(scriptsMapPath, string(scriptsJSON)); err != nil {
		return err
	}

	in.mu.Lock()
	in.scripts = scripts
	in.mu.Unlock()

	progress("info", "install complete")
	return nil
}

func (in *Installer) installPackage(ctx context.Context, fsys *vfs.FS, opts Options, name, version string, mu *sync.Mutex, scripts map[string]string) error {
	progress := opts.progress()
	pkgJSONPath := path.Join("node_modules", name, "package.json")

	if fsys.Exists(pkgJSONPath) {
		var existing PackageJSON
		if err := json.Unmarshal([]byte(fsys.ReadFile(pkgJSONPath)), &existing); err == nil && existing.Version == version {
			progress("info", fmt.Sprintf("%s@%s already installed, skipping", name, version))
			return recordScripts(fsys, name, mu, scripts)
		}
	}

	req := modCacheKey(name, version)
	if opts.Persistent != nil {
		if cached, _ := opts.Persistent.IsCached(ctx, req); cached {
			progress("info", fmt.Sprintf("%s@%s: cache hit", name, version))
		} else {
			progress("info", fmt.Sprintf("%s@%s: cache miss", name, version))
		}
	}

	files, err := fetchModuleWithRetry(ctx, opts, req, name, version)
	if err != nil {
		progress("error", fmt.Sprintf("%s@%s: %s", name, version, err))
		return err
	}

	for relPath, data := range files {
		if err := fsys.WriteFile(path.Join("node_modules", name, relPath), string(data)); err != nil {
			return err
		}
	}

	return recordScripts(fsys, name, mu, scripts)
}

func fetchModuleWithRetry(ctx context.Context, opts Options, req, name, version string) (map[string][]byte, error) {
	fetch := func() ([]byte, error) {
		var lastErr error
		for attempt := 0; attempt <= fetchRetries; attempt++ {
			files, err := opts.Registry.FetchModule(ctx, name, version)
			if err == nil {
				return encodeFiles(files)
			}
			lastErr = err
			if attempt < fetchRetries {
				select {
				case <-time.After(retryBackoff):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
		return nil, fmt.Errorf("fetch %s@%s: %w", name, version, lastErr)
	}
	transform := func(b []byte) (map[string][]byte, error) {
		return decodeFiles(b)
	}
	if opts.Persistent != nil {
		return pkgcache.WithCacheData(ctx, opts.Persistent, req, fetch, transform)
	}
	data, err := fetch()
	if err != nil {
		return nil, err
	}
	return transform(data)
}

func encodeFiles(files map[string][]byte) ([]byte, error) {
	return json.Marshal(files)
}

func decodeFiles(b []byte) (map[string][]byte, error) {
	var out map[string][]byte
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// recordScripts re-reads the just-installed package.json and merges its
// bin/main-derived entry points into the script map.
func recordScripts(fsys *vfs.FS, name string, mu *sync.Mutex, scripts map[string]string) error {
	pkgJSONPath := path.Join("node_modules", name, "package.json")
	var pkg PackageJSON
	if err := json.Unmarshal([]byte(fsys.ReadFile(pkgJSONPath)), &pkg); err != nil {
		return fmt.Errorf("installer: parse %s: %w", pkgJSONPath, err)
	}

	entries := deriveScripts(name, pkg)
	mu.Lock()
	for script, entry := range entries {
		scripts[script] = entry
	}
	mu.Unlock()
	return nil
}

// deriveScripts computes the script map entries for one package: a
// string bin -> {name: resolve(name, bin)}; an object bin -> one entry
// per key; otherwise if main -> {name: resolve(name, main)}.
func deriveScripts(name string, pkg PackageJSON) map[string]string {
	base := path.Join("/node_modules", name)
	out := make(map[string]string)

	if len(pkg.Bin) > 0 {
		var asString string
		if err := json.Unmarshal(pkg.Bin, &asString); err == nil {
			out[name] = path.Join(base, asString)
			return out
		}
		var asObject map[string]string
		if err := json.Unmarshal(pkg.Bin, &asObject); err == nil {
			for bin, entry := range asObject {
				out[bin] = path.Join(base, entry)
			}
			return out
		}
	}

	if pkg.Main != "" {
		out[name] = path.Join(base, pkg.Main)
	}
	return out
}

// PackageScript derives the command and arguments for an npm script
// defined in package.json.
func (in *Installer) PackageScript(fsys *vfs.FS, scriptName string) (cmd string, args []string, err error) {
	pkg, err := readPackageJSON(fsys, fsys.Cwd())
	if err != nil {
		return "", nil, err
	}
	raw, ok := pkg.Scripts[scriptName]
	if !ok {
		return "", nil, fmt.Errorf("installer: no script named %q", scriptName)
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("installer: script %q is empty", scriptName)
	}
	return fields[0], fields[1:], nil
}

// DependencyScripts returns the absolute resolved path for an executable
// name, as derived by the most recent successful Install. It returns ""
// and false when cmd is not a known script.
func (in *Installer) DependencyScripts(cmd string) (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	entry, ok := in.scripts[cmd]
	return entry, ok
}

func readPackageJSON(fsys *vfs.FS, cwd string) (PackageJSON, error) {
	var pkg PackageJSON
	raw := fsys.ReadFile(path.Join(cwd, "package.json"))
	if raw == "" {
		return pkg, fmt.Errorf("no package.json at %s", cwd)
	}
	if err := json.Unmarshal([]byte(raw), &pkg); err != nil {
		return pkg, fmt.Errorf("parse package.json: %w", err)
	}
	return pkg, nil
}
