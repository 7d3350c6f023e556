package sandbundle

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"tractor.dev/sandbundle/pkgcache"
	"tractor.dev/sandbundle/workerpool"
)

type fakeEngine struct{}

func (fakeEngine) Transform(req workerpool.TransformRequest) (workerpool.TransformResult, error) {
	return workerpool.TransformResult{Code: req.Source}, nil
}

func (fakeEngine) Build(req workerpool.BuildRequest) (workerpool.BuildResult, error) {
	return workerpool.BuildResult{OutputFiles: req.Snapshot}, nil
}

// newFakeCDN serves the same /v2/deps/{fingerprint} and
// /v2/mod/{base64(name@version)} routes the HTTPRegistry expects, counting
// module fetches so a test can assert a second install is served from the
// persistent cache instead of hitting the network again.
func newFakeCDN(t *testing.T, moduleFetches *int) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/deps/", func(w http.ResponseWriter, r *http.Request) {
		body, err := cbor.Marshal(map[string]string{"left-pad@1": "1.3.0"})
		if err != nil {
			t.Fatal(err)
		}
		w.Write(body)
	})
	mux.HandleFunc("/v2/mod/", func(w http.ResponseWriter, r *http.Request) {
		*moduleFetches++
		files := map[string][]byte{
			"package.json": []byte(`{"name":"left-pad","version":"1.3.0","main":"index.js"}`),
			"index.js":     []byte("module.exports = function(){}"),
		}
		body, err := cbor.Marshal(files)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(body)
	})
	return httptest.NewServer(mux)
}

func TestNpmInstallSecondCallHitsPersistentCache(t *testing.T) {
	var moduleFetches int
	server := newFakeCDN(t, &moduleFetches)
	defer server.Close()

	k, err := Init(InitOptions{
		MinConcurrency:      1,
		MaxConcurrency:      1,
		HardwareConcurrency: 1,
		NewEngine:           func() workerpool.Engine { return fakeEngine{} },
		NewPersistentStore:  func() pkgcache.Store { return pkgcache.NewMemStore() },
	})
	if err != nil {
		t.Fatal(err)
	}
	if k.Persistent == nil {
		t.Fatal("expected NewPersistentStore to populate Kernel.Persistent")
	}

	k.FS.WriteFile("app/package.json", `{"dependencies":{"left-pad":"1.3.0"}}`)

	ctx := context.Background()
	if err := k.NpmInstall(ctx, NpmInstallOptions{RegistryBaseURL: server.URL}); err != nil {
		t.Fatal(err)
	}
	if moduleFetches != 1 {
		t.Fatalf("expected exactly one module fetch on first install, got %d", moduleFetches)
	}

	req := "/v2/mod/" + base64.StdEncoding.EncodeToString([]byte("left-pad@1.3.0"))
	cached, err := k.Persistent.IsCached(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if !cached {
		t.Fatal("expected module fetch to populate the persistent cache")
	}

	// Force re-resolution and re-fetch by removing the installed package
	// and the package.json hash that short-circuits unchanged dependencies.
	k.FS.DeleteFile("node_modules/left-pad/index.js")
	k.FS.DeleteFile("node_modules/left-pad/package.json")
	k.FS.DeleteFile("~system/package-json-hash")

	if err := k.NpmInstall(ctx, NpmInstallOptions{RegistryBaseURL: server.URL}); err != nil {
		t.Fatal(err)
	}
	if moduleFetches != 1 {
		t.Fatalf("expected second install to be served from the persistent cache, got %d module fetches", moduleFetches)
	}

	if got := k.FS.ReadFile("node_modules/left-pad/index.js"); !strings.Contains(got, "module.exports") {
		t.Fatalf("expected index.js to be rewritten from cached data, got %q", got)
	}
}

func TestNpmInstallRawFilesRoutesThroughWorkerPool(t *testing.T) {
	var moduleFetches int
	server := newFakeCDN(t, &moduleFetches)
	defer server.Close()

	k, err := Init(InitOptions{
		MinConcurrency:      1,
		MaxConcurrency:      1,
		HardwareConcurrency: 1,
		NewEngine:           func() workerpool.Engine { return fakeEngine{} },
	})
	if err != nil {
		t.Fatal(err)
	}

	err = k.NpmInstall(context.Background(), NpmInstallOptions{
		RegistryBaseURL: server.URL,
		RawFiles: map[string]string{
			"app/package.json": `{"dependencies":{"left-pad":"1.3.0"}}`,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if moduleFetches != 1 {
		t.Fatalf("expected one module fetch via the worker-dispatched install, got %d", moduleFetches)
	}
}
