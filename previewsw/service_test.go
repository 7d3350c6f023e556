package previewsw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMimeForPathKnownExtensions(t *testing.T) {
	cases := map[string]string{
		"main.js":    "application/javascript",
		"style.css":  "text/css",
		"index.html": "text/html",
		"data.json":  "application/json",
		"main.js.map": "application/json",
		"notes.txt":  "text/plain",
		"icon.png":   "image/png",
		"photo.jpeg": "image/jpeg",
		"anim.gif":   "image/gif",
		"logo.svg":   "image/svg+xml",
		"archive.bin": "application/octet-stream",
	}
	for path, want := range cases {
		if got := mimeForPath(path); got != want {
			t.Errorf("mimeForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestUploadFilesThenServeBuildPath(t *testing.T) {
	svc := NewService(NewMemCache())
	svc.UploadFiles("proj1", map[string][]byte{
		"index.html": []byte("<h1>hi</h1>"),
	})

	req := httptest.NewRequest(http.MethodGet, "/__build/proj1/index.html", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if rec.Body.String() != "<h1>hi</h1>" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("Cross-Origin-Embedder-Policy") != "require-corp" {
		t.Fatal("missing COEP header")
	}
}

func TestServeBuildPathDefaultsToIndexHTML(t *testing.T) {
	svc := NewService(NewMemCache())
	svc.UploadFiles("proj1", map[string][]byte{"index.html": []byte("root")})

	req := httptest.NewRequest(http.MethodGet, "/__build/proj1/", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "root" {
		t.Fatalf("expected default index.html, got status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestServeBuildPathRepopulatesFromPersistentCache(t *testing.T) {
	cache := NewMemCache()
	svc := NewService(cache)
	svc.UploadFiles("proj1", map[string][]byte{"index.html": []byte("cached")})

	// Simulate eviction from the in-memory store (e.g. worker restart)
	// while the persistent cache retains the file.
	svc.Store.ReplaceProject("proj1", map[string]File{})

	req := httptest.NewRequest(http.MethodGet, "/__build/proj1/index.html", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "cached" {
		t.Fatalf("expected repopulated serve, got status=%d body=%q", rec.Code, rec.Body.String())
	}
	if _, ok := svc.Store.Get("proj1", "index.html"); !ok {
		t.Fatal("expected in-memory store to be repopulated after cache hit")
	}
}

func TestServeBuildPathMissingIsTextual404(t *testing.T) {
	svc := NewService(NewMemCache())

	req := httptest.NewRequest(http.MethodGet, "/__build/proj1/missing.js", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected textual 404 body")
	}
}

func TestPreviewSuffixHostRoutesToInMemoryEntry(t *testing.T) {
	svc := NewService(NewMemCache())
	svc.PreviewSuffix = ".preview.example.com"
	svc.UploadFiles("myproj", map[string][]byte{"index.html": []byte("preview body")})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "myproj.preview.example.com"
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "preview body" {
		t.Fatalf("unexpected preview-suffix serve: status=%d body=%q", rec.Code, rec.Body.String())
	}
}
