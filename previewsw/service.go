package previewsw

import (
	"net/http"
	"path"
	"strings"
)

// Service serves intercepted fetch events against a process-local Store,
// falling back to a persistent Cache, generalising a single ordered-rule
// dispatch structure to two rules: preview-hostname routing, then
// path-prefixed build output.
type Service struct {
	Store         *Store
	Cache         Cache
	PreviewSuffix string // build-time-substituted hostname suffix; "" disables rule 1
}

// NewService creates a Service with an in-memory Store and the given
// persistent Cache (pass NewMemCache() off js&&wasm).
func NewService(cache Cache) *Service {
	return &Service{Store: NewStore(), Cache: cache}
}

// UploadFiles implements the UPLOAD_FILES message: clear the persistent
// cache for projectId, replace the in-memory file set, and re-insert each
// file's derived headers into the persistent cache too so it is
// available for later rule-2 repopulation.
func (s *Service) UploadFiles(projectID string, files map[string][]byte) {
	cacheName := cacheNameFor(projectID)
	s.Cache.Clear(cacheName)

	replacement := make(map[string]File, len(files))
	for p, body := range files {
		f := File{Body: body, Headers: headersForUpload(p)}
		replacement[p] = f
		s.Cache.Put(cacheName, p, f)
	}
	s.Store.ReplaceProject(projectID, replacement)
}

// ServeHTTP applies the two ordered fetch interception rules: a
// preview-suffix hostname match, then a /__build/{projectId}/{path}
// prefix match.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.PreviewSuffix != "" {
		host := stripPort(r.Host)
		if strings.HasSuffix(host, s.PreviewSuffix) {
			projectID := strings.TrimSuffix(host, s.PreviewSuffix)
			projectID = strings.TrimSuffix(projectID, ".")
			s.serveOrNotFound(w, projectID, r.URL.Path)
			return
		}
	}

	if strings.HasPrefix(r.URL.Path, "/__build/") {
		rest := strings.TrimPrefix(r.URL.Path, "/__build/")
		projectID, filePath, _ := strings.Cut(rest, "/")
		if filePath == "" {
			filePath = "index.html"
		}
		s.serveBuildPath(w, projectID, filePath)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (s *Service) serveOrNotFound(w http.ResponseWriter, projectID, filePath string) {
	filePath = strings.TrimPrefix(filePath, "/")
	if filePath == "" {
		filePath = "index.html"
	}
	f, ok := s.Store.Get(projectID, filePath)
	if !ok {
		http.NotFound(w, nil)
		return
	}
	writeFile(w, f)
}

// serveBuildPath implements rule 2: serve in-memory if present,
// otherwise consult the persistent cache and repopulate memory on a
// cache hit, otherwise a textual 404.
func (s *Service) serveBuildPath(w http.ResponseWriter, projectID, filePath string) {
	if f, ok := s.Store.Get(projectID, filePath); ok {
		writeFile(w, f)
		return
	}

	cacheName := cacheNameFor(projectID)
	if f, ok := s.Cache.Get(cacheName, filePath); ok {
		s.Store.Put(projectID, filePath, f)
		writeFile(w, f)
		return
	}

	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("not found: " + path.Join(projectID, filePath)))
}

func writeFile(w http.ResponseWriter, f File) {
	for k, v := range f.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(f.Body)
}

func stripPort(host string) string {
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		return host[:idx]
	}
	return host
}
