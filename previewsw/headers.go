package previewsw

import "strings"

// isolationHeaders is the fixed block of cross-origin isolation headers
// applied to every uploaded file, enabling SharedArrayBuffer and other
// cross-origin-isolated APIs inside the previewed page.
var isolationHeaders = map[string]string{
	"Cross-Origin-Embedder-Policy": "require-corp",
	"Cross-Origin-Opener-Policy":   "same-origin",
	"Cross-Origin-Resource-Policy": "cross-origin",
	"Content-Security-Policy":      "frame-ancestors 'self'",
	"X-Content-Type-Options":       "nosniff",
	"X-Frame-Options":              "SAMEORIGIN",
	"X-XSS-Protection":             "1; mode=block",
	"Cache-Control":                "no-store",
}

var mimeByExtension = map[string]string{
	"js":   "application/javascript",
	"css":  "text/css",
	"html": "text/html",
	"json": "application/json",
	"map":  "application/json",
	"txt":  "text/plain",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
}

// mimeForPath derives the MIME type from a path's extension via a fixed
// table; anything unrecognised is application/octet-stream.
func mimeForPath(path string) string {
	ext := ""
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		ext = path[idx+1:]
	}
	if mt, ok := mimeByExtension[strings.ToLower(ext)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// headersForUpload builds the full header set for one uploaded file:
// its derived Content-Type plus the fixed isolation block.
func headersForUpload(path string) map[string]string {
	headers := make(map[string]string, len(isolationHeaders)+1)
	for k, v := range isolationHeaders {
		headers[k] = v
	}
	headers["Content-Type"] = mimeForPath(path)
	return headers
}
