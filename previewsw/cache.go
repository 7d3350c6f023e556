package previewsw

// Cache is the persistent per-project store contract, named
// "esbuild-files-<projectId>". It backs files evicted from the
// in-memory Store (e.g. across a service worker restart) so rule 2 of
// fetch interception can repopulate memory instead of 404ing.
type Cache interface {
	Get(cacheName, path string) (File, bool)
	Put(cacheName, path string, f File)
	Clear(cacheName string)
}

func cacheNameFor(projectID string) string {
	return "esbuild-files-" + projectID
}
