package installer

import (
	"encoding/base64"
	"sort"
	"strings"
)

// Deps is a dependency specification: package name to version string.
type Deps map[string]string

// Fingerprint computes a stable identity for a dependency set: a base64
// of the ASCII string formed by sorting dependency entries
// lexicographically by name and joining "name@version" with ";". It is
// deterministic regardless of map iteration order.
func Fingerprint(deps Deps) string {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"@"+deps[name])
	}
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(parts, ";")))
}

// MergeDeps unions dependencies and peerDependencies from a package.json
// with caller-supplied overrides. devDependencies are deliberately
// excluded: this installer only ever runs in a deployed preview, never a
// development build of the project itself.
func MergeDeps(pkg PackageJSON, overrides Deps) Deps {
	out := make(Deps, len(pkg.Dependencies)+len(pkg.PeerDependencies)+len(overrides))
	for name, version := range pkg.Dependencies {
		out[name] = version
	}
	for name, version := range pkg.PeerDependencies {
		out[name] = version
	}
	for name, version := range overrides {
		out[name] = version
	}
	return out
}

// splitNameMajor strips the trailing "@major" suffix from a distTag key,
// preserving scoped package names (which themselves contain an "@").
// "react@18" -> "react". "@types/react@18" -> "@types/react".
func splitNameMajor(key string) (name string, major string) {
	idx := strings.LastIndex(key, "@")
	if idx <= 0 {
		return key, ""
	}
	return key[:idx], key[idx+1:]
}
