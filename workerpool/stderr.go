package workerpool

import (
	"regexp"
	"strings"
)

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

func stripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// mergeStderr de-duplicates formatted diagnostic lines against a raw
// stderr stream and prepends the ones that are genuinely new, producing
// a single merged stderr. Comparison ignores ANSI colour codes so a
// coloured formatted entry still matches an uncoloured occurrence
// already present in stderr.
func mergeStderr(formatted []string, stderr string) string {
	plainStderr := stripANSI(stderr)

	var prepend []string
	for _, entry := range formatted {
		if entry == "" {
			continue
		}
		if strings.Contains(plainStderr, stripANSI(entry)) {
			continue
		}
		prepend = append(prepend, entry)
	}

	if len(prepend) == 0 {
		return stderr
	}
	if stderr == "" {
		return strings.Join(prepend, "\n")
	}
	return strings.Join(prepend, "\n") + "\n" + stderr
}
