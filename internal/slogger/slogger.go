// Package slogger provides a terse, colorized slog.Handler for the CLI
// dev harness, with include/exclude glob filters over attribute
// key=value pairs so a noisy run (e.g. every installer progress event)
// can be narrowed down while debugging.
package slogger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

func callerLocation(pc uintptr) (file string, line int) {
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return frame.File, frame.Line
}

type HandlerOptions struct {
	Level slog.Level
	// Include, if non-empty, requires at least one attribute to match
	// one of these glob patterns (e.g. "kind=progress", "err=*").
	Include []string
	// Exclude drops a record if any attribute matches one of these
	// glob patterns.
	Exclude []string
}

type Handler struct {
	slog.Handler
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

func compile(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(globToRegex(p)))
	}
	return compiled
}

func matches(key string, value any, patterns []*regexp.Regexp) bool {
	full := fmt.Sprintf("%s=%v", key, value)
	for _, re := range patterns {
		if re.MatchString(full) || re.MatchString(key) {
			return true
		}
	}
	return false
}

func (h *Handler) include_(r slog.Record) bool {
	var hasInclude, hasExclude bool
	r.Attrs(func(a slog.Attr) bool {
		if len(h.include) > 0 && matches(a.Key, a.Value.Any(), h.include) {
			hasInclude = true
		}
		if len(h.exclude) > 0 && matches(a.Key, a.Value.Any(), h.exclude) {
			hasExclude = true
		}
		return true
	})
	if len(h.include) > 0 && !hasInclude {
		return false
	}
	return !hasExclude
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if !h.include_(r) {
		return nil
	}

	var attrs []string
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, fmt.Sprintf("\033[90m%s=\033[0m%v", a.Key, a.Value.Any()))
		return true
	})

	ts := r.Time.Format("15:04:05.000")
	var loc string
	if r.PC != 0 {
		file, line := callerLocation(r.PC)
		loc = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	fmt.Printf("\033[90m%s\033[0m %s %s \033[90m%s\033[0m\n", ts, r.Message, strings.Join(attrs, " "), loc)
	return nil
}

// Use installs a New(level) logger as the process-wide slog default.
func Use(level slog.Level) {
	slog.SetDefault(New(level))
}

func New(level slog.Level) *slog.Logger {
	return NewWithOptions(HandlerOptions{Level: level})
}

func NewWithOptions(opts HandlerOptions) *slog.Logger {
	return slog.New(&Handler{
		Handler: slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: opts.Level}),
		include: compile(opts.Include),
		exclude: compile(opts.Exclude),
	})
}
