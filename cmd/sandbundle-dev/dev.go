package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"tractor.dev/toolkit-go/engine/cli"
	"tractor.dev/sandbundle/previewsw"
)

func devCmd() *cli.Command {
	var addr string
	cmd := &cli.Command{
		Usage: "dev",
		Short: "start a local preview + progress-streaming dev server",
		Run: func(ctx *cli.Context, args []string) {
			if addr == "" {
				addr = ":7777"
			}
			runDevServer(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":7777", "listen address")
	return cmd
}

func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// progressHub fans progress events passed to emit out to every browser
// tab connected on /progress. Nothing in the dev server calls emit, so
// connected tabs receive no events from installer or worker-pool runs.
type progressHub struct {
	mu          sync.Mutex
	subscribers map[chan progressEvent]struct{}
}

type progressEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newProgressHub() *progressHub {
	return &progressHub{subscribers: make(map[chan progressEvent]struct{})}
}

func (h *progressHub) emit(kind, message string) {
	ev := progressEvent{Kind: kind, Message: message}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *progressHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	ch := make(chan progressEvent, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func runDevServer(addr string) {
	hub := newProgressHub()
	preview := previewsw.NewService(previewsw.NewMemCache())

	mux := http.NewServeMux()
	mux.HandleFunc("/__build/", preview.ServeHTTP)
	mux.HandleFunc("/progress", hub.serveWS)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sandbundle dev server: see /__build/<projectId>/ and /progress", http.StatusNotFound)
	})

	slog.Info("sandbundle dev server listening", "addr", addr)
	if err := http.ListenAndServe(addr, loggerMiddleware(mux)); err != nil {
		fatal(err)
	}
}
