// Package web serves the Twilio webhook, health and metrics endpoints, and
// the read-only lead admin pages.
package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/siftly/siftly/internal/lead"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the collaborators the server routes to.
type Deps struct {
	Store  lead.Repository
	Router MessageHandler

	// Metrics serves GET /metrics. Nil disables the route.
	Metrics http.Handler

	Version string
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed handler without binding a listener.
func NewHandler(deps Deps) http.Handler {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		log.Fatalf("failed to create template sub-FS: %v", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Fatalf("failed to create static sub-FS: %v", err)
	}

	h := &Handlers{
		store:    deps.Store,
		router:   deps.Router,
		renderer: NewRenderer(templateSub, deps.Version),
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/leads", http.StatusFound)
	})
	mux.HandleFunc("POST /sms", h.HandleSMS)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.HandleFunc("GET /leads", h.HandleList)
	mux.HandleFunc("GET /leads.csv", h.HandleExportCSV)
	mux.HandleFunc("GET /leads/{phone}", h.HandleDetail)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	// Wrap with security headers
	return securityHeaders(mux)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
// drain functions run after the listener has stopped, in order.
func Run(srv *http.Server, drain ...func()) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Printf("Siftly listening on http://%s (webhook: POST /sms)", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Printf("WARNING: Server is binding to all interfaces; the admin pages have no authentication")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(ctx)
		for _, fn := range drain {
			fn()
		}
		return err
	}
}
