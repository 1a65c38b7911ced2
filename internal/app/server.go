package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/datafile"
	"github.com/specialistvlad/babago/internal/evaluator"
	"github.com/specialistvlad/babago/internal/fetch"
	"github.com/specialistvlad/babago/internal/registry"
)

// maxBodyBytes caps the size of render request bodies.
const maxBodyBytes = 1 << 20

// Handler returns the HTTP API:
//
//	GET  /health          liveness
//	GET  /templates       registered template names, one per line
//	POST /render/{name}   render name with the JSON request body as data
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.HandleFunc("GET /templates", a.templatesHandler)
	mux.HandleFunc("POST /render/{name}", a.renderHandler)
	return mux
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (a *App) templatesHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	cw := brotli.HTTPCompressor(w, r)
	defer cw.Close()
	for _, name := range a.registry.Names() {
		fmt.Fprintln(cw, name)
	}
}

func (a *App) renderHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(a.ctx)
	name := r.PathValue("name")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "reading body: "+err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	var data any
	if len(body) > 0 {
		data, err = datafile.FromJSON(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ctx := ctxlog.WithLogger(r.Context(), logger)
	out, err := a.registry.Generate(ctx, registry.Request{Name: name, Data: data})
	if err != nil {
		status := statusFor(err)
		logger.Warn("Render request failed.", "template", name, "status", status, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	cw := brotli.HTTPCompressor(w, r)
	defer cw.Close()
	if _, err := io.WriteString(cw, out); err != nil {
		logger.Debug("Writing render response failed.", "error", err)
	}
}

func statusFor(err error) int {
	var de *evaluator.DirectiveError
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, fetch.ErrNotFound), errors.Is(err, registry.ErrNoFetcher):
		return http.StatusNotFound
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// serve runs the HTTP server until ctx is cancelled, then shuts it down.
func (a *App) serve(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	addr := fmt.Sprintf(":%d", a.config.ServePort)
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Template server starting", "address", fmt.Sprintf("http://localhost%s", addr))
		// ListenAndServe will return an error on graceful shutdown.
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("template server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return a.shutdown()
}

func (a *App) shutdown() error {
	logger := ctxlog.FromContext(a.ctx)
	if a.httpServer == nil {
		logger.Debug("Template server was not running.")
		return nil
	}

	// The run context is already cancelled here.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 5*time.Second)
	defer cancel()

	logger.Info("Shutting down template server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logger.Error("Template server shutdown failed", "error", err)
		return err
	}
	logger.Debug("Template server shut down gracefully.")
	return nil
}
