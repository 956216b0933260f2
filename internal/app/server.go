package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/5g-empower/empower-agent/internal/ctxlog"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBody = 1 << 20

// Handler returns the App's HTTP surface.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /handlers/{handler}", a.readHandler)
	mux.HandleFunc("POST /handlers/{handler}", a.writeHandler)
	mux.HandleFunc("GET /handlers/{element}/{handler}", a.readHandler)
	mux.HandleFunc("POST /handlers/{element}/{handler}", a.writeHandler)
	mux.HandleFunc("POST /hotconfig", a.hotconfigHandler)
	return mux
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	if !a.Router().Live() {
		http.Error(w, "router not live", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func handlerRef(r *http.Request) string {
	if e := r.PathValue("element"); e != "" {
		return e + "." + r.PathValue("handler")
	}
	return r.PathValue("handler")
}

// statusFor maps a handler call error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, router.ErrNoSuchElement), errors.Is(err, router.ErrNoSuchHandler):
		return http.StatusNotFound
	case errors.Is(err, router.ErrHandlerPermission):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusBadRequest
	}
}

func (a *App) readHandler(w http.ResponseWriter, r *http.Request) {
	v, err := a.Router().CallRead(handlerRef(r), nil)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, v)
}

func (a *App) writeHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	ref := handlerRef(r)
	if err := a.Router().CallWrite(ref, string(body), nil, errh.New(a.logger)); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	a.logger.Debug("Handler written over HTTP.", "handler", ref)
	w.WriteHeader(http.StatusOK)
}

func (a *App) hotconfigHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	ctx := ctxlog.WithLogger(r.Context(), a.logger)
	if err := a.Hotswap(ctx, "hotconfig.hcl", string(body)); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrAppStopped) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	fmt.Fprintln(w, a.Router().ID().String())
}

// startServer listens on port and serves Handler in the background.
func (a *App) startServer(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	a.httpServer = &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 5 * time.Second}
	a.logger.Info("HTTP server starting.", "address", ln.Addr().String())
	go func() {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed.", "error", err)
		}
	}()
	return nil
}

func (a *App) stopServer() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Warn("HTTP server shutdown.", "error", err)
	}
}
