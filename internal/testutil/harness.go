package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/5g-empower/empower-agent/internal/errh"
	"github.com/5g-empower/empower-agent/internal/hcl"
	"github.com/5g-empower/empower-agent/internal/registry"
	"github.com/5g-empower/empower-agent/internal/router"
	"github.com/stretchr/testify/require"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// NewLogger returns a debug-level text logger writing to w.
func NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// NewFakeClock returns a fake clock starting at a fixed instant.
func NewFakeClock() *fakeclock.FakeClock {
	return fakeclock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// Registry returns a validated registry holding modules.
func Registry(t *testing.T, modules ...registry.Module) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, m := range modules {
		m.Register(reg)
	}
	require.NoError(t, reg.ValidateRegistry(context.Background()))
	return reg
}

// Build parses src and builds an uninitialized router from it.
func Build(ctx context.Context, reg *registry.Registry, src string, cfg router.Config, eh *errh.Handler) (*router.Router, error) {
	model, err := hcl.NewLoader().LoadString(ctx, "test.hcl", src)
	if err != nil {
		return nil, err
	}
	return reg.Build(ctx, model, cfg, eh)
}

// TryRouter builds and initializes a router from src, returning any error
// together with the handler that collected the details.
func TryRouter(t *testing.T, src string, cfg router.Config, modules ...registry.Module) (*router.Router, *errh.Handler, error) {
	t.Helper()
	ctx := context.Background()
	if cfg.Logger == nil && os.Getenv("AGENT_TEST_LOGS") == "true" {
		cfg.Logger = NewLogger(os.Stderr)
	}
	eh := errh.Silent()
	r, err := Build(ctx, Registry(t, modules...), src, cfg, eh)
	if err != nil {
		return nil, eh, err
	}
	if err := r.Initialize(ctx, eh); err != nil {
		return r, eh, err
	}
	t.Cleanup(func() {
		r.Stop()
		for r.Master().Running() {
			time.Sleep(time.Millisecond)
		}
		_ = r.Cleanup()
	})
	return r, eh, nil
}

// NewRouter is TryRouter for configurations expected to come up.
func NewRouter(t *testing.T, src string, cfg router.Config, modules ...registry.Module) *router.Router {
	t.Helper()
	r, _, err := TryRouter(t, src, cfg, modules...)
	require.NoError(t, err)
	return r
}

// RunRouter runs r until its driver stops by itself, failing t when that
// takes longer than timeout.
func RunRouter(t *testing.T, r *router.Router, timeout time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	require.NoError(t, ctx.Err(), "router did not stop within %s", timeout)
}

// StartRouter runs r in the background. The returned function stops it and
// waits for Run to return.
func StartRouter(t *testing.T, r *router.Router) (stop func()) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	return func() {
		r.Stop()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("router did not stop")
		}
	}
}

// Read calls read handler ref and fails t on error.
func Read(t *testing.T, r *router.Router, ref string) string {
	t.Helper()
	s, err := r.CallRead(ref, nil)
	require.NoError(t, err)
	return s
}

// Write calls write handler ref and fails t on error.
func Write(t *testing.T, r *router.Router, ref, data string) {
	t.Helper()
	require.NoError(t, r.CallWrite(ref, data, nil, errh.Silent()))
}
