package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// conn is the part of a socket.io client ToSocketIO uses.
type conn interface {
	Emit(event string, data any)
	Connected() bool
	ID() string
	Close()
}

// dialer opens a conn. Tests replace it.
type dialer func(ctx context.Context, logger *slog.Logger, o options) (conn, error)

type options struct {
	url       *url.URL
	namespace string
	insecure  bool
	timeout   time.Duration
}

type client struct {
	io *socket.Socket
}

func (c *client) Emit(event string, data any) { c.io.Emit(event, data) }
func (c *client) Connected() bool             { return c.io.Connected() }
func (c *client) ID() string                  { return fmt.Sprint(c.io.Id()) }
func (c *client) Close()                      { c.io.Disconnect() }

// dial connects a websocket socket.io client and waits for the connect or
// connect_error event.
func dial(ctx context.Context, logger *slog.Logger, o options) (conn, error) {
	opts := socket.DefaultOptions()
	opts.SetPath(o.url.Path)
	if o.insecure {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connected := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", o.url.Scheme, o.url.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(o.namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		select {
		case connected <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connected <- err:
		default:
		}
	})

	logger.Debug("Initiating socket.io connection.", "url", baseURL, "namespace", o.namespace)
	io.Connect()

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		c := &client{io: io}
		logger.Info("Successfully connected.", "sid", c.ID())
		return c, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("socket.io connection cancelled: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("socket.io connection timed out after %s", o.timeout)
	}
}
