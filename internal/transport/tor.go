package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultTorStartupTimeout bounds how long the embedded daemon may take to
// bootstrap.
const DefaultTorStartupTimeout = 3 * time.Minute

// EmbeddedTor manages a Tor daemon launched through tornago. The tor
// flavor uses it so crawls of onion sites need no separately installed
// Tor service.
//
// Bootstrapping takes one to three minutes: the daemon downloads directory
// information and builds its first circuits before the SOCKS port answers.
type EmbeddedTor struct {
	startupTimeout time.Duration

	mu          sync.Mutex
	process     *tornago.TorProcess
	socksAddr   string
	controlAddr string
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor creates a new embedded Tor manager.
// Call Start() to actually launch the Tor daemon.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: DefaultTorStartupTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the daemon on OS-assigned ports and blocks until it has
// bootstrapped, the startup timeout expires or ctx is cancelled. A daemon
// that finishes bootstrapping after cancellation is stopped again.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("tor launch config: %w", err)
	}

	type launched struct {
		process *tornago.TorProcess
		err     error
	}
	done := make(chan launched, 1)
	go func() {
		process, err := tornago.StartTorDaemon(launchCfg)
		done <- launched{process: process, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if l := <-done; l.err == nil {
				_ = l.process.Stop() //nolint:errcheck // nobody is waiting for it
			}
		}()
		return ctx.Err()
	case l := <-done:
		if l.err != nil {
			return fmt.Errorf("%w: %w", ErrTorStartFailed, l.err)
		}
		e.mu.Lock()
		e.process = l.process
		e.socksAddr = l.process.SocksAddr()
		e.controlAddr = l.process.ControlAddr()
		e.mu.Unlock()
		return nil
	}
}

// Stop shuts the daemon down. It is safe to call more than once or on an
// instance that never started.
func (e *EmbeddedTor) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	e.controlAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 address of the running daemon, or "".
func (e *EmbeddedTor) SocksAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.socksAddr
}

// ControlAddr returns the control port address of the running daemon, or "".
func (e *EmbeddedTor) ControlAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controlAddr
}

// IsRunning reports whether the daemon has been started and not stopped.
func (e *EmbeddedTor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process != nil
}

// Dialer returns a SOCKSDialer pointed at the running daemon.
func (e *EmbeddedTor) Dialer() (*SOCKSDialer, error) {
	addr := e.SocksAddr()
	if addr == "" {
		return nil, ErrTorNotRunning
	}
	return NewSOCKSDialer(addr)
}
