package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 60 * time.Second
	shutdownTimeout     = 30 * time.Second

	gracefulEnvKey     = "DOPESITE_GRACEFUL"
	gracefulEnvValue   = gracefulEnvKey + "=1"
	gracefulListenerFD = 3
)

// Server wraps http.Server with signal driven shutdown (SIGTERM, SIGINT) and
// zero-downtime restart (SIGUSR2, the listener is handed to a child process).
type Server struct {
	*http.Server

	listener     net.Listener
	inherited    bool
	signalChan   chan os.Signal
	shutdownChan chan struct{}
	onShutdown   []func()
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
		},
		inherited:    os.Getenv(gracefulEnvKey) != "",
		signalChan:   make(chan os.Signal, 1),
		shutdownChan: make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the HTTP server drained.
func (srv *Server) OnShutdown(fn func()) {
	srv.onShutdown = append(srv.onShutdown, fn)
}

// ListenAndServe serves until a shutdown signal arrives and all in-flight
// requests finished.
func (srv *Server) ListenAndServe() error {
	addr := srv.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := srv.listen(addr)
	if err != nil {
		return err
	}
	srv.listener = ln

	go srv.handleSignals()
	err = srv.Server.Serve(srv.listener)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-srv.shutdownChan
	return nil
}

func (srv *Server) listen(addr string) (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(gracefulListenerFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	signal.Notify(srv.signalChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR2)

	for sig := range srv.signalChan {
		switch sig {
		case syscall.SIGTERM, syscall.SIGINT:
			Sugar.Infow("shutting down HTTP server", "signal", sig.String())
			srv.shutdown()
			return
		case syscall.SIGUSR2:
			Sugar.Info("received SIGUSR2, restarting HTTP server")
			pid, err := srv.startChild()
			if err != nil {
				Sugar.Errorw("restart failed, continue serving", "error", err)
				continue
			}
			Sugar.Infow("child process started, closing old server", "pid", pid)
			srv.shutdown()
			return
		}
	}
}

func (srv *Server) shutdown() {
	signal.Stop(srv.signalChan)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		Sugar.Errorw("HTTP server shutdown error", "error", err)
	} else {
		Sugar.Info("HTTP server shutdown complete")
	}
	for _, fn := range srv.onShutdown {
		fn()
	}
	close(srv.shutdownChan)
}

// startChild re-executes the binary with the listening socket as fd 3.
func (srv *Server) startChild() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is %T, not *net.TCPListener", srv.listener)
	}
	file, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("get listener file: %w", err)
	}
	defer file.Close()

	envs := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != gracefulEnvValue {
			envs = append(envs, e)
		}
	}
	envs = append(envs, gracefulEnvValue)

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   envs,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), file.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}

// GraceServer builds a Server with the default timeouts.
func GraceServer(addr string, handler http.Handler) *Server {
	return NewServer(addr, handler, defaultReadTimeout, defaultWriteTimeout)
}
