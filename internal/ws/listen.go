package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Listener is one HTTP server to run.
type Listener struct {
	Name    string
	Addr    string
	Handler http.Handler
}

// ListenAndServe runs every listener until ctx is cancelled or one of them
// fails, then shuts them all down. beforeShutdown runs first, while the
// listeners are still up.
func ListenAndServe(ctx context.Context, log *zap.Logger, beforeShutdown func(), listeners ...Listener) error {
	servers := make([]*http.Server, 0, len(listeners))
	errCh := make(chan error, len(listeners))

	for _, l := range listeners {
		ln, err := net.Listen("tcp", l.Addr)
		if err != nil {
			closeAll(servers)
			return fmt.Errorf("%s listener: %w", l.Name, err)
		}
		srv := &http.Server{
			Handler:           l.Handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ErrorLog:          zap.NewStdLog(log.Named(l.Name)),
		}
		servers = append(servers, srv)

		log.Info("listening", zap.String("listener", l.Name), zap.String("addr", ln.Addr().String()))
		go func(name string) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s listener: %w", name, err)
			}
		}(l.Name)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	if beforeShutdown != nil {
		beforeShutdown()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	}
	return err
}

func closeAll(servers []*http.Server) {
	for _, srv := range servers {
		_ = srv.Close()
	}
}
