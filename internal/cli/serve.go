package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/weave/internal/catalog"
	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/store"
	"github.com/roach88/weave/internal/transport"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr            string
	Database        string
	ShutdownTimeout time.Duration
}

// ServeInfo is printed once the server is listening.
type ServeInfo struct {
	App      string `json:"app"`
	Hash     string `json:"hash"`
	Addr     string `json:"addr"`
	Database string `json:"database"`
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <app>",
		Short: "Serve an application to socket.io clients",
		Long: `Serve an application over socket.io.

Every client connection opens its own session: the application is mounted
fresh, the interface tree is sent, and control events from that client
only ever touch that session. Events and deltas are journaled to --db so
sessions can be replayed and traced later.

The server stops on SIGINT or SIGTERM, closing every open session.

Examples:
  weave serve ./apps/explorer.cue
  weave serve ./apps/explorer --addr :9000 --db ./explorer.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&opts.Database, "db", "weave.db", "path to the SQLite journal")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "time allowed for sessions to close")

	return cmd
}

func runServe(opts *ServeOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.Logger()

	app, err := LoadApp(path, catalog.Builtins())
	if err != nil {
		return loadFailure(f, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	srv := newAppServer(app, st, logger)
	handler := newServeMux(app, srv)

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to listen", err)
	}
	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info := ServeInfo{App: app.Spec.Name, Hash: app.Hash, Addr: ln.Addr().String(), Database: opts.Database}
	if f.JSON() {
		if err := f.Success(info); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "Serving %s on http://%s (journal %s)\n", info.App, info.Addr, info.Database)
	}
	logger.Info("serving", "app", info.App, "hash", info.Hash, "addr", info.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), httpSrv.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "server stopped", err)
	}
	logger.Info("server stopped")
	return nil
}

// newAppServer wires the application's factory to a journal and wraps it
// in a transport server.
func newAppServer(app *LoadedApp, journal engine.Journal, logger *slog.Logger) *transport.Server {
	factory := engine.NewFactory(app.Setup, engine.UUIDv7Generator{},
		engine.WithJournal(journal),
		engine.WithApp(app.Spec.Name, app.Hash),
		engine.WithLogger(logger),
	)
	return transport.NewServer(factory, transport.WithLogger(logger))
}

// newServeMux routes socket.io traffic to srv and exposes a health probe.
func newServeMux(app *LoadedApp, srv *transport.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/socket.io/", srv.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"app":      app.Spec.Name,
			"hash":     app.Hash,
			"sessions": srv.Live(),
			"version":  ir.EngineVersion,
		})
	})
	return mux
}
