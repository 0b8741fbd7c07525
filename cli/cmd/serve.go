package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sflowg/randomnode/internal/metrics"
	"github.com/sflowg/randomnode/runtime"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the hosted nodes over HTTP",
	Long: `Serve exposes the nodes on the address from the config file:

  GET  /nodes               list node descriptions
  GET  /nodes/:name         describe one node
  POST /nodes/:name/execute execute one batch
  GET  /metrics             Prometheus metrics (path set by metrics.path)
`,
	Args: cobra.NoArgs,
	RunE: serve,
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer h.close()

	g := gin.New()
	g.Use(gin.Recovery())
	if cfg := h.app.Config.Metrics; cfg.Enabled {
		metrics.New(cfg).Register(g)
	}
	runtime.NewHttpHandler(h.app.Container, h.app.Runner, g)

	srv := &http.Server{
		Addr:    h.app.Config.Server.Addr,
		Handler: g,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("Serving nodes", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	h.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.app.Config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
