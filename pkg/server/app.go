package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"FinScan/internal/domain/models"
	"FinScan/pkg/config"
	xhttp "FinScan/pkg/http"
	applogger "FinScan/pkg/logger"
)

// Runner runs the detection pipeline for one file.
type Runner interface {
	Run(ctx context.Context, path string) (*models.Result, error)
}

// Closer releases an infrastructure client on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	pipeline   Runner
	httpServer *xhttp.Server
	closers    []Closer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, pipeline Runner, httpServer *xhttp.Server, closers ...Closer) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		log:        log,
		pipeline:   pipeline,
		httpServer: httpServer,
		closers:    closers,
	}
}

// RunOnce processes a single file and prints the metrics text to out.
func (a *App) RunOnce(ctx context.Context, input string, out io.Writer) error {
	defer a.closeAll()

	res, err := a.pipeline.Run(ctx, input)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(out, res.MetricsText); err != nil {
		return fmt.Errorf("print metrics: %w", err)
	}
	if res.Artifacts.Chart != "" {
		a.log.Info("chart written", applogger.String("path", res.Artifacts.Chart))
	}
	a.log.Info("report written", applogger.String("path", res.Artifacts.AnomalyReport))
	return nil
}

// Run starts the HTTP server and blocks until interrupted or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := a.httpServer.Start()
	a.log.Info("finscan started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("model", a.cfg.Model.Algorithm),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			a.log.Error("http server error", applogger.Error(err))
			runErr = err
		}
	}

	return errors.Join(runErr, a.shutdown())
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.log.Info("shutting down")

	var err error
	if serr := a.httpServer.Stop(context.Background()); serr != nil {
		a.log.Error("http shutdown error", applogger.Error(serr))
		err = serr
	}
	a.closeAll()

	a.log.Info("shutdown complete")
	return err
}

// closeAll releases clients in reverse construction order.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("client", c.Name), applogger.Error(err))
		}
	}
	a.closers = nil
}
