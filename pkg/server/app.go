package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "PVResonance/pkg/http"
	pkgkafka "PVResonance/pkg/kafka"
	applogger "PVResonance/pkg/logger"
)

// App runs the HTTP server and the optional request consumer until a
// termination signal arrives.
type App struct {
	log      *applogger.Logger
	http     *xhttp.Server
	consumer *pkgkafka.Consumer
	handler  pkgkafka.MessageHandler
	stopWait time.Duration
}

// New assembles an App. consumer and handler may be nil. Infrastructure
// clients are closed by the caller after Run returns.
func New(
	log *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handler pkgkafka.MessageHandler,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		log:      log,
		http:     httpServer,
		consumer: consumer,
		handler:  handler,
		stopWait: 30 * time.Second,
	}
}

// Run starts every component and blocks until SIGINT, SIGTERM or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.consumer != nil && a.handler != nil {
		a.consumer.RegisterHandler(a.handler)
		if err := a.consumer.Start(ctx); err != nil {
			return err
		}
		a.log.Info("backtest request consumer started", applogger.String("topic", a.handler.Topic()))
	}
	if a.http != nil {
		if err := a.http.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			return a.shutdown(err)
		}
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(nil)
}

// shutdown stops intake: HTTP first, then the consumer.
func (a *App) shutdown(cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.stopWait)
	defer cancel()

	errs := []error{cause}
	if a.http != nil {
		if err := a.http.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil && a.handler != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
