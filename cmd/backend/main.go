package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"golang.org/x/sync/errgroup"

	"portrait/internal"
)

// backend runs the web front-end and, in queued mode, the generation relay in
// one process.
func main() {
	cfg, err := internal.ReadConfig[internal.AppConfig]()
	if err != nil {
		slog.Error("Failed to read config", slog.String("error", err.Error()))
		return
	}

	app, err := internal.NewApp(cfg)

	if err != nil {
		slog.Error("Failed to create app", slog.String("error", err.Error()))
		return
	}
	defer app.Close()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", app.Config.Port),
		Handler: internal.BuildRouter(app),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Generation.Queued {
		saramaConfig := sarama.NewConfig()
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
		consumerGroup, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.Group, saramaConfig)
		if err != nil {
			slog.Error("Failed to create consumer group", slog.String("error", err.Error()))
			return
		}

		submitter := internal.NewGenerationClient(cfg.Generation, &http.Client{Timeout: 30 * time.Second})
		consumer := internal.NewConsumer(cfg.Kafka, submitter)

		g.Go(func() error {
			slog.Info("Starting consumer")
			return consumer.Run(ctx, consumerGroup)
		})

		g.Go(func() error {
			<-ctx.Done()
			return consumerGroup.Close()
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Finishing", slog.String("error", err.Error()))
	}
}
