package main

import (
	"context"
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

func main() {
	cfg, err := internal.ReadConfig[internal.WorkerConfig]()
	if err != nil {
		slog.Error("Failed to read config", slog.String("error", err.Error()))
		return
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	consumerGroup, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.Group, saramaConfig)
	if err != nil {
		slog.Error("Failed to create consumer group", slog.String("error", err.Error()))
		return
	}

	submitter := internal.NewGenerationClient(cfg.Generation, &http.Client{Timeout: 30 * time.Second})
	consumer := internal.NewConsumer(cfg.Kafka, submitter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting consumer")
		return consumer.Run(ctx, consumerGroup)
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down consumer")
		return consumerGroup.Close()
	})

	if err := g.Wait(); err != nil {
		slog.Error("Failed to run consumer", slog.String("error", err.Error()))
	}
}
