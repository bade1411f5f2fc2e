package internal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"
)

// Consumer forwards queued generation requests to the remote job queue.
type Consumer struct {
	config    KafkaConfig
	submitter GenerationSubmitter
}

func NewConsumer(config KafkaConfig, submitter GenerationSubmitter) *Consumer {
	return &Consumer{
		config:    config,
		submitter: submitter,
	}
}

func (consumer *Consumer) Run(ctx context.Context, consumerGroup sarama.ConsumerGroup) error {
	for {
		if err := consumerGroup.Consume(ctx, []string{consumer.config.GenerationTopic}, consumer); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			slog.Error("Error from consumer", slog.String("error", err.Error()))
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				slog.Info("message channel was closed")
				return nil
			}
			if message.Topic != consumer.config.GenerationTopic {
				slog.Error("Unknown topic", slog.String("topic", message.Topic))
				session.MarkMessage(message, "")
				continue
			}
			// Failed submissions are not retried.
			if err := consumer.ProcessGeneration(session.Context(), message.Value); err != nil {
				slog.Error("Error processing message", slog.String("error", err.Error()))
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (consumer *Consumer) ProcessGeneration(ctx context.Context, value []byte) error {
	var request GenerationRequest

	if err := json.Unmarshal(value, &request); err != nil {
		return err
	}

	slog.Info("Submitting generation job", slog.String("prompt", request.Prompt), slog.String("exhibit", request.ExhibitName))

	if err := consumer.submitter.Submit(ctx, &request); err != nil {
		return err
	}

	slog.Info("Generation job submitted", slog.String("prompt", request.Prompt))
	return nil
}
