package internal

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
)

// Producer relays generation requests to the worker through Kafka.
type Producer struct {
	config   KafkaConfig
	producer sarama.SyncProducer
}

var _ GenerationSubmitter = (*Producer)(nil)

func NewProducer(config KafkaConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	return NewProducerFromClient(config, producer), nil
}

func NewProducerFromClient(config KafkaConfig, producer sarama.SyncProducer) *Producer {
	return &Producer{
		config:   config,
		producer: producer,
	}
}

func (producer *Producer) Submit(_ context.Context, request *GenerationRequest) error {
	jsonRequest, err := json.Marshal(request)
	if err != nil {
		return err
	}

	_, _, err = producer.producer.SendMessage(&sarama.ProducerMessage{
		Topic: producer.config.GenerationTopic,
		Value: sarama.StringEncoder(jsonRequest),
	})
	return err
}

func (producer *Producer) Close() error {
	return producer.producer.Close()
}
