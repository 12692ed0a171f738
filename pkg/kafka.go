package pkg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// KafkaPublisher is an events.Publisher over a sarama SyncProducer. Messages
// are keyed so every record of one notice lands on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	keyFunc  func(msg []byte) string
}

func NewKafkaPublisher(brokers string, keyFunc func(msg []byte) string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Retry.Backoff = 100 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 10 * time.Second
	cfg.Net.WriteTimeout = 10 * time.Second

	var brokerList []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}

	producer, err := sarama.NewSyncProducer(brokerList, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaPublisher{producer: producer, keyFunc: keyFunc}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	pm := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(msg),
	}
	if p.keyFunc != nil {
		if key := p.keyFunc(msg); key != "" {
			pm.Key = sarama.StringEncoder(key)
		}
	}

	if _, _, err := p.producer.SendMessage(pm); err != nil {
		return fmt.Errorf("cannot publish to %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
