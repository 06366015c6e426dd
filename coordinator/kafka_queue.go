package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
)

// KafkaQueueBackend implements QueueBackend over a single Kafka topic: a
// sync producer for Enqueue, a partition consumer reading from the oldest
// offset for Dequeue. A single partition is sufficient here since run
// ordering within one topic is the whole point (runs must dequeue roughly
// FIFO); sharding across partitions is a consumer-group concern left to the
// dequeuer process this package never implements (spec.md §1).
type KafkaQueueBackend struct {
	brokers []string
	topic   string

	mu       sync.Mutex
	producer sarama.SyncProducer
	consumer sarama.PartitionConsumer
	messages <-chan *sarama.ConsumerMessage
}

// NewKafkaQueueBackend builds a backend publishing/consuming run records on
// topic across brokers.
func NewKafkaQueueBackend(brokers []string, topic string) *KafkaQueueBackend {
	return &KafkaQueueBackend{brokers: brokers, topic: topic}
}

func (q *KafkaQueueBackend) ensureProducer() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.producer != nil {
		return nil
	}
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(q.brokers, cfg)
	if err != nil {
		return fmt.Errorf("kafka queue: new sync producer: %w", err)
	}
	q.producer = producer
	return nil
}

func (q *KafkaQueueBackend) ensureConsumer() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consumer != nil {
		return nil
	}
	cfg := sarama.NewConfig()
	consumer, err := sarama.NewConsumer(q.brokers, cfg)
	if err != nil {
		return fmt.Errorf("kafka queue: new consumer: %w", err)
	}
	partitionConsumer, err := consumer.ConsumePartition(q.topic, 0, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("kafka queue: consume partition: %w", err)
	}
	q.consumer = partitionConsumer
	q.messages = partitionConsumer.Messages()
	return nil
}

// Close releases the producer and consumer, if opened.
func (q *KafkaQueueBackend) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var errs []error
	if q.consumer != nil {
		if err := q.consumer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if q.producer != nil {
		if err := q.producer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("kafka queue: close: %v", errs)
	}
	return nil
}

func (q *KafkaQueueBackend) Enqueue(ctx context.Context, run *Run) error {
	if err := q.ensureProducer(); err != nil {
		return err
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("kafka queue: marshal run %s: %w", run.ID, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(run.ID),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka queue: send run %s: %w", run.ID, err)
	}
	return nil
}

func (q *KafkaQueueBackend) Dequeue(ctx context.Context) (*Run, error) {
	if err := q.ensureConsumer(); err != nil {
		return nil, err
	}
	select {
	case msg := <-q.messages:
		var run Run
		if err := json.Unmarshal(msg.Value, &run); err != nil {
			return nil, fmt.Errorf("kafka queue: unmarshal run: %w", err)
		}
		return &run, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
