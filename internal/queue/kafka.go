package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Kafka is the durable, multi-process Queue backend.
type Kafka struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

// NewKafka connects a writer and a consumer-group reader to the same topic.
func NewKafka(brokers []string, topic, groupID string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
	}
}

func (k *Kafka) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Value: data})
}

func (k *Kafka) Dequeue(ctx context.Context) (Job, error) {
	msg, err := k.reader.ReadMessage(ctx)
	if err != nil {
		return Job{}, fmt.Errorf("queue: read message: %w", err)
	}
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		return Job{}, fmt.Errorf("queue: unmarshal job: %w", err)
	}
	return job, nil
}

func (k *Kafka) Close() error {
	werr := k.writer.Close()
	rerr := k.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

var _ Queue = (*Kafka)(nil)
