//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaContainer is a single-node Redpanda broker speaking the Kafka protocol.
type KafkaContainer struct {
	Container *kafka.KafkaContainer
	Brokers   string
}

func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()
	ctx := context.Background()

	container, err := kafka.Run(ctx, "redpandadata/redpanda:latest", kafka.WithClusterID("verichain-test"))
	if err != nil {
		t.Fatalf("start kafka: %v", err)
	}
	brokers, err := container.Brokers(ctx)
	if err != nil || len(brokers) == 0 {
		_ = container.Terminate(ctx)
		t.Fatalf("kafka brokers: %v", err)
	}
	return &KafkaContainer{Container: container, Brokers: brokers[0]}
}

// CreateTopic makes a single-partition topic so record order is preserved.
func (k *KafkaContainer) CreateTopic(ctx context.Context, topic string) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers))
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := kadm.NewClient(client).CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return err
	}
	return resp.Err
}

// ReadRecord consumes topic from the start until a record with the given key
// arrives or timeout passes. It returns nil on timeout.
func (k *KafkaContainer) ReadRecord(ctx context.Context, topic, key string, timeout time.Duration) (*kgo.Record, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(k.Brokers),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for ctx.Err() == nil {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil, nil
		}
		iter := fetches.RecordIter()
		for !iter.Done() {
			if r := iter.Next(); string(r.Key) == key {
				return r, nil
			}
		}
	}
	return nil, nil
}
