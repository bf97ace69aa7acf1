//go:build integration

package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"verichain/internal/platform/kafka/producer"
	"verichain/pkg/platform/outbox"
	outboxpostgres "verichain/pkg/platform/outbox/store/postgres"
	"verichain/pkg/platform/outbox/worker"
	"verichain/pkg/testutil/containers"
)

type WorkerIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	store    *outboxpostgres.Store
	producer *producer.Producer
}

func TestWorkerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WorkerIntegrationSuite))
}

func (s *WorkerIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())
	s.store = outboxpostgres.New(s.postgres.DB)

	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *WorkerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close(context.Background())
	}
}

func (s *WorkerIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateModuleTables(context.Background()))
}

func (s *WorkerIntegrationSuite) TestCredentialEventReachesKafka() {
	ctx := context.Background()
	topic := "verichain-test-credential-events"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic))

	entry, err := outbox.NewJSONEntry("credential", uuid.NewString(), "credential.issued",
		map[string]string{"token_id": "7"}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(ctx, entry))

	runCtx, cancel := context.WithCancel(ctx)
	w := worker.New(s.store, s.producer,
		worker.WithTopic(topic),
		worker.WithPollInterval(50*time.Millisecond),
	)
	done := make(chan error, 1)
	go func() { done <- w.Run(runCtx) }()

	s.Eventually(func() bool {
		n, _ := s.store.CountPending(ctx)
		return n == 0
	}, 10*time.Second, 50*time.Millisecond)
	cancel()
	s.Require().NoError(<-done)

	record, err := s.kafka.ReadRecord(ctx, topic, entry.ID.String(), 5*time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(record)
	headers := make(map[string]string)
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal("credential.issued", headers["event_type"])
	s.JSONEq(`{"token_id":"7"}`, string(record.Value))
}
