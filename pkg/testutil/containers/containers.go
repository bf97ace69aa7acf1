//go:build integration

// Package containers starts the Postgres, Redis and Kafka instances the
// integration tests run against. Each is started on first use and shared by
// every suite in the test binary; Ryuk removes them when the binary exits.
package containers

import (
	"sync"
	"testing"
)

type Manager struct {
	postgres lazy[*PostgresContainer]
	kafka    lazy[*KafkaContainer]
	redis    lazy[*RedisContainer]
}

var manager = &Manager{}

func GetManager() *Manager {
	return manager
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	return m.postgres.get(t, NewPostgresContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	return m.kafka.get(t, NewKafkaContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	return m.redis.get(t, NewRedisContainer)
}

// lazy starts its value once. A start that fails the test is retried by the
// next caller.
type lazy[T any] struct {
	mu    sync.Mutex
	value T
	ok    bool
}

func (l *lazy[T]) get(t *testing.T, start func(*testing.T) T) T {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ok {
		l.value = start(t)
		l.ok = true
	}
	return l.value
}
