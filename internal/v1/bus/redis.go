// Package bus provides optional Redis pub/sub fan-out so the relay can run as
// multiple replicas. Direct envelopes travel on a per-connection channel;
// broadcasts travel on a shared lobby channel. In single-instance mode every
// operation is a silent no-op.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/medibridge/telehealth/backend/go/internal/v1/metrics"
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
)

// PubSubPayload is the standardized container for moving envelopes between instances.
type PubSubPayload struct {
	// Origin identifies the publishing instance. CRITICAL: used to prevent
	// echo loops on the lobby channel.
	Origin   string            `json:"origin"`
	Envelope protocol.Envelope `json:"envelope"`
}

const lobbyChannel = "telehealth:lobby"

func connChannel(target string) string {
	return "telehealth:conn:" + target
}

// Service handles all interaction with the Redis cluster.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService creates a Redis connection and verifies it immediately.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	slog.Info("Connected to Redis pub/sub", "addr", addr)
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

func (s *Service) publish(ctx context.Context, channel string, payload PubSubPayload) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal pubsub envelope: %w", err)
		}
		return nil, s.client.Publish(ctx, channel, data).Err()
	})
	return err
}

// PublishDirect forwards an envelope to whichever instance holds the target connection.
func (s *Service) PublishDirect(ctx context.Context, target string, env protocol.Envelope, originInstance string) error {
	if s == nil || s.client == nil {
		return nil // Single-instance mode, no Redis available
	}

	err := s.publish(ctx, connChannel(target), PubSubPayload{Origin: originInstance, Envelope: env})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			slog.Warn("Redis circuit breaker open: dropping direct envelope", "target", target, "event", string(env.Event))
			return nil // Graceful degradation: drop, don't crash caller
		}
		slog.Error("Redis PublishDirect failed", "target", target, "event", string(env.Event), "error", err)
		return err
	}
	return nil
}

// PublishLobby forwards a broadcast envelope to all other instances.
func (s *Service) PublishLobby(ctx context.Context, env protocol.Envelope, originInstance string) error {
	if s == nil || s.client == nil {
		return nil // Single-instance mode, no Redis available
	}

	err := s.publish(ctx, lobbyChannel, PubSubPayload{Origin: originInstance, Envelope: env})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			slog.Warn("Redis circuit breaker open: dropping lobby envelope", "event", string(env.Event))
			return nil
		}
		slog.Error("Redis PublishLobby failed", "event", string(env.Event), "error", err)
		return err
	}
	return nil
}

// SubscribeDirect listens for envelopes addressed to one connection. The
// listener goroutine exits when ctx is cancelled.
func (s *Service) SubscribeDirect(ctx context.Context, target string, handler func(protocol.Envelope)) {
	if s == nil || s.client == nil {
		return
	}
	s.subscribe(ctx, connChannel(target), "", handler)
}

// SubscribeLobby listens for broadcast envelopes from other instances,
// skipping messages this instance published itself.
func (s *Service) SubscribeLobby(ctx context.Context, originInstance string, handler func(protocol.Envelope)) {
	if s == nil || s.client == nil {
		return
	}
	s.subscribe(ctx, lobbyChannel, originInstance, handler)
}

func (s *Service) subscribe(ctx context.Context, channel string, skipOrigin string, handler func(protocol.Envelope)) {
	pubsub := s.client.Subscribe(ctx, channel)

	go func() {
		defer pubsub.Close()

		slog.Info("Subscribed to Redis channel", "channel", channel)

		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					slog.Warn("Redis subscription channel closed", "channel", channel)
					return
				}

				var payload PubSubPayload
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					slog.Error("Failed to unmarshal Redis message", "error", err, "raw", msg.Payload)
					continue
				}

				if skipOrigin != "" && payload.Origin == skipOrigin {
					continue // our own lobby broadcast echoed back
				}

				handler(payload.Envelope)
			}
		}
	}()
}

// Ping checks Redis connectivity. Used by health checks.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil // Single-instance mode, no Redis available
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
		}
		return err
	}
	return nil
}

// Close gracefully shuts down the Redis connection
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
