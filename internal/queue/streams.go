package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iago/career-agent/internal/domain"
)

type StreamsConfig struct {
	Addr      string
	Password  string
	DB        int
	Stream    string
	DLQStream string
	Group     string
	Consumer  string
}

// StreamsQueue implements Producer, Consumer and DeadLetters on Redis Streams.
type StreamsQueue struct {
	client    *redis.Client
	stream    string
	dlqStream string
	group     string
	consumer  string
}

func NewStreamsQueue(ctx context.Context, cfg StreamsConfig) (*StreamsQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "career_signals"
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = "career_signals_dlq"
	}
	if cfg.Group == "" {
		cfg.Group = "career_dispatchers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "agent-1"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := &StreamsQueue{
		client:    client,
		stream:    cfg.Stream,
		dlqStream: cfg.DLQStream,
		group:     cfg.Group,
		consumer:  cfg.Consumer,
	}
	if err := queue.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return queue, nil
}

func (q *StreamsQueue) Close() error {
	return q.client.Close()
}

func (q *StreamsQueue) Enqueue(ctx context.Context, message domain.SignalMessage) error {
	values, err := encodeSignal(message)
	if err != nil {
		return err
	}
	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.stream, Values: values}).Result(); err != nil {
		return fmt.Errorf("enqueue to stream: %w", err)
	}
	return nil
}

// Consume acknowledges each entry once the handler returns. Handlers that
// spawn work are responsible for dead-lettering their own failures.
func (q *StreamsQueue) Consume(ctx context.Context, handler func(context.Context, domain.SignalMessage) error) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				message, parseErr := decodeSignal(item.Values)
				if parseErr != nil {
					_ = q.deadLetterRaw(ctx, item, parseErr.Error())
				} else if handleErr := handler(ctx, message); handleErr != nil {
					_ = q.DeadLetter(ctx, message, handleErr.Error())
				}
				_ = q.ackAndDelete(ctx, item.ID)
			}
		}
	}
}

func (q *StreamsQueue) DeadLetter(ctx context.Context, message domain.SignalMessage, reason string) error {
	values, err := encodeSignal(message)
	if err != nil {
		return err
	}
	values["error"] = reason
	values["moved_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values}).Result(); err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	return nil
}

func (q *StreamsQueue) deadLetterRaw(ctx context.Context, item redis.XMessage, reason string) error {
	values := map[string]any{
		"stream_id": item.ID,
		"error":     reason,
		"moved_at":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if raw, ok := item.Values["signal"]; ok {
		values["signal"] = raw
	}
	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values}).Result(); err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	return nil
}

func (q *StreamsQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

func (q *StreamsQueue) ackAndDelete(ctx context.Context, streamID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, streamID).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	if err := q.client.XDel(ctx, q.stream, streamID).Err(); err != nil {
		return fmt.Errorf("xdel: %w", err)
	}
	return nil
}

// encodeSignal stores the signal as one JSON field plus its id for XRANGE readability.
func encodeSignal(message domain.SignalMessage) (map[string]any, error) {
	encoded, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encode signal: %w", err)
	}
	return map[string]any{
		"signal_id": message.SignalID,
		"signal":    string(encoded),
	}, nil
}

func decodeSignal(values map[string]any) (domain.SignalMessage, error) {
	raw, ok := values["signal"]
	if !ok {
		return domain.SignalMessage{}, errors.New("missing field signal")
	}
	var payload []byte
	switch casted := raw.(type) {
	case string:
		payload = []byte(casted)
	case []byte:
		payload = casted
	default:
		payload = []byte(fmt.Sprintf("%v", casted))
	}

	var message domain.SignalMessage
	if err := json.Unmarshal(payload, &message); err != nil {
		return domain.SignalMessage{}, fmt.Errorf("decode signal: %w", err)
	}
	if message.SignalID == "" {
		return domain.SignalMessage{}, errors.New("signal without id")
	}
	return message, nil
}
