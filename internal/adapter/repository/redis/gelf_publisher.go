package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisNotAvailable is returned while the publisher considers Redis down.
var ErrRedisNotAvailable = errors.New("redis is not available")

// GelfPublisher pushes GELF records onto a Redis list for downstream
// collectors. The file sink remains the durable copy; records written while
// Redis is down are dropped here.
type GelfPublisher struct {
	client      *redis.Client
	key         string
	maxLen      int64
	logger      *slog.Logger
	isAvailable atomic.Bool
}

// NewGelfPublisher creates a publisher writing to the list key. A positive
// maxLen caps the list, trimming the oldest records.
func NewGelfPublisher(client *redis.Client, key string, maxLen int64, logger *slog.Logger) *GelfPublisher {
	p := &GelfPublisher{
		client: client,
		key:    key,
		maxLen: maxLen,
		logger: logger.With("component", "redis_gelf_publisher"),
	}
	p.isAvailable.Store(true) // Assume available initially
	return p
}

// StartHealthCheck pings Redis every interval and flips availability. It
// blocks until ctx is done.
func (p *GelfPublisher) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stopping Redis health check")
			return
		case <-ticker.C:
			if err := p.client.Ping(ctx).Err(); err != nil {
				if p.isAvailable.CompareAndSwap(true, false) {
					p.logger.Error("Redis connection lost", "error", err)
				}
			} else if p.isAvailable.CompareAndSwap(false, true) {
				p.logger.Info("Redis connection recovered")
			}
		}
	}
}

// Write appends record, minus its trailing newline, to the list.
func (p *GelfPublisher) Write(ctx context.Context, record []byte) error {
	if !p.isAvailable.Load() {
		return ErrRedisNotAvailable
	}

	payload := bytes.TrimRight(record, "\n")
	pipe := p.client.Pipeline()
	pipe.RPush(ctx, p.key, payload)
	if p.maxLen > 0 {
		pipe.LTrim(ctx, p.key, -p.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		if isNetworkError(err) && p.isAvailable.CompareAndSwap(true, false) {
			p.logger.Error("Redis connection lost during write", "error", err)
		}
		return fmt.Errorf("failed to RPUSH GELF record: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *GelfPublisher) Close() error {
	return nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
