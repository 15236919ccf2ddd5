package statsd

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cactus/go-statsd-client/v5/statsd"

	"github.com/V4T54L/hekad-gateway/internal/domain"
)

const flushInterval = 300 * time.Millisecond

// Client adapts a statsd.Statter to domain.Counter.
type Client struct {
	statter statsd.Statter
}

// Inc increments stat by value at full sample rate.
func (c *Client) Inc(stat string, value int64) error {
	return c.statter.Inc(stat, value, 1.0)
}

// Close flushes and closes the underlying client.
func (c *Client) Close() error {
	return c.statter.Close()
}

// Configurator creates at most one statsd client per prefix.
type Configurator struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewConfigurator creates an empty Configurator.
func NewConfigurator(logger *slog.Logger) *Configurator {
	return &Configurator{
		logger:  logger.With("component", "statsd"),
		clients: make(map[string]*Client),
	}
}

// Configure implements domain.MetricsConfigurer.
func (c *Configurator) Configure(cfg domain.MetricsSinkConfig) (domain.Counter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[cfg.Prefix]; ok {
		return client, nil
	}

	addr := net.JoinHostPort(cfg.ServerName, strconv.Itoa(cfg.ServerPort))
	statter, err := statsd.NewClientWithConfig(&statsd.ClientConfig{
		Address:       addr,
		Prefix:        cfg.Prefix,
		UseBuffered:   true,
		FlushInterval: flushInterval,
		FlushBytes:    cfg.MaxUDPPacketSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure statsd client for %s: %w", addr, err)
	}

	client := &Client{statter: statter}
	c.clients[cfg.Prefix] = client
	c.logger.Info("Configured statsd client", "address", addr, "prefix", cfg.Prefix, "max_packet_size", cfg.MaxUDPPacketSize)
	return client, nil
}

// Close closes every client created so far.
func (c *Configurator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for prefix, client := range c.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.clients, prefix)
	}
	return firstErr
}
