package realtime

import (
	"fmt"
	"strings"

	"concept-review-be/internal/pkg/logger"
)

const (
	DriverMemory = "memory"
	DriverNats   = "nats"
	DriverRedis  = "redis"
)

type Options struct {
	Driver   string
	Prefix   string
	NatsURL  string
	RedisURL string
}

// NewBus builds the bus for the configured driver.
func NewBus(opts Options, log logger.ILogger) (Bus, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverMemory:
		return NewGoChannelBus(opts.Prefix, log), nil
	case DriverNats:
		return NewNatsBus(opts.NatsURL, opts.Prefix, log)
	case DriverRedis:
		return NewRedisBus(opts.RedisURL, opts.Prefix, log)
	}
	return nil, fmt.Errorf("unknown realtime driver %q", opts.Driver)
}
