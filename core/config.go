package core

import (
	"fmt"
	"strings"
)

type BreakerConfig struct {
	FailureThreshold int `koanf:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold int `koanf:"success_threshold" mapstructure:"success_threshold"`
	TimeoutSeconds   int `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
}

type DeliveryConfig struct {
	MaxRetries      int   `koanf:"max_retries" mapstructure:"max_retries"`
	TimeoutSeconds  int   `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	BackoffSeconds  []int `koanf:"backoff_seconds" mapstructure:"backoff_seconds"`
	RatePerEndpoint int   `koanf:"rate_per_endpoint" mapstructure:"rate_per_endpoint"`
	RateBurst       int   `koanf:"rate_burst" mapstructure:"rate_burst"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Breaker     BreakerConfig  `koanf:"breaker" mapstructure:"breaker"`
	Delivery    DeliveryConfig `koanf:"delivery" mapstructure:"delivery"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "webhooks",
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 3,
			TimeoutSeconds:   30,
		},
		Delivery: DeliveryConfig{
			MaxRetries:     3,
			TimeoutSeconds: 5,
			BackoffSeconds: []int{1, 5, 30},
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("core: breaker.failure_threshold must be at least 1")
	}
	if c.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("core: breaker.success_threshold must be at least 1")
	}
	if c.Breaker.TimeoutSeconds < 1 {
		return fmt.Errorf("core: breaker.timeout_seconds must be at least 1")
	}
	if c.Delivery.MaxRetries < 0 {
		return fmt.Errorf("core: delivery.max_retries must not be negative")
	}
	if c.Delivery.TimeoutSeconds < 1 {
		return fmt.Errorf("core: delivery.timeout_seconds must be at least 1")
	}
	for _, seconds := range c.Delivery.BackoffSeconds {
		if seconds < 0 {
			return fmt.Errorf("core: delivery.backoff_seconds must not contain negative values")
		}
	}
	if c.Delivery.RatePerEndpoint < 0 {
		return fmt.Errorf("core: delivery.rate_per_endpoint must not be negative")
	}
	return nil
}
