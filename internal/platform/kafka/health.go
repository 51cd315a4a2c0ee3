package kafka

import (
	"context"
	"fmt"
	"net"
	"time"

	"walletfeed/pkg/platform/strings"
)

// HealthChecker checks Kafka broker connectivity.
type HealthChecker struct {
	brokers []string
	timeout time.Duration
}

// NewHealthChecker creates a checker for a comma-separated broker list.
func NewHealthChecker(brokers string) *HealthChecker {
	return &HealthChecker{
		brokers: strings.SplitCSV(brokers),
		timeout: 5 * time.Second,
	}
}

// Check returns nil if at least one broker accepts a TCP connection.
func (h *HealthChecker) Check(ctx context.Context) error {
	if len(h.brokers) == 0 {
		return fmt.Errorf("kafka brokers not configured")
	}

	var lastErr error
	for _, broker := range h.brokers {
		dialer := net.Dialer{Timeout: h.timeout}
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("no kafka brokers reachable: %w", lastErr)
}

// Name returns the check name for health reporting.
func (h *HealthChecker) Name() string {
	return "kafka"
}
