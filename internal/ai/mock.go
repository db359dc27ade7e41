package ai

import (
	"context"
	"fmt"
	"time"
)

// DefaultMockDelay simulates vendor latency
const DefaultMockDelay = time.Second

const mockTemplate = "[MOCK RESPONSE]\n\nЦе тестова відповідь. Система працює в режимі емуляції.\n\nВаш запит: \"%s\"\n\n(Для повноцінної роботи потрібен API Key)"

// MockProvider needs no configuration: it waits Delay and echoes the query.
type MockProvider struct {
	Delay time.Duration
}

// Generate implements Provider
func (m *MockProvider) Generate(ctx context.Context, query string) (string, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Sprintf(mockTemplate, query), nil
}
