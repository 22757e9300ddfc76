package utils_test

import (
	"context"
	"testing"
	"time"

	"github.com/vexlio/doorkeep/pkg/utils"
	"go.uber.org/zap"
)

func TestContextSleep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		duration       time.Duration
		cancelAfter    time.Duration
		expectedResult utils.SleepResult
	}{
		{
			name:           "sleep completes normally",
			duration:       10 * time.Millisecond,
			cancelAfter:    0, // no cancellation
			expectedResult: utils.SleepCompleted,
		},
		{
			name:           "context cancelled before sleep completes",
			duration:       100 * time.Millisecond,
			cancelAfter:    10 * time.Millisecond,
			expectedResult: utils.SleepCancelled,
		},
		{
			name:           "zero duration sleep",
			duration:       0,
			cancelAfter:    0,
			expectedResult: utils.SleepCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			if tt.cancelAfter > 0 {
				go func() {
					time.Sleep(tt.cancelAfter)
					cancel()
				}()
			}

			result := utils.ContextSleep(ctx, tt.duration)
			if result != tt.expectedResult {
				t.Errorf("ContextSleep() = %v, want %v", result, tt.expectedResult)
			}
		})
	}
}

func TestContextSleepWithLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		duration       time.Duration
		cancelAfter    time.Duration
		cancelMessage  string
		expectedResult utils.SleepResult
	}{
		{
			name:           "sleep completes with logging",
			duration:       10 * time.Millisecond,
			cancelAfter:    0,
			cancelMessage:  "test message",
			expectedResult: utils.SleepCompleted,
		},
		{
			name:           "context cancelled with logging",
			duration:       100 * time.Millisecond,
			cancelAfter:    10 * time.Millisecond,
			cancelMessage:  "cancelled message",
			expectedResult: utils.SleepCancelled,
		},
		{
			name:           "context cancelled with empty message",
			duration:       100 * time.Millisecond,
			cancelAfter:    10 * time.Millisecond,
			cancelMessage:  "",
			expectedResult: utils.SleepCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			logger := zap.NewNop() // Use no-op logger for tests

			if tt.cancelAfter > 0 {
				go func() {
					time.Sleep(tt.cancelAfter)
					cancel()
				}()
			}

			result := utils.ContextSleepWithLog(ctx, tt.duration, logger, tt.cancelMessage)
			if result != tt.expectedResult {
				t.Errorf("ContextSleepWithLog() = %v, want %v", result, tt.expectedResult)
			}
		})
	}
}

func TestContextGuard(t *testing.T) {
	t.Parallel()

	t.Run("active context", func(t *testing.T) {
		t.Parallel()

		if utils.ContextGuard(t.Context()) {
			t.Error("ContextGuard() = true, want false for active context")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		if !utils.ContextGuard(ctx) {
			t.Error("ContextGuard() = false, want true for cancelled context")
		}
	})
}

func TestErrorSleep(t *testing.T) {
	t.Parallel()

	t.Run("sleep completes", func(t *testing.T) {
		t.Parallel()

		if !utils.ErrorSleep(t.Context(), 10*time.Millisecond, zap.NewNop(), "test worker") {
			t.Error("ErrorSleep() = false, want true when sleep completes")
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		if utils.ErrorSleep(ctx, 100*time.Millisecond, zap.NewNop(), "test worker") {
			t.Error("ErrorSleep() = true, want false when context cancelled")
		}
	})
}

func TestIntervalSleep(t *testing.T) {
	t.Parallel()

	t.Run("sleep completes", func(t *testing.T) {
		t.Parallel()

		if !utils.IntervalSleep(t.Context(), 10*time.Millisecond, zap.NewNop(), "test worker") {
			t.Error("IntervalSleep() = false, want true when sleep completes")
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		if utils.IntervalSleep(ctx, 100*time.Millisecond, zap.NewNop(), "test worker") {
			t.Error("IntervalSleep() = true, want false when context cancelled")
		}
	})
}
