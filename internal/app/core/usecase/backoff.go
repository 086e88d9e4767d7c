package usecase

import (
	"context"
	"math/rand/v2"
	"time"
)

const maxBackoffShift = 16

// backoffDelay 指數退避 + full jitter，回傳 [0, base*2^attempt)
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	ceiling := base << attempt
	return time.Duration(rand.Int64N(int64(ceiling)))
}

// sleepContext 等待 d 或 ctx 結束
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
