package breaker

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent tekrar denenmemesi gereken hatayı işaretler (ör. provider 4xx).
// Servis cevap verdiği için breaker'a başarı olarak yazılır.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WithRetry fn'i en fazla maxRetries deneme ile çalıştırır. Her denemeden önce
// breaker'a sorulur; devre açıksa fn çağrılmadan models.ErrCircuitOpen döner.
// Denemeler arasında 2^attempt saniye + [0,1s) jitter beklenir.
func (r *Registry) WithRetry(ctx context.Context, service string, maxRetries int, fn func(ctx context.Context) error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		done, err := r.Allow(service)
		if err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		err = fn(ctx)

		var perm *permanentError
		if errors.As(err, &perm) {
			done(true)
			return perm.err
		}

		done(err == nil)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxRetries-1 {
			break
		}

		delay := backoff(attempt) + r.jitter()
		log.Warn().
			Err(err).
			Str("service", service).
			Int("attempt", attempt+1).
			Dur("retry_in", delay).
			Msg("🔁 Dış servis çağrısı başarısız, tekrar denenecek")

		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: %d deneme başarısız: %w", service, maxRetries, lastErr)
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int64N(int64(time.Second)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
