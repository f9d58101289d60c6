package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LeventeLantos/account-provisioner/internal/model"
	"github.com/LeventeLantos/account-provisioner/internal/phone"
)

type RedisMailbox struct {
	rdb    *redis.Client
	prefix string
	clock  clockwork.Clock
	logger *zap.Logger
}

type Option func(*RedisMailbox)

func WithKeyPrefix(prefix string) Option {
	return func(m *RedisMailbox) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(m *RedisMailbox) { m.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *RedisMailbox) { m.logger = l }
}

func NewRedisMailbox(rdb *redis.Client, opts ...Option) *RedisMailbox {
	m := &RedisMailbox{
		rdb:    rdb,
		prefix: DefaultKeyPrefix,
		clock:  clockwork.NewRealClock(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *RedisMailbox) Key(rawPhone string) string {
	return phone.MailboxKey(m.prefix, rawPhone)
}

// FetchOnce returns nil when the key is absent or holds something that is not
// an OTP record. Only transport errors are returned.
func (m *RedisMailbox) FetchOnce(ctx context.Context, rawPhone string) (*model.OtpRecord, error) {
	key := m.Key(rawPhone)

	raw, err := m.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var probe struct {
		OTP *string `json:"otp"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		m.logger.Warn("otp payload is not valid json", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if probe.OTP == nil {
		m.logger.Warn("otp payload has no otp string", zap.String("key", key), zap.ByteString("raw", raw))
		return nil, nil
	}

	var rec model.OtpRecord
	// Metadata fields of an unexpected type are left zero.
	_ = json.Unmarshal(raw, &rec)
	rec.OTP = *probe.OTP
	return &rec, nil
}

// WaitFor polls every poll interval until a record whose OTP differs from
// lastSeen shows up, or timeout elapses (nil, nil). Read errors while polling
// count as "no OTP yet". Cancelling ctx ends the wait with ctx.Err().
func (m *RedisMailbox) WaitFor(ctx context.Context, rawPhone, lastSeen string, timeout, poll time.Duration) (*model.OtpRecord, error) {
	if poll <= 0 {
		return nil, errors.New("poll interval must be > 0")
	}
	deadline := m.clock.Now().Add(timeout)

	for attempt := 1; ; attempt++ {
		rec, err := m.FetchOnce(ctx, rawPhone)
		switch {
		case err != nil:
			m.logger.Warn("otp poll failed", zap.String("key", m.Key(rawPhone)), zap.Int("attempt", attempt), zap.Error(err))
		case rec != nil && rec.OTP != "" && rec.OTP != lastSeen:
			return rec, nil
		}

		remaining := deadline.Sub(m.clock.Now())
		if remaining <= 0 {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.clock.After(min(poll, remaining)):
		}
	}
}
