// Package otp issues the 4-digit password-reset verification codes.
// A code is bound to one user, expires after a TTL and can be consumed
// exactly once.
package otp

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/meatshop-backoffice/internal/utils"
)

const (
	CodeLength = 4
	// issueAttempts bounds the retries when a freshly drawn code collides
	// with one still pending for another user.
	issueAttempts = 8
)

var (
	ErrMalformed = errors.New("code must be 4 digits")
	ErrMismatch  = errors.New("code is wrong, expired or already used")
	ErrExhausted = errors.New("no free verification code available")
)

var codePattern = regexp.MustCompile(`^[0-9]{4}$`)

// Valid reports whether code has the 4-digit shape.
func Valid(code string) bool { return codePattern.MatchString(code) }

type Store interface {
	// Issue draws a new code for userID.
	Issue(ctx context.Context, userID uint64) (string, error)
	// Consume returns the user the code was issued for and deletes it.
	Consume(ctx context.Context, code string) (uint64, error)
}

// RedisStore keeps codes as "<prefix>:<code>" -> user id with SET NX EX,
// and consumes them with GETDEL so a code cannot be used twice.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: "otp:code"}
}

func (s *RedisStore) Issue(ctx context.Context, userID uint64) (string, error) {
	for i := 0; i < issueAttempts; i++ {
		code, err := utils.RandomDigits(CodeLength)
		if err != nil {
			return "", err
		}
		ok, err := s.rdb.SetNX(ctx, s.key(code), strconv.FormatUint(userID, 10), s.ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return code, nil
		}
	}
	return "", ErrExhausted
}

func (s *RedisStore) Consume(ctx context.Context, code string) (uint64, error) {
	if !Valid(code) {
		return 0, ErrMalformed
	}
	v, err := s.rdb.GetDel(ctx, s.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMismatch
	}
	if err != nil {
		return 0, err
	}
	uid, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, ErrMismatch
	}
	return uid, nil
}

func (s *RedisStore) key(code string) string { return s.prefix + ":" + code }

// MemoryStore is the single-process fallback used when Redis is down.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	codes map[string]pending
	now   func() time.Time
}

type pending struct {
	userID  uint64
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, codes: map[string]pending{}, now: time.Now}
}

func (s *MemoryStore) Issue(_ context.Context, userID uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for code, p := range s.codes {
		if !now.Before(p.expires) {
			delete(s.codes, code)
		}
	}
	for i := 0; i < issueAttempts; i++ {
		code, err := utils.RandomDigits(CodeLength)
		if err != nil {
			return "", err
		}
		if _, taken := s.codes[code]; taken {
			continue
		}
		s.codes[code] = pending{userID: userID, expires: now.Add(s.ttl)}
		return code, nil
	}
	return "", ErrExhausted
}

func (s *MemoryStore) Consume(_ context.Context, code string) (uint64, error) {
	if !Valid(code) {
		return 0, ErrMalformed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.codes[code]
	if !ok {
		return 0, ErrMismatch
	}
	delete(s.codes, code)
	if !s.now().Before(p.expires) {
		return 0, ErrMismatch
	}
	return p.userID, nil
}
