package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in redis so the login boundary can run behind more
// than one broker instance. Expiry is delegated to redis key TTLs, which makes
// the hourly sweep a no-op for this backend.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(token string) string {
	return fmt.Sprintf("signal_session:%s", token)
}

func (s *RedisStore) Issue(ctx context.Context, userID string, role Role, ttl time.Duration) (string, *Session, error) {
	token, err := NewToken()
	if err != nil {
		return "", nil, err
	}
	expiresAt := time.Now().Add(ttl)

	key := sessionKey(token)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "user_id", userID, "role", string(role), "expires_at", expiresAt.Unix())
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", nil, err
	}

	return token, &Session{UserID: userID, Role: role, ExpiresAt: expiresAt}, nil
}

func (s *RedisStore) Validate(ctx context.Context, token string) (*Session, bool) {
	fields, err := s.client.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil || len(fields) == 0 {
		// Fail closed on lookup errors as well as misses.
		return nil, false
	}

	sess := &Session{
		UserID: fields["user_id"],
		Role:   Role(fields["role"]),
	}
	var unix int64
	fmt.Sscanf(fields["expires_at"], "%d", &unix)
	sess.ExpiresAt = time.Unix(unix, 0)

	if sess.Expired(time.Now()) {
		s.client.Del(ctx, sessionKey(token))
		return nil, false
	}
	return sess, true
}

func (s *RedisStore) Revoke(ctx context.Context, token string) {
	s.client.Del(ctx, sessionKey(token))
}

func (s *RedisStore) Count(ctx context.Context) int {
	var count int
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "signal_session:*", 100).Result()
		if err != nil {
			return count
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count
		}
	}
}
