package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/technosupport/ts-signal/internal/session"
)

func newRedisStore(t *testing.T) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return session.NewRedisStore(client), mr
}

func TestRedis_IssueValidateRevoke(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	token, _, err := store.Issue(ctx, "cam_lobby", session.RoleCamera, time.Hour)
	assert.NoError(t, err)

	sess, ok := store.Validate(ctx, token)
	assert.True(t, ok)
	assert.Equal(t, "cam_lobby", sess.UserID)
	assert.Equal(t, session.RoleCamera, sess.Role)

	store.Revoke(ctx, token)
	_, ok = store.Validate(ctx, token)
	assert.False(t, ok)
}

func TestRedis_ExpiryViaTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	token, _, err := store.Issue(ctx, "viewer1", session.RoleViewer, time.Minute)
	assert.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, ok := store.Validate(ctx, token)
	assert.False(t, ok, "token past redis TTL must not validate")
}

func TestRedis_Count(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := store.Issue(ctx, "user", session.RoleViewer, time.Hour)
		assert.NoError(t, err)
	}
	assert.Equal(t, 3, store.Count(ctx))
}
