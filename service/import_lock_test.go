package service

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRedis answers commands in process so no server is needed.
type scriptedRedis struct {
	setNX      bool
	releaseErr error
	released   []string
}

func (h *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook {
	return func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (h *scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		switch strings.ToLower(cmd.Name()) {
		case "set":
			if c, ok := cmd.(*redis.BoolCmd); ok {
				c.SetVal(h.setNX)
			}
			return nil
		case "evalsha", "eval":
			h.released = append(h.released, cmd.Name())
			if h.releaseErr != nil {
				cmd.SetErr(h.releaseErr)
				return h.releaseErr
			}
			if c, ok := cmd.(*redis.Cmd); ok {
				c.SetVal(int64(1))
			}
			return nil
		}
		return nil
	}
}

func (h *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newScriptedLocker(t *testing.T, hook *scriptedRedis) (*RedisImportLocker, *bytes.Buffer) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })

	var buf bytes.Buffer
	locker := NewRedisImportLocker(client, time.Minute)
	locker.log = zerolog.New(&buf)
	return locker, &buf
}

func TestRedisImportLockerHeld(t *testing.T) {
	locker, _ := newScriptedLocker(t, &scriptedRedis{setNX: false})

	_, err := locker.Acquire(context.Background(), docID)
	assert.ErrorIs(t, err, ErrImportInProgress)
}

func TestRedisImportLockerRelease(t *testing.T) {
	hook := &scriptedRedis{setNX: true}
	locker, logs := newScriptedLocker(t, hook)

	release, err := locker.Acquire(context.Background(), docID)
	require.NoError(t, err)
	release()

	assert.NotEmpty(t, hook.released)
	assert.Empty(t, logs.String())
}

func TestRedisImportLockerLogsFailedRelease(t *testing.T) {
	hook := &scriptedRedis{setNX: true, releaseErr: errors.New("connection reset")}
	locker, logs := newScriptedLocker(t, hook)

	release, err := locker.Acquire(context.Background(), docID)
	require.NoError(t, err)
	release()

	out := logs.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "connection reset")
	assert.Contains(t, out, `"pdf_id":7`)
}
