package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsKey(t *testing.T) {
	assert.Equal(t, "helioscope:node:web-01:records", RecordsKey("web-01"))
	assert.Equal(t, "helioscope:node:unknown:records", RecordsKey(""))
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		addr    string
		db      int
		pass    string
		wantErr bool
	}{
		{name: "host and port", url: "redis://localhost:6379", addr: "localhost:6379"},
		{name: "default port", url: "redis://cache", addr: "cache:6379"},
		{name: "database", url: "redis://localhost:6379/3", addr: "localhost:6379", db: 3},
		{name: "password", url: "redis://:s3cret@localhost:6380/1", addr: "localhost:6380", db: 1, pass: "s3cret"},
		{name: "empty", url: "", wantErr: true},
		{name: "wrong scheme", url: "http://localhost:6379", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseRedisURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, opts.Addr)
			assert.Equal(t, tt.db, opts.DB)
			assert.Equal(t, tt.pass, opts.Password)
			assert.Equal(t, "helioscope", opts.ClientName)
		})
	}
}

func TestAppendCapped(t *testing.T) {
	client, err := NewClientLazy("redis://127.0.0.1:1")
	require.NoError(t, err)
	defer client.Close()

	t.Run("nothing to append", func(t *testing.T) {
		assert.NoError(t, client.AppendCapped(context.Background(), "k", 10, time.Minute))
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := client.AppendCapped(ctx, "k", 10, time.Minute, []byte("{}"))
		assert.Error(t, err)
	})
}

func TestTailNonPositiveLimit(t *testing.T) {
	client, err := NewClientLazy("redis://127.0.0.1:1")
	require.NoError(t, err)
	defer client.Close()

	got, err := client.Tail(context.Background(), "k", 0)
	assert.NoError(t, err)
	assert.Nil(t, got)
}
