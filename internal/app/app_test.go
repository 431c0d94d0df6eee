package app

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sharetube/tuneverse/internal/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	return AppConfig{
		Host:             "127.0.0.1",
		Port:             8080,
		LogLevel:         "info",
		MembersLimit:     16,
		QueueLimit:       100,
		ChatHistoryLimit: 50,
		HostGracePeriod:  30 * time.Second,
		RoomCleanupDelay: 30 * time.Second,
		SendBuffer:       64,
		DirectoryDriver:  DirectoryNone,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*AppConfig)
		wantErr bool
	}{
		{name: "valid", modify: func(*AppConfig) {}},
		{name: "bad log level", modify: func(c *AppConfig) { c.LogLevel = "loud" }, wantErr: true},
		{name: "zero port", modify: func(c *AppConfig) { c.Port = 0 }, wantErr: true},
		{name: "zero members limit", modify: func(c *AppConfig) { c.MembersLimit = 0 }, wantErr: true},
		{name: "zero queue limit", modify: func(c *AppConfig) { c.QueueLimit = 0 }, wantErr: true},
		{name: "zero chat history", modify: func(c *AppConfig) { c.ChatHistoryLimit = 0 }, wantErr: true},
		{name: "negative grace", modify: func(c *AppConfig) { c.HostGracePeriod = -time.Second }, wantErr: true},
		{name: "zero cleanup delay", modify: func(c *AppConfig) { c.RoomCleanupDelay = 0 }, wantErr: true},
		{name: "zero send buffer", modify: func(c *AppConfig) { c.SendBuffer = 0 }, wantErr: true},
		{name: "unknown driver", modify: func(c *AppConfig) { c.DirectoryDriver = "mongo" }, wantErr: true},
		{name: "postgres without dsn", modify: func(c *AppConfig) { c.DirectoryDriver = DirectoryPostgres }, wantErr: true},
		{name: "postgres", modify: func(c *AppConfig) {
			c.DirectoryDriver = DirectoryPostgres
			c.PostgresDSN = "postgres://localhost/tuneverse"
		}},
		{name: "redis", modify: func(c *AppConfig) { c.DirectoryDriver = DirectoryRedis }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewDirectoryStoreRedis(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	cfg := validConfig()
	cfg.DirectoryDriver = DirectoryRedis
	cfg.RedisHost = s.Host()
	cfg.RedisPort = mustPort(t, s.Port())

	store, closeStore, err := newDirectoryStore(ctx, &cfg, newLogger("error"))
	require.NoError(t, err)
	defer closeStore()

	require.NoError(t, store.Upsert(ctx, directory.Listing{Id: "AF3D", Name: "friday", ParticipantCount: 1, Participants: []string{"alice"}}))
	listings, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "friday", listings[0].Name)
}

func TestNewDirectoryStoreRedisUnavailable(t *testing.T) {
	s := miniredis.RunT(t)
	port := mustPort(t, s.Port())
	s.Close()

	cfg := validConfig()
	cfg.DirectoryDriver = DirectoryRedis
	cfg.RedisHost = "127.0.0.1"
	cfg.RedisPort = port

	_, _, err := newDirectoryStore(context.Background(), &cfg, newLogger("error"))
	assert.Error(t, err)
}

func TestNewDirectoryStoreNone(t *testing.T) {
	cfg := validConfig()

	store, closeStore, err := newDirectoryStore(context.Background(), &cfg, newLogger("error"))
	require.NoError(t, err)
	defer closeStore()

	listings, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func mustPort(t *testing.T, port string) int {
	t.Helper()

	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return p
}
