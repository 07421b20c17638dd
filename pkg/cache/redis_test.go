package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicer-enrichment/registrar-api/pkg/config"
)

func TestNewRedisDisabled(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{Enabled: false, Host: "unreachable"})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{Enabled: true, DB: 2, Password: "pw"})
	require.NotNil(t, opts)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "pw", opts.Password)

	opts = Options(config.RedisConfig{Enabled: true, Host: "::1", Port: 6380})
	assert.Equal(t, "[::1]:6380", opts.Addr)
}
