package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"usermgmt/console/internal/config"
)

func TestNewRedisClient_UnreachableFails(t *testing.T) {
	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Nil(t, client)
	assert.ErrorContains(t, err, "redis ping")
}
