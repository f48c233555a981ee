package nats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/telhawk-systems/telhawk-sensor/common/messaging"
)

var _ messaging.Publisher = (*Client)(nil)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.URL)
	assert.Equal(t, -1, cfg.MaxReconnects)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	_, err := NewClient(cfg)
	assert.Error(t, err)
}

func TestClient_CloseWithoutConnection(t *testing.T) {
	c := &Client{}
	assert.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}
