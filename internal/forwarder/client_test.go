package forwarder

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("http://central:8000/log", "watcher", 15*time.Second)
	assert.Equal(t, "http://central:8000/log", c.URL())
	assert.Equal(t, 15*time.Second, c.httpClient.Timeout)
}

func TestForward_Success(t *testing.T) {
	var gotBody, gotType, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"stored":true}`))
	}))
	defer server.Close()

	c := New(server.URL+"/log", "watcher", 5*time.Second)
	event := `{"timestamp":"2024-05-01T10:00:00.000000+0000","event_type":"alert","src_ip":"10.0.0.1"}`

	res, err := c.Forward(context.Background(), []byte(event))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `{"stored":true}`, string(res.Body))
	assert.Equal(t, "/log", gotPath)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, event, gotBody)
}

func TestForward_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("collector busy"))
	}))
	defer server.Close()

	_, err := New(server.URL+"/log", "watcher", 5*time.Second).Forward(context.Background(), []byte(`{}`))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "collector busy", string(statusErr.Body))
	assert.Contains(t, err.Error(), "503")
}

func TestForward_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(url+"/log", "watcher", time.Second).Forward(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestForward_NotConfigured(t *testing.T) {
	_, err := New("", "watcher", time.Second).Forward(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilClient *Client
	_, err = nilClient.Forward(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestForward_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(server.URL+"/log", "watcher", 5*time.Second).Forward(ctx, []byte(`{}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
