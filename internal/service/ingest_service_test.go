package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-sensor/internal/forwarder"
)

type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, body []byte) (*forwarder.Result, error) {
	args := m.Called(ctx, string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forwarder.Result), args.Error(1)
}

func ok(body string) *forwarder.Result {
	return &forwarder.Result{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestIngest_SingleObject(t *testing.T) {
	fwd := new(MockForwarder)
	fwd.On("Forward", mock.Anything, `{"event_type":"alert"}`).Return(ok(`{"id":1}`), nil)

	out, err := NewIngestService(fwd, nil).Ingest(context.Background(), []byte(` {"event_type":"alert"} `))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(out))
	fwd.AssertExpectations(t)
}

func TestIngest_ArrayCollectsSuccesses(t *testing.T) {
	fwd := new(MockForwarder)
	fwd.On("Forward", mock.Anything, `{"event_type":"flow"}`).Return(ok(`{"id":1}`), nil)
	fwd.On("Forward", mock.Anything, `{"event_type":"dns"}`).Return(nil, &forwarder.StatusError{StatusCode: http.StatusInternalServerError})
	fwd.On("Forward", mock.Anything, `{"event_type":"http"}`).Return(ok(`not json`), nil)
	fwd.On("Forward", mock.Anything, `{"event_type":"tls"}`).Return(ok(`{"id":4}`), nil)

	payload := `[{"event_type":"flow"},42,{"event_type":"dns"},{"event_type":"http"},{"event_type":"tls"},{"event_type":7}]`
	out, err := NewIngestService(fwd, nil).Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1},{"id":4}]`, string(out))
	fwd.AssertNumberOfCalls(t, "Forward", 4)
}

func TestIngest_AllFailed(t *testing.T) {
	fwd := new(MockForwarder)
	fwd.On("Forward", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := NewIngestService(fwd, nil).Ingest(context.Background(), []byte(`[{"a":1},{"b":2}]`))
	assert.ErrorIs(t, err, ErrAllEventsFailed)

	_, err = NewIngestService(fwd, nil).Ingest(context.Background(), []byte(`[]`))
	assert.ErrorIs(t, err, ErrAllEventsFailed)
}

func TestIngest_PayloadErrors(t *testing.T) {
	svc := NewIngestService(new(MockForwarder), nil)

	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{name: "empty", payload: "", want: ErrInvalidJSON},
		{name: "truncated", payload: `{"event_type":`, want: ErrInvalidJSON},
		{name: "string", payload: `"alert"`, want: ErrUnsupportedPayload},
		{name: "number", payload: `12`, want: ErrUnsupportedPayload},
		{name: "null", payload: `null`, want: ErrUnsupportedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Ingest(context.Background(), []byte(tt.payload))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIngest_NotConfigured(t *testing.T) {
	_, err := NewIngestService(nil, nil).Ingest(context.Background(), []byte(`{"a":1}`))
	assert.ErrorIs(t, err, forwarder.ErrNotConfigured)

	var client *forwarder.Client
	_, err = NewIngestService(client, nil).Ingest(context.Background(), []byte(`{"a":1}`))
	assert.ErrorIs(t, err, forwarder.ErrNotConfigured)
}
