package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/telhawk-systems/telhawk-sensor/common/logging"
	"github.com/telhawk-systems/telhawk-sensor/internal/forwarder"
)

var (
	// ErrInvalidJSON is returned when the payload does not parse.
	ErrInvalidJSON = errors.New("invalid JSON payload")
	// ErrUnsupportedPayload is returned for JSON that is neither an object
	// nor an array.
	ErrUnsupportedPayload = errors.New("unsupported JSON payload: must be an array or an object")
	// ErrAllEventsFailed is returned when no event was accepted upstream.
	ErrAllEventsFailed = errors.New("failed to process every event")
)

// Forwarder posts one event upstream. *forwarder.Client implements it.
type Forwarder interface {
	Forward(ctx context.Context, body []byte) (*forwarder.Result, error)
}

// IngestService relays EVE events pushed over HTTP to the central API.
type IngestService struct {
	forwarder Forwarder
	logger    *slog.Logger
}

func NewIngestService(fwd Forwarder, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{forwarder: fwd, logger: logger}
}

// eveEnvelope holds the well-known EVE fields. An item whose known fields
// have the wrong JSON type is not an EVE event and is skipped.
type eveEnvelope struct {
	Timestamp *string  `json:"timestamp"`
	EventType *string  `json:"event_type"`
	SrcIP     *string  `json:"src_ip"`
	DestIP    *string  `json:"dest_ip"`
	Tags      []string `json:"tags"`
}

// Ingest accepts one EVE object or an array of them, forwards each event
// individually and returns the upstream replies: the single reply itself when
// exactly one event succeeded, otherwise a JSON array of replies.
func (s *IngestService) Ingest(ctx context.Context, payload []byte) (json.RawMessage, error) {
	items, err := splitPayload(payload)
	if err != nil {
		return nil, err
	}
	if s.forwarder == nil {
		return nil, forwarder.ErrNotConfigured
	}

	results := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		var envelope eveEnvelope
		if err := json.Unmarshal(item, &envelope); err != nil || !isObject(item) {
			s.logger.Warn("skipping item that is not an EVE event", slog.Int("index", i))
			continue
		}

		res, err := s.forwarder.Forward(ctx, item)
		if err != nil {
			if errors.Is(err, forwarder.ErrNotConfigured) {
				return nil, err
			}
			var statusErr *forwarder.StatusError
			if errors.As(err, &statusErr) {
				s.logger.Warn("central API rejected event", slog.Int("index", i), logging.Status(statusErr.StatusCode))
			} else {
				s.logger.Error("failed to forward event", slog.Int("index", i), logging.Error(err))
			}
			continue
		}

		if !json.Valid(res.Body) {
			s.logger.Error("central API returned a non-JSON body", slog.Int("index", i), logging.Status(res.StatusCode))
			continue
		}
		results = append(results, json.RawMessage(bytes.TrimSpace(res.Body)))
	}

	switch len(results) {
	case 0:
		return nil, ErrAllEventsFailed
	case 1:
		return results[0], nil
	default:
		out, err := json.Marshal(results)
		if err != nil {
			return nil, fmt.Errorf("encode results: %w", err)
		}
		return out, nil
	}
}

func splitPayload(payload []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if !json.Valid(trimmed) {
		return nil, ErrInvalidJSON
	}

	switch trimmed[0] {
	case '{':
		return []json.RawMessage{trimmed}, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		return items, nil
	default:
		return nil, ErrUnsupportedPayload
	}
}

func isObject(item json.RawMessage) bool {
	trimmed := bytes.TrimSpace(item)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
