// Package classify wraps the external labeling oracle behind a cache:
// check redis, check the store, only then call the oracle and persist the
// result. The oracle itself is opaque; nothing here inspects how it labels.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-eventsync/internal/config"
	"ms-eventsync/internal/gateway"
	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/models"
)

// MaxBatch bounds how many uncached events one call may send to the
// oracle; classification must never block a caller for a whole catalog.
const MaxBatch = 5

type ClassificationStore interface {
	GetClassification(ctx context.Context, eventID int64) (*models.Classification, error)
	PutClassification(ctx context.Context, c *models.Classification) error
}

type Service struct {
	cfg    config.OracleConfig
	store  ClassificationStore
	redis  *redis.Client
	client *http.Client
	logger *logger.Logger
}

// NewService builds the classifier. The redis client may be nil, in which
// case the service degrades to store-only caching.
func NewService(cfg config.OracleConfig, store ClassificationStore, rdb *redis.Client, client *http.Client, log *logger.Logger) *Service {
	return &Service{cfg: cfg, store: store, redis: rdb, client: client, logger: log}
}

type oracleRequest struct {
	EventID     int64    `json:"event_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Wines       []string `json:"wines,omitempty"`
}

type oracleResponse struct {
	DrinksCategory string  `json:"drinks_category"`
	Theme          string  `json:"theme"`
	Confidence     float64 `json:"confidence"`
}

func cacheKey(eventID int64) string {
	return fmt.Sprintf("classification:event:%d", eventID)
}

// Classify returns the label for one event, consulting redis, then the
// store, then the oracle. force skips both caches.
func (s *Service) Classify(ctx context.Context, event models.Event, force bool) (*models.Classification, error) {
	if !force {
		if cached := s.fromRedis(ctx, event.ExternalID); cached != nil {
			return cached, nil
		}
		stored, err := s.store.GetClassification(ctx, event.ExternalID)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			s.toRedis(ctx, stored)
			return stored, nil
		}
	}

	result, err := s.callOracle(ctx, event)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutClassification(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to persist classification: %w", err)
	}
	s.toRedis(ctx, result)
	return result, nil
}

// ClassifyBatch labels up to MaxBatch uncached events and reports how many
// oracle calls it made.
func (s *Service) ClassifyBatch(ctx context.Context, events []models.Event) (int, error) {
	calls := 0
	for _, ev := range events {
		if calls >= MaxBatch {
			break
		}
		if cached := s.fromRedis(ctx, ev.ExternalID); cached != nil {
			continue
		}
		stored, err := s.store.GetClassification(ctx, ev.ExternalID)
		if err != nil {
			return calls, err
		}
		if stored != nil {
			continue
		}
		if _, err := s.Classify(ctx, ev, true); err != nil {
			s.logger.Warn("CLASSIFY", fmt.Sprintf("event %d: oracle call failed: %v", ev.ExternalID, err))
			continue
		}
		calls++
	}
	return calls, nil
}

func (s *Service) callOracle(ctx context.Context, event models.Event) (*models.Classification, error) {
	if s.cfg.BaseURL == "" {
		return nil, fmt.Errorf("labeling oracle: %w", gateway.ErrMissingCredentials)
	}

	body, err := json.Marshal(oracleRequest{
		EventID:     event.ExternalID,
		Title:       event.Title,
		Description: event.Description,
		Wines:       event.Wines,
	})
	if err != nil {
		return nil, err
	}

	reqURL := strings.TrimRight(s.cfg.BaseURL, "/") + "/classify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &gateway.TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &gateway.TransportError{URL: reqURL, Status: resp.StatusCode}
	}

	var out oracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &gateway.TransportError{URL: reqURL, Err: err}
	}

	return &models.Classification{
		EventID:        event.ExternalID,
		DrinksCategory: out.DrinksCategory,
		Theme:          out.Theme,
		Confidence:     out.Confidence,
		ClassifiedAt:   time.Now(),
	}, nil
}

func (s *Service) fromRedis(ctx context.Context, eventID int64) *models.Classification {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, cacheKey(eventID)).Result()
	if err != nil {
		return nil
	}
	var c models.Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil
	}
	return &c
}

func (s *Service) toRedis(ctx context.Context, c *models.Classification) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(c.EventID), raw, s.cfg.CacheTTL).Err(); err != nil {
		s.logger.Warn("CLASSIFY", fmt.Sprintf("redis cache write failed: %v", err))
	}
}
