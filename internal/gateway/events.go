package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ms-eventsync/internal/config"
	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/models"
)

// EventsGateway fetches the canonical event list from the ticketing API.
// Pure fetch, no side effects; any failure here is fatal for the sync run
// that requested it.
type EventsGateway struct {
	cfg    config.TicketingConfig
	client *http.Client
	logger *logger.Logger
}

func NewEventsGateway(cfg config.TicketingConfig, client *http.Client, log *logger.Logger) *EventsGateway {
	return &EventsGateway{cfg: cfg, client: client, logger: log}
}

func (g *EventsGateway) Validate() error {
	if g.cfg.BaseURL == "" || g.cfg.APIKey == "" {
		return fmt.Errorf("ticketing API: %w", ErrMissingCredentials)
	}
	return nil
}

type eventListResponse struct {
	Events []models.RawEvent `json:"events"`
}

// ListEvents returns every event the ticketing system knows about.
func (g *EventsGateway) ListEvents() ([]models.RawEvent, error) {
	url := fmt.Sprintf("%s/events?per_page=100", strings.TrimRight(g.cfg.BaseURL, "/"))

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{URL: url, Status: resp.StatusCode}
	}

	var body eventListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	g.logger.LogGateway("EVENTS", fmt.Sprintf("fetched %d events", len(body.Events)))
	return body.Events, nil
}
