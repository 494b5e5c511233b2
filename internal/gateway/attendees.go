package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ms-eventsync/internal/config"
	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/models"
)

// AttendeesGateway fetches ticket-purchase records for one event. It
// paginates transparently and supports a "modified since" filter for delta
// syncs. A failure here only affects the event being fetched.
type AttendeesGateway struct {
	cfg    config.TicketingConfig
	client *http.Client
	logger *logger.Logger
}

func NewAttendeesGateway(cfg config.TicketingConfig, client *http.Client, log *logger.Logger) *AttendeesGateway {
	return &AttendeesGateway{cfg: cfg, client: client, logger: log}
}

// RawAttendee is one attendee as the ticketing API reports it. Several
// name and email field spellings coexist across provider versions.
type RawAttendee struct {
	ID           int64   `json:"id"`
	PostID       int64   `json:"post_id"`
	EventID      int64   `json:"event_id"`
	TicketID     int64   `json:"ticket_id"`
	OrderID      int64   `json:"order_id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	FullName     string  `json:"full_name"`
	HolderName   string  `json:"holder_name"`
	BillingFirst string  `json:"billing_first_name"`
	BillingLast  string  `json:"billing_last_name"`
	Email        string  `json:"email"`
	BillingEmail string  `json:"billing_email"`
	CreatedAt    string  `json:"created_at"`
	ModifiedAt   string  `json:"modified_at"`
	CheckedIn    bool    `json:"checked_in"`
	Provider     string  `json:"provider"`
	IsPurchaser  bool    `json:"is_purchaser"`
	Price        float64 `json:"price"`
}

// BestEventID prefers the explicit event id, falling back to the post id.
func (a RawAttendee) BestEventID() int64 {
	if a.EventID != 0 {
		return a.EventID
	}
	return a.PostID
}

func (a RawAttendee) BestEmail() string {
	if strings.TrimSpace(a.Email) != "" {
		return strings.TrimSpace(a.Email)
	}
	return strings.TrimSpace(a.BillingEmail)
}

// AttendeeResult is one event's accumulated attendee fetch. ObservedTotal is
// the remote's reported total count when the protocol exposed one, else 0.
type AttendeeResult struct {
	Records       []models.AttendeeRecord
	ObservedTotal int
}

// attendeePage is the one place the two response shapes (bare array vs
// wrapped object) are resolved. Downstream code only ever sees this struct.
type attendeePage struct {
	Records []RawAttendee
	Total   int
}

type wrappedAttendeePage struct {
	Attendees  []RawAttendee `json:"attendees"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

// ListAttendees fetches all attendees of one event. When since is non-nil
// only records modified at or after that time are requested (delta mode).
// Pages are requested until one comes back short.
func (g *AttendeesGateway) ListAttendees(ctx context.Context, eventID int64, since *time.Time) (*AttendeeResult, error) {
	pageSize := g.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	result := &AttendeeResult{}
	for page := 1; ; page++ {
		p, err := g.fetchPage(ctx, eventID, page, pageSize, since)
		if err != nil {
			return nil, err
		}
		for _, raw := range p.Records {
			result.Records = append(result.Records, normalizeAttendee(eventID, raw))
		}
		if p.Total > 0 {
			result.ObservedTotal = p.Total
		}
		if len(p.Records) < pageSize {
			break
		}
	}

	mode := "full"
	if since != nil {
		mode = "delta"
	}
	g.logger.LogGateway("ATTENDEES",
		fmt.Sprintf("event %d: %s fetch returned %d records (observed total %d)",
			eventID, mode, len(result.Records), result.ObservedTotal))
	return result, nil
}

func (g *AttendeesGateway) fetchPage(ctx context.Context, eventID int64, page, pageSize int, since *time.Time) (*attendeePage, error) {
	params := url.Values{}
	params.Set("event", strconv.FormatInt(eventID, 10))
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(pageSize))
	if since != nil {
		params.Set("modified_since", since.UTC().Format(time.RFC3339))
	}
	reqURL := fmt.Sprintf("%s/attendees?%s", strings.TrimRight(g.cfg.BaseURL, "/"), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create attendees request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{URL: reqURL, Status: resp.StatusCode}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	p, err := decodeAttendeePage(raw)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	// Header counts take precedence over body fields when both exist.
	if total := headerTotal(resp.Header); total > 0 {
		p.Total = total
	}
	return p, nil
}

// decodeAttendeePage resolves the response shape exactly once: some plugin
// versions return a bare array, others an object with an "attendees" field.
func decodeAttendeePage(raw json.RawMessage) (*attendeePage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var records []RawAttendee
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, err
		}
		return &attendeePage{Records: records}, nil
	}

	var wrapped wrappedAttendeePage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return &attendeePage{Records: wrapped.Attendees, Total: wrapped.Total}, nil
}

func headerTotal(h http.Header) int {
	for _, key := range []string{"X-Total-Count", "X-WP-Total"} {
		if v := h.Get(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

func normalizeAttendee(eventID int64, raw RawAttendee) models.AttendeeRecord {
	id := raw.BestEventID()
	if id == 0 {
		id = eventID
	}
	return models.AttendeeRecord{
		EventID:     id,
		AttendeeID:  raw.ID,
		OrderID:     raw.OrderID,
		TicketID:    raw.TicketID,
		Name:        ResolveDisplayName(raw),
		Email:       raw.BestEmail(),
		CreatedAt:   parseAPITime(raw.CreatedAt),
		ModifiedAt:  parseAPITime(raw.ModifiedAt),
		CheckedIn:   raw.CheckedIn,
		Price:       raw.Price,
		Provider:    raw.Provider,
		IsPurchaser: raw.IsPurchaser,
	}
}

func parseAPITime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
