package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ms-eventsync/internal/config"
	"ms-eventsync/internal/logger"
	"ms-eventsync/internal/models"
)

// OrdersGateway reads orders and products from the commerce API. Orders are
// fetched in bounded chunks to respect remote request-size limits.
type OrdersGateway struct {
	cfg    config.CommerceConfig
	client *http.Client
	logger *logger.Logger
}

func NewOrdersGateway(cfg config.CommerceConfig, client *http.Client, log *logger.Logger) *OrdersGateway {
	return &OrdersGateway{cfg: cfg, client: client, logger: log}
}

func (g *OrdersGateway) Validate() error {
	if g.cfg.BaseURL == "" || g.cfg.Key == "" || g.cfg.Secret == "" {
		return fmt.Errorf("commerce API: %w", ErrMissingCredentials)
	}
	return nil
}

// FetchOrders retrieves full order objects for the given ids, accumulating
// across chunks before returning.
func (g *OrdersGateway) FetchOrders(ctx context.Context, orderIDs []int64) ([]models.RawOrder, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	chunkSize := g.cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 20
	}

	var orders []models.RawOrder
	for start := 0; start < len(orderIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(orderIDs) {
			end = len(orderIDs)
		}
		chunk, err := g.fetchOrderChunk(ctx, orderIDs[start:end])
		if err != nil {
			return nil, err
		}
		orders = append(orders, chunk...)
	}

	g.logger.LogGateway("ORDERS", fmt.Sprintf("fetched %d orders for %d ids", len(orders), len(orderIDs)))
	return orders, nil
}

func (g *OrdersGateway) fetchOrderChunk(ctx context.Context, orderIDs []int64) ([]models.RawOrder, error) {
	include := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		include[i] = strconv.FormatInt(id, 10)
	}

	params := url.Values{}
	params.Set("include", strings.Join(include, ","))
	params.Set("per_page", strconv.Itoa(len(orderIDs)))
	reqURL := fmt.Sprintf("%s/orders?%s", strings.TrimRight(g.cfg.BaseURL, "/"), params.Encode())

	var orders []models.RawOrder
	if err := g.getJSON(ctx, reqURL, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// FetchProduct retrieves one product with its metadata key/value pairs.
func (g *OrdersGateway) FetchProduct(ctx context.Context, productID int64) (*models.RawProduct, error) {
	reqURL := fmt.Sprintf("%s/products/%d", strings.TrimRight(g.cfg.BaseURL, "/"), productID)
	var product models.RawProduct
	if err := g.getJSON(ctx, reqURL, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (g *OrdersGateway) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create commerce request: %w", err)
	}
	req.SetBasicAuth(g.cfg.Key, g.cfg.Secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return &TransportError{URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportError{URL: reqURL, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{URL: reqURL, Err: err}
	}
	return nil
}
