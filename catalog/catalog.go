// Package catalog is a read-only client for the remote product catalogue.
//
// Unlike order submission, catalogue reads are safe to retry, so this
// client rides on retryablehttp with a small retry budget. Products convert
// to cart line items at the boundary, which is also where decimal prices
// become cents.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mkellner/storefront-engine/cart"
	"github.com/mkellner/storefront-engine/money"
)

// Product is a catalogue entry as the service returns it.
type Product struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
	InStock     bool    `json:"inStock"`
}

// LineItem converts the product into a cart entry with the given quantity.
func (p Product) LineItem(quantity int) cart.LineItem {
	return cart.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: money.FromDollars(p.Price),
		Quantity:  quantity,
		ImageURL:  p.Image,
		Brand:     p.Brand,
	}
}

// ListParams filter and page a product listing.
type ListParams struct {
	Category string
	Page     int
	Limit    int
}

// Client fetches products from the catalogue service.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient creates a catalogue client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = timeout
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = slog.NewLogLogger(logger.Handler(), slog.LevelDebug)

	return &Client{baseURL: baseURL, httpClient: rc}
}

// List fetches a page of products.
func (c *Client) List(ctx context.Context, params ListParams) ([]Product, error) {
	q := url.Values{}
	if params.Category != "" {
		q.Set("category", params.Category)
	}
	if params.Page > 0 {
		q.Set("page", fmt.Sprint(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", fmt.Sprint(params.Limit))
	}

	endpoint := c.baseURL + "/products"
	if encoded := q.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var decoded struct {
		Products []Product `json:"products"`
	}
	if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
		return nil, err
	}
	return decoded.Products, nil
}

// Get fetches a single product by ID.
func (c *Client) Get(ctx context.Context, id string) (*Product, error) {
	var product Product
	if err := c.getJSON(ctx, c.baseURL+"/products/"+url.PathEscape(id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Search fetches products matching the query string.
func (c *Client) Search(ctx context.Context, query string) ([]Product, error) {
	endpoint := c.baseURL + "/products/search?q=" + url.QueryEscape(query)

	var decoded struct {
		Products []Product `json:"products"`
	}
	if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
		return nil, err
	}
	return decoded.Products, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalogue request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("catalogue entry not found: %s", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("catalogue request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
