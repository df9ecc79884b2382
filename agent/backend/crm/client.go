package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

const maxResponseSizeBytes = 4 << 20

type Config struct {
	URL     string        `envconfig:"URL" split_words:"true" default:"http://localhost:8001"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// Client talks to the CRM REST service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ contractx.CRM = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("crm url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid crm url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) GetCustomerByEmail(ctx context.Context, email string) (statex.Customer, error) {
	var out statex.Customer
	err := c.get(ctx, "/customers/by_email", url.Values{"email": {email}}, contractx.ErrCustomerNotFound, &out)
	if err != nil {
		return statex.Customer{}, err
	}
	if strings.TrimSpace(out.CustomerID) == "" {
		return statex.Customer{}, fmt.Errorf("%w: email=%s", contractx.ErrCustomerNotFound, email)
	}
	return out, nil
}

func (c *Client) GetConsumptionPoints(ctx context.Context, customerID string, family statex.ProductFamily) ([]statex.ConsumptionPoint, error) {
	var query url.Values
	if family != "" {
		query = url.Values{"product_family": {string(family)}}
	}
	out := []statex.ConsumptionPoint{}
	path := "/customers/" + url.PathEscape(customerID) + "/consumption_points"
	if err := c.get(ctx, path, query, contractx.ErrCustomerNotFound, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetContracts(ctx context.Context, customerID string) ([]statex.Contract, error) {
	out := []statex.Contract{}
	path := "/customers/" + url.PathEscape(customerID) + "/contracts"
	if err := c.get(ctx, path, nil, contractx.ErrCustomerNotFound, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetContractPayments(ctx context.Context, customerID, contractID string) ([]statex.Payment, error) {
	out := []statex.Payment{}
	path := "/customers/customer/" + url.PathEscape(customerID) + "/contracts/" + url.PathEscape(contractID) + "/payments"
	if err := c.get(ctx, path, nil, contractx.ErrInvalidArgument, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// get decodes a JSON response into out. 404 maps to notFound, 5xx and transport
// failures to ErrUpstreamUnavailable.
func (c *Client) get(ctx context.Context, path string, query url.Values, notFound error, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build crm request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: crm %s: %v", contractx.ErrUpstreamUnavailable, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("%w: read crm response: %v", contractx.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: crm %s: %s", notFound, path, strings.TrimSpace(string(raw)))
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: crm status=%d path=%s", contractx.ErrUpstreamUnavailable, resp.StatusCode, path)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		// the planner sent arguments the CRM rejects and can correct them
		return fmt.Errorf("%w: crm status=%d path=%s body=%s", contractx.ErrInvalidArgument, resp.StatusCode, path, strings.TrimSpace(string(raw)))
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		// auth and other client errors are not the model's to fix
		return fmt.Errorf("%w: crm status=%d path=%s", contractx.ErrUpstreamUnavailable, resp.StatusCode, path)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode crm response %s: %v", contractx.ErrUpstreamUnavailable, path, err)
	}
	return nil
}
