package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/claims-responder-agent/agent/contract"
	statex "github.com/tanpawarit/claims-responder-agent/agent/state"
)

const maxResponseSizeBytes = 8 << 20

type Config struct {
	Endpoint              string        `envconfig:"ENDPOINT" split_words:"true"`
	APIKey                string        `envconfig:"API_KEY" split_words:"true"`
	Index                 string        `envconfig:"INDEX" split_words:"true" default:"claims"`
	APIVersion            string        `envconfig:"API_VERSION" split_words:"true" default:"2024-07-01"`
	SemanticConfiguration string        `envconfig:"SEMANTIC_CONFIGURATION" split_words:"true" default:"default"`
	ContentField          string        `envconfig:"CONTENT_FIELD" split_words:"true" default:"content"`
	MetadataField         string        `envconfig:"METADATA_FIELD" split_words:"true" default:"metadata"`
	VectorField           string        `envconfig:"VECTOR_FIELD" split_words:"true" default:"content_vector"`
	Timeout               time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"15s"`
}

// Client runs semantic hybrid queries against an Azure AI Search index of
// historical claims. Without an Embedder it falls back to a semantic text query.
type Client struct {
	cfg        Config
	searchURL  string
	embedder   Embedder
	httpClient *http.Client
}

var _ contractx.ClaimSearch = (*Client)(nil)

type Option func(*Client)

func WithEmbedder(e Embedder) Option {
	return func(c *Client) {
		c.embedder = e
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("search endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("search api key is required")
	}
	if strings.TrimSpace(cfg.Index) == "" {
		return nil, errors.New("search index is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		cfg: cfg,
		searchURL: fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s",
			endpoint, url.PathEscape(cfg.Index), url.QueryEscape(cfg.APIVersion)),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float64 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

type searchRequest struct {
	Search                string        `json:"search"`
	Top                   int           `json:"top"`
	QueryType             string        `json:"queryType,omitempty"`
	SemanticConfiguration string        `json:"semanticConfiguration,omitempty"`
	Select                string        `json:"select,omitempty"`
	VectorQueries         []vectorQuery `json:"vectorQueries,omitempty"`
}

type searchResponse struct {
	Value []map[string]json.RawMessage `json:"value"`
}

// ticketMetadata is the metadata document stored next to each indexed claim.
type ticketMetadata struct {
	ID              string `json:"id"`
	Category1       string `json:"category_1"`
	Category2       string `json:"category_2"`
	Category3       string `json:"category_3"`
	Status          string `json:"status"`
	CreatedBy       string `json:"created_by"`
	EIC             string `json:"eic"`
	Email           string `json:"email"`
	ResponseContent string `json:"response_content"`
}

func (c *Client) FindRelevantClaims(ctx context.Context, searchTerm string, k int) ([]statex.Ticket, error) {
	req := searchRequest{
		Search:                searchTerm,
		Top:                   k,
		QueryType:             "semantic",
		SemanticConfiguration: c.cfg.SemanticConfiguration,
		Select:                "id," + c.cfg.ContentField + "," + c.cfg.MetadataField,
	}
	if c.embedder != nil {
		vec, err := c.embedder.Embed(ctx, searchTerm)
		if err != nil {
			return nil, err
		}
		req.VectorQueries = []vectorQuery{{Kind: "vector", Vector: vec, Fields: c.cfg.VectorField, K: k}}
	}

	started := time.Now()
	var resp searchResponse
	if err := c.post(ctx, req, &resp); err != nil {
		return nil, err
	}

	tickets := make([]statex.Ticket, 0, len(resp.Value))
	for _, doc := range resp.Value {
		t, err := c.decodeTicket(doc)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	log.Debug().
		Str("index", c.cfg.Index).
		Int("k", k).
		Int("hits", len(tickets)).
		Bool("hybrid", c.embedder != nil).
		Dur("duration", time.Since(started)).
		Msg("claims search")
	return tickets, nil
}

func (c *Client) decodeTicket(doc map[string]json.RawMessage) (statex.Ticket, error) {
	var t statex.Ticket
	if raw, ok := doc[c.cfg.ContentField]; ok {
		if err := json.Unmarshal(raw, &t.RequestContent); err != nil {
			return statex.Ticket{}, fmt.Errorf("%w: decode %s: %v", contractx.ErrSearchBackend, c.cfg.ContentField, err)
		}
	}

	var meta ticketMetadata
	if raw, ok := doc[c.cfg.MetadataField]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		// the metadata field holds either an embedded object or its JSON string
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err == nil {
			raw = json.RawMessage(encoded)
		}
		if err := json.Unmarshal(raw, &meta); err != nil {
			return statex.Ticket{}, fmt.Errorf("%w: decode %s: %v", contractx.ErrSearchBackend, c.cfg.MetadataField, err)
		}
	}
	if meta.ID == "" {
		if raw, ok := doc["id"]; ok {
			_ = json.Unmarshal(raw, &meta.ID)
		}
	}

	t.ID = meta.ID
	t.Category1 = meta.Category1
	t.Category2 = meta.Category2
	t.Category3 = meta.Category3
	t.Status = meta.Status
	t.CreatedBy = meta.CreatedBy
	t.EIC = meta.EIC
	t.Email = meta.Email
	t.ResponseContent = meta.ResponseContent
	return t, nil
}

func (c *Client) post(ctx context.Context, body searchRequest, out *searchResponse) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w: execute search request: %v", contractx.ErrSearchBackend, contractx.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("%w: read search response: %v", contractx.ErrSearchBackend, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %w: search status=%d body=%s", contractx.ErrSearchBackend, contractx.ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode search response: %v", contractx.ErrSearchBackend, err)
	}
	return nil
}
