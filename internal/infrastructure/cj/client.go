package cj

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/httpclient"
)

const (
	// DefaultBaseURL is the CJ GraphQL product feed endpoint
	DefaultBaseURL = "https://ads.api.cj.com/query"

	defaultMaxScan = 100
	maxPageSize    = 100
)

var errGraphQL = errors.New("graphql error")

// Config holds CJ client settings
type Config struct {
	APIToken      string
	CompanyID     string
	BaseURL       string
	RatePerMinute int
	MaxScan       int
}

// Client fetches advertiser product listings from the CJ product feed
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger *zap.Logger
}

// NewClient creates a new CJ client
func NewClient(cfg Config, logger *zap.Logger, opts ...httpclient.Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxScan <= 0 {
		cfg.MaxScan = defaultMaxScan
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("network", string(domain.NetworkCJ)))

	return &Client{
		cfg:    cfg,
		http:   httpclient.New(cfg.RatePerMinute, logger, opts...),
		logger: logger,
	}
}

// Network returns the network this client talks to
func (c *Client) Network() domain.Network {
	return domain.NetworkCJ
}

// FetchRaw pages through the advertiser's feed and returns up to criteria.Limit listings
// that contain every keyword phrase in their title or description.
func (c *Client) FetchRaw(ctx context.Context, criteria domain.FetchCriteria) ([]domain.RawListing, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	// over-fetch so the client-side keyword filter has enough to choose from
	target := max(criteria.Limit*5, c.cfg.MaxScan+10)
	var searchTerms []string
	if q := strings.TrimSpace(criteria.Query); q != "" {
		searchTerms = strings.Fields(q)
	}

	listings := make([]domain.RawListing, 0, criteria.Limit)
	seen := make(map[string]bool)
	offset, scanned, skippedKeyword, skippedMalformed := 0, 0, 0, 0

	for len(listings) < criteria.Limit && scanned < c.cfg.MaxScan && offset < target {
		vars := map[string]any{
			"companyId":  c.cfg.CompanyID,
			"partnerIds": []string{criteria.AccountID},
			"limit":      min(maxPageSize, target-offset),
			"offset":     offset,
		}
		if len(searchTerms) > 0 {
			vars["keywords"] = searchTerms
		}

		page, err := c.query(ctx, vars)
		if err != nil {
			return nil, domain.NewAdapterError(domain.NetworkCJ, err)
		}
		if len(page.ResultList) == 0 {
			break
		}
		offset += len(page.ResultList)

		for _, item := range page.ResultList {
			if scanned >= c.cfg.MaxScan || len(listings) >= criteria.Limit {
				break
			}
			scanned++

			head, ok := inspect(item)
			if !ok {
				skippedMalformed++
				c.logger.Warn("skipping non-object listing", zap.String("account_id", criteria.AccountID))
				continue
			}
			if head.id != "" {
				if seen[head.id] {
					continue
				}
				seen[head.id] = true
			}
			if _, all := domain.MatchKeywords(criteria.Keywords, head.title, head.description); !all {
				skippedKeyword++
				continue
			}

			listings = append(listings, domain.RawListing{
				Network:   domain.NetworkCJ,
				AccountID: criteria.AccountID,
				Payload:   item,
			})
		}

		if offset >= page.TotalCount {
			break
		}
	}

	if scanned >= c.cfg.MaxScan && len(listings) < criteria.Limit {
		c.logger.Warn("scan limit reached before filling request",
			zap.String("account_id", criteria.AccountID),
			zap.Int("scanned", scanned),
			zap.Int("found", len(listings)),
			zap.Int("limit", criteria.Limit))
	}
	c.logger.Info("fetched listings",
		zap.String("account_id", criteria.AccountID),
		zap.Int("scanned", scanned),
		zap.Int("returned", len(listings)),
		zap.Int("skipped_keyword", skippedKeyword),
		zap.Int("skipped_malformed", skippedMalformed))

	return listings, nil
}

// ValidateAccount checks that the company can read the advertiser's feed
func (c *Client) ValidateAccount(ctx context.Context, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return domain.ErrInvalidRequest
	}
	_, err := c.query(ctx, map[string]any{
		"companyId":  c.cfg.CompanyID,
		"partnerIds": []string{accountID},
		"limit":      1,
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, errGraphQL) || httpclient.IsStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden) {
		err = fmt.Errorf("%w: %v", domain.ErrAccountInvalid, err)
	}
	return domain.NewAdapterError(domain.NetworkCJ, err)
}

type productsPage struct {
	TotalCount int
	ResultList []json.RawMessage
}

func (c *Client) query(ctx context.Context, vars map[string]any) (*productsPage, error) {
	payload, err := json.Marshal(graphQLRequest{Query: productsQuery, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	body, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "CatalogSync/1.0")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp productsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.Data == nil || resp.Data.Products == nil {
		if len(resp.Errors) > 0 {
			return nil, fmt.Errorf("%w: %s", errGraphQL, joinErrors(resp.Errors))
		}
		return nil, errors.New("response has no products field")
	}
	if len(resp.Errors) > 0 {
		c.logger.Warn("partial graphql errors", zap.String("errors", joinErrors(resp.Errors)))
	}

	return &productsPage{
		TotalCount: resp.Data.Products.TotalCount,
		ResultList: resp.Data.Products.ResultList,
	}, nil
}

func joinErrors(errs []graphQLError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

type listingHead struct {
	id          string
	title       string
	description string
}

// inspect reads the fields needed for filtering. ok is false for non-object entries.
func inspect(item json.RawMessage) (listingHead, bool) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return listingHead{}, false
	}
	var head struct {
		ID          json.RawMessage `json:"id"`
		Title       any             `json:"title"`
		Description any             `json:"description"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return listingHead{}, false
	}
	title, _ := head.Title.(string)
	description, _ := head.Description.(string)
	return listingHead{id: rawString(head.ID), title: title, description: description}, true
}

// rawString returns a JSON string or number as text
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
