package pepperjam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/httpclient"
)

const (
	// DefaultBaseURL is the Pepperjam publisher API host
	DefaultBaseURL = "https://api.pepperjamnetwork.com"
	// DefaultAPIVersion is the API version path segment
	DefaultAPIVersion = "20120402"

	defaultMaxScan = 100
	maxPageSize    = 50

	productResource    = "publisher/creative/product"
	advertiserResource = "publisher/advertiser"
)

var errRequestRejected = errors.New("request rejected")

// Config holds Pepperjam client settings
type Config struct {
	APIKey        string
	APIVersion    string
	BaseURL       string
	RatePerMinute int
	MaxScan       int
}

// Client fetches product creatives from the Pepperjam publisher API
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger *zap.Logger
}

// NewClient creates a new Pepperjam client
func NewClient(cfg Config, logger *zap.Logger, opts ...httpclient.Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.MaxScan <= 0 {
		cfg.MaxScan = defaultMaxScan
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("network", string(domain.NetworkPepperjam)))

	return &Client{
		cfg:    cfg,
		http:   httpclient.New(cfg.RatePerMinute, logger, opts...),
		logger: logger,
	}
}

// Network returns the network this client talks to
func (c *Client) Network() domain.Network {
	return domain.NetworkPepperjam
}

// FetchRaw pages through the program's product creatives and returns up to criteria.Limit
// listings that contain every keyword phrase in their name or description.
func (c *Client) FetchRaw(ctx context.Context, criteria domain.FetchCriteria) ([]domain.RawListing, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	search := strings.TrimSpace(criteria.Query)
	if search == "" && len(criteria.Keywords) > 0 {
		search = strings.Join(criteria.Keywords, " ")
	}
	pageSize := min(maxPageSize, max(criteria.Limit*5, 10))

	listings := make([]domain.RawListing, 0, criteria.Limit)
	seen := make(map[string]bool)
	scanned, skippedKeyword, skippedMalformed := 0, 0, 0

	for page := 1; len(listings) < criteria.Limit && scanned < c.cfg.MaxScan; page++ {
		params := url.Values{}
		params.Set("programIds", criteria.AccountID)
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(pageSize))
		if search != "" {
			params.Set("keywords", search)
		}

		env, err := c.get(ctx, productResource, params)
		if err != nil {
			return nil, domain.NewAdapterError(domain.NetworkPepperjam, err)
		}
		if len(env.Data) == 0 {
			break
		}

		for _, item := range env.Data {
			if scanned >= c.cfg.MaxScan || len(listings) >= criteria.Limit {
				break
			}
			scanned++

			head, ok := inspect(item)
			if !ok {
				skippedMalformed++
				c.logger.Warn("skipping listing without id or name", zap.String("account_id", criteria.AccountID))
				continue
			}
			if seen[head.key] {
				continue
			}
			seen[head.key] = true

			if _, all := domain.MatchKeywords(criteria.Keywords, head.name, head.description); !all {
				skippedKeyword++
				continue
			}

			listings = append(listings, domain.RawListing{
				Network:   domain.NetworkPepperjam,
				AccountID: criteria.AccountID,
				Payload:   item,
			})
		}

		if env.Meta.Pagination == nil || page >= env.Meta.Pagination.TotalPages {
			break
		}
	}

	c.logger.Info("fetched listings",
		zap.String("account_id", criteria.AccountID),
		zap.String("keywords", search),
		zap.Int("scanned", scanned),
		zap.Int("returned", len(listings)),
		zap.Int("skipped_keyword", skippedKeyword),
		zap.Int("skipped_malformed", skippedMalformed))

	return listings, nil
}

// ValidateAccount checks that the publisher has joined the program
func (c *Client) ValidateAccount(ctx context.Context, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return domain.ErrInvalidRequest
	}

	params := url.Values{}
	params.Set("programId", accountID)
	env, err := c.get(ctx, advertiserResource, params)
	switch {
	case err == nil && len(env.Data) == 0:
		err = fmt.Errorf("%w: program %s not joined", domain.ErrAccountInvalid, accountID)
	case err == nil:
		return nil
	case errors.Is(err, errRequestRejected) || httpclient.IsStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden):
		err = fmt.Errorf("%w: %v", domain.ErrAccountInvalid, err)
	}
	return domain.NewAdapterError(domain.NetworkPepperjam, err)
}

func (c *Client) get(ctx context.Context, resource string, params url.Values) (*envelope, error) {
	params.Set("apiKey", c.cfg.APIKey)
	params.Set("format", "json")
	reqURL := fmt.Sprintf("%s/%s/%s?%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, resource, params.Encode())

	body, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "CatalogSync/1.0")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Meta.Status.Code != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", errRequestRejected, env.Meta.Status.Code, env.Meta.Status.Message)
	}
	return &env, nil
}

type listingHead struct {
	key         string
	name        string
	description string
}

// inspect reads the fields needed for dedup and filtering. The dedup key is
// the id, or the name when the id is missing.
func inspect(item json.RawMessage) (listingHead, bool) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return listingHead{}, false
	}
	var p Product
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return listingHead{}, false
	}
	key := rawString(p.ID)
	if key == "" {
		key = strings.TrimSpace(p.Name)
	}
	if key == "" {
		return listingHead{}, false
	}
	return listingHead{key: key, name: p.Name, description: p.description()}, true
}

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
