package cj

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/httpclient"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(url string, maxScan int) *Client {
	return NewClient(Config{
		APIToken:  "test-token",
		CompanyID: "7520009",
		BaseURL:   url,
		MaxScan:   maxScan,
	}, nil, httpclient.WithSleep(noSleep))
}

func item(id, title, description string) string {
	return fmt.Sprintf(`{"id":%q,"title":%q,"description":%q,"advertiserId":"555","link":"https://shop.example.com/%s","imageLink":"https://img.example.com/%s.jpg","price":{"amount":"10.00","currency":"USD"}}`,
		id, title, description, id, id)
}

func productsBody(total int, items ...string) string {
	list := "[]"
	if len(items) > 0 {
		list = "["
		for i, it := range items {
			if i > 0 {
				list += ","
			}
			list += it
		}
		list += "]"
	}
	return fmt.Sprintf(`{"data":{"products":{"totalCount":%d,"count":%d,"resultList":%s}}}`, total, len(items), list)
}

func decodeRequest(t *testing.T, r *http.Request) graphQLRequest {
	t.Helper()
	var req graphQLRequest
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestNewClient(t *testing.T) {
	client := NewClient(Config{APIToken: "t", CompanyID: "1"}, nil)

	assert.Equal(t, DefaultBaseURL, client.cfg.BaseURL)
	assert.Equal(t, defaultMaxScan, client.cfg.MaxScan)
	assert.Equal(t, domain.NetworkCJ, client.Network())
}

func TestFetchRaw_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		req := decodeRequest(t, r)
		assert.Contains(t, req.Query, "products(companyId: $companyId")
		assert.Equal(t, "7520009", req.Variables["companyId"])
		assert.Equal(t, []any{"555"}, req.Variables["partnerIds"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, productsBody(2,
			item("1", "Ceiling Fan", "quiet"),
			item("2", "Desk Lamp", "bright"),
		))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	listings, err := client.FetchRaw(context.Background(), domain.FetchCriteria{AccountID: "555", Limit: 10})

	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, domain.NetworkCJ, listings[0].Network)
	assert.Equal(t, "555", listings[0].AccountID)
	assert.JSONEq(t, item("1", "Ceiling Fan", "quiet"), string(listings[0].Payload))
}

func TestFetchRaw_KeywordAndFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productsBody(3,
			item("1", "Work Boot", "Waterproof leather"),
			item("2", "Work Boot", "Canvas"),
			item("3", "Sneaker", "waterproof"),
		))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	listings, err := client.FetchRaw(context.Background(), domain.FetchCriteria{
		AccountID: "555",
		Keywords:  []string{"work boot", "WATERPROOF"},
		Limit:     10,
	})

	require.NoError(t, err)
	require.Len(t, listings, 1)
	head, _ := inspect(listings[0].Payload)
	assert.Equal(t, "1", head.id)
}

func TestFetchRaw_SkipsNonObjectsAndDuplicates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productsBody(4,
			item("1", "Fan", ""),
			`"not an object"`,
			item("1", "Fan", ""),
			item("2", "Fan Pro", ""),
		))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	listings, err := client.FetchRaw(context.Background(), domain.FetchCriteria{AccountID: "555", Limit: 10})

	require.NoError(t, err)
	assert.Len(t, listings, 2)
}

func TestFetchRaw_PaginatesAndStopsAtLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		req := decodeRequest(t, r)
		offset := int(req.Variables["offset"].(float64))
		assert.Equal(t, int(n-1)*2, offset)
		fmt.Fprint(w, productsBody(100,
			item(fmt.Sprintf("%d", offset+1), "Fan", ""),
			item(fmt.Sprintf("%d", offset+2), "Fan", ""),
		))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	listings, err := client.FetchRaw(context.Background(), domain.FetchCriteria{AccountID: "555", Limit: 5})

	require.NoError(t, err)
	assert.Len(t, listings, 5)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchRaw_StopsAtScanCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productsBody(10,
			item("1", "Lamp", ""), item("2", "Lamp", ""), item("3", "Lamp", ""),
			item("4", "Fan", ""), item("5", "Fan", ""),
		))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	listings, err := client.FetchRaw(context.Background(), domain.FetchCriteria{
		AccountID: "555",
		Keywords:  []string{"fan"},
		Limit:     5,
	})

	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestFetchRaw_PassesQueryAsKeywords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, []any{"ceiling", "fan"}, req.Variables["keywords"])
		fmt.Fprint(w, productsBody(0))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	listings, err := client.FetchRaw(context.Background(), domain.FetchCriteria{AccountID: "555", Query: "ceiling  fan", Limit: 5})

	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestFetchRaw_GraphQLErrorIsAdapterError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":null,"errors":[{"message":"partner not found"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	_, err := client.FetchRaw(context.Background(), domain.FetchCriteria{AccountID: "555", Limit: 5})

	var adapterErr *domain.AdapterError
	require.True(t, errors.As(err, &adapterErr))
	assert.Equal(t, domain.NetworkCJ, adapterErr.Network)
	assert.Contains(t, err.Error(), "partner not found")
}

func TestFetchRaw_ServerError_Retries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, productsBody(1, item("1", "Fan", "")))
	}))
	defer server.Close()

	client := newTestClient(server.URL, 0)
	listings, err := client.FetchRaw(context.Background(), domain.FetchCriteria{AccountID: "555", Limit: 5})

	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestFetchRaw_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(url, 0)
	_, err := client.FetchRaw(context.Background(), domain.FetchCriteria{AccountID: "555", Limit: 5})

	var adapterErr *domain.AdapterError
	assert.True(t, errors.As(err, &adapterErr))
}

func TestFetchRaw_InvalidCriteria(t *testing.T) {
	client := newTestClient("http://unused", 0)
	_, err := client.FetchRaw(context.Background(), domain.FetchCriteria{Limit: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestValidateAccount(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := decodeRequest(t, r)
			assert.EqualValues(t, 1, req.Variables["limit"])
			fmt.Fprint(w, productsBody(0))
		}))
		defer server.Close()

		assert.NoError(t, newTestClient(server.URL, 0).ValidateAccount(context.Background(), "555"))
	})

	t.Run("rejected by graphql", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"errors":[{"message":"not authorized for partner"}]}`)
		}))
		defer server.Close()

		err := newTestClient(server.URL, 0).ValidateAccount(context.Background(), "555")
		assert.ErrorIs(t, err, domain.ErrAccountInvalid)
	})

	t.Run("forbidden", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		err := newTestClient(server.URL, 0).ValidateAccount(context.Background(), "555")
		assert.ErrorIs(t, err, domain.ErrAccountInvalid)
	})

	t.Run("empty account", func(t *testing.T) {
		err := newTestClient("http://unused", 0).ValidateAccount(context.Background(), " ")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}
