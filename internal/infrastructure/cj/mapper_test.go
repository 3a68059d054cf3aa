package cj

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/affiliate"
)

func raw(payload string) domain.RawListing {
	return domain.RawListing{Network: domain.NetworkCJ, AccountID: "555", Payload: json.RawMessage(payload)}
}

func newTestMapper() *Mapper {
	return NewMapper(affiliate.NewBuilder(domain.NetworkCJ, affiliate.Template{PublisherID: "100200"}, nil))
}

const fullListing = `{
  "id": 98765,
  "advertiserId": "555",
  "title": "  Ceiling Fan 52in ",
  "description": "Quiet DC motor",
  "price": {"amount": "129.999", "currency": "USD"},
  "salePrice": {"amount": "99.50", "currency": "USD"},
  "imageLink": "https://img.example.com/fan.jpg",
  "link": "https://shop.example.com/fan",
  "availability": "in stock",
  "mpn": "CF-52",
  "productType": ["Home", "Fans", "Home"],
  "googleProductCategory": {"id": 1, "name": "Ceiling Fans"}
}`

func TestMapper_Map(t *testing.T) {
	m := newTestMapper()

	product, warnings, err := m.Map(raw(fullListing))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, domain.NetworkCJ, product.SourceAPI)
	assert.Equal(t, "98765", product.SourceProductID)
	assert.Equal(t, "Ceiling Fan 52in", product.Title)
	assert.Equal(t, "Quiet DC motor", product.Description)
	assert.Equal(t, 130.0, product.Price)
	require.NotNil(t, product.SalePrice)
	assert.Equal(t, 99.5, *product.SalePrice)
	assert.Equal(t, "USD", product.Currency)
	assert.True(t, product.Availability)
	assert.Equal(t, []string{"Home", "Fans", "Ceiling Fans"}, product.Categories)
	require.NotNil(t, product.SKU)
	assert.Equal(t, "CF-52", *product.SKU)
	assert.Equal(t, []string{}, product.KeywordsMatched)

	u, err := url.Parse(product.AffiliateURL)
	require.NoError(t, err)
	assert.Equal(t, "/click-100200-555", u.Path)
	assert.Equal(t, "https://shop.example.com/fan", u.Query().Get("url"))
	assert.Equal(t, "98765", u.Query().Get("sid"))
}

func TestMapper_Map_IsIdempotent(t *testing.T) {
	m := newTestMapper()

	first, _, err := m.Map(raw(fullListing))
	require.NoError(t, err)
	second, _, err := m.Map(raw(fullListing))
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))
}

func TestMapper_Map_OptionalFields(t *testing.T) {
	m := newTestMapper()

	product, warnings, err := m.Map(raw(`{"id":"1","advertiserId":"555","title":"Lamp","link":"https://shop.example.com/l","imageLink":"https://img.example.com/l.jpg","price":{"amount":12,"currency":"EUR"}}`))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Nil(t, product.SalePrice)
	assert.Nil(t, product.SKU)
	assert.True(t, product.Availability)
	assert.Equal(t, "EUR", product.Currency)
	assert.Equal(t, 12.0, product.Price)
	assert.NotNil(t, product.Categories)
	assert.Empty(t, product.Categories)
}

func TestMapper_Map_PriceWarnings(t *testing.T) {
	m := newTestMapper()

	t.Run("unparseable price defaults to zero", func(t *testing.T) {
		product, warnings, err := m.Map(raw(`{"id":"1","title":"Lamp","link":"https://s/l","imageLink":"https://i/l","price":{"amount":"call us"}}`))
		require.NoError(t, err)
		assert.Equal(t, 0.0, product.Price)
		require.Len(t, warnings, 1)
		assert.Equal(t, "price", warnings[0].Field)
	})

	t.Run("missing price defaults to zero", func(t *testing.T) {
		product, warnings, err := m.Map(raw(`{"id":"1","title":"Lamp","link":"https://s/l","imageLink":"https://i/l"}`))
		require.NoError(t, err)
		assert.Equal(t, 0.0, product.Price)
		assert.Len(t, warnings, 1)
	})

	t.Run("bad sale price is ignored with warning", func(t *testing.T) {
		product, warnings, err := m.Map(raw(`{"id":"1","title":"Lamp","link":"https://s/l","imageLink":"https://i/l","price":{"amount":"5"},"salePrice":{"amount":"n/a"}}`))
		require.NoError(t, err)
		assert.Nil(t, product.SalePrice)
		require.Len(t, warnings, 1)
		assert.Equal(t, "salePrice", warnings[0].Field)
	})
}

func TestMapper_Map_Malformed(t *testing.T) {
	m := newTestMapper()

	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json object", payload: `"text"`},
		{name: "missing id", payload: `{"title":"Lamp","link":"https://s/l","imageLink":"https://i/l"}`},
		{name: "missing title", payload: `{"id":"1","link":"https://s/l","imageLink":"https://i/l"}`},
		{name: "missing link", payload: `{"id":"1","title":"Lamp","imageLink":"https://i/l"}`},
		{name: "missing image", payload: `{"id":"1","title":"Lamp","link":"https://s/l"}`},
		{name: "explicit zero price", payload: `{"id":"1","title":"Lamp","link":"https://s/l","imageLink":"https://i/l","price":{"amount":"0.00"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.Map(raw(tt.payload))
			assert.ErrorIs(t, err, domain.ErrMalformedListing)
		})
	}
}

func TestMapper_Map_WrongNetwork(t *testing.T) {
	_, _, err := newTestMapper().Map(domain.RawListing{Network: domain.NetworkPepperjam, Payload: json.RawMessage(fullListing)})
	assert.ErrorIs(t, err, domain.ErrUnsupportedNetwork)
}

func TestMapper_AffiliateURL(t *testing.T) {
	t.Run("keeps click url from link code", func(t *testing.T) {
		product, _, err := newTestMapper().Map(raw(`{"id":"1","advertiserId":"555","title":"Lamp","link":"https://s/l","imageLink":"https://i/l","price":{"amount":"5"},"linkCode":{"clickUrl":"https://www.jdoqocy.com/click-1-2"}}`))
		require.NoError(t, err)
		assert.Equal(t, "https://www.jdoqocy.com/click-1-2", product.AffiliateURL)
	})

	t.Run("falls back to link without advertiser id", func(t *testing.T) {
		product, _, err := newTestMapper().Map(raw(`{"id":"1","title":"Lamp","link":"https://s/l","imageLink":"https://i/l","price":{"amount":"5"}}`))
		require.NoError(t, err)
		assert.Equal(t, "https://s/l", product.AffiliateURL)
	})

	t.Run("wraps merchant links that look like click paths", func(t *testing.T) {
		for _, link := range []string{
			"https://shop.example.com/t/blue-widget",
			"https://shop.example.com/click-deals-2024",
		} {
			payload := `{"id":"1","advertiserId":"5550","title":"Lamp","link":"` + link + `","imageLink":"https://i/l","price":{"amount":"5"}}`
			product, _, err := newTestMapper().Map(raw(payload))
			require.NoError(t, err)

			u, err := url.Parse(product.AffiliateURL)
			require.NoError(t, err)
			assert.Equal(t, affiliate.DefaultCJClickHost, u.Host, link)
			assert.Equal(t, "/click-100200-5550", u.Path, link)
			assert.Equal(t, link, u.Query().Get("url"))
		}
	})

	t.Run("keeps an existing cj click link", func(t *testing.T) {
		product, _, err := newTestMapper().Map(raw(`{"id":"1","advertiserId":"555","title":"Lamp","link":"https://www.tkqlhce.com/click-1-2","imageLink":"https://i/l","price":{"amount":"5"}}`))
		require.NoError(t, err)
		assert.Equal(t, "https://www.tkqlhce.com/click-1-2", product.AffiliateURL)
	})

	t.Run("nil builder uses link", func(t *testing.T) {
		product, _, err := NewMapper(nil).Map(raw(fullListing))
		require.NoError(t, err)
		assert.Equal(t, "https://shop.example.com/fan", product.AffiliateURL)
	})
}
