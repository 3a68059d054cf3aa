package cj

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/affiliate"
)

// Mapper converts CJ listings to UnifiedProduct
type Mapper struct {
	links *affiliate.Builder
}

// NewMapper creates a CJ mapper. links may be nil, in which case listing links are used as-is.
func NewMapper(links *affiliate.Builder) *Mapper {
	return &Mapper{links: links}
}

// Network returns the network this mapper handles
func (m *Mapper) Network() domain.Network {
	return domain.NetworkCJ
}

// Map normalizes one CJ listing. Listings without id, title, link or image,
// or with an explicit zero price, are malformed.
func (m *Mapper) Map(raw domain.RawListing) (domain.UnifiedProduct, []domain.NormalizationWarning, error) {
	if raw.Network != domain.NetworkCJ {
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, raw.Network)
	}

	var p Product
	if err := json.Unmarshal(raw.Payload, &p); err != nil {
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: %v", domain.ErrMalformedListing, err)
	}

	id := rawString(p.ID)
	title := strings.TrimSpace(p.Title)
	link := strings.TrimSpace(p.Link)
	image := strings.TrimSpace(p.ImageLink)
	switch {
	case id == "":
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: missing id", domain.ErrMalformedListing)
	case title == "":
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: missing title (id %s)", domain.ErrMalformedListing, id)
	case link == "":
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: missing link (id %s)", domain.ErrMalformedListing, id)
	case image == "":
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: missing imageLink (id %s)", domain.ErrMalformedListing, id)
	}

	var warnings []domain.NormalizationWarning
	product := domain.UnifiedProduct{
		SourceAPI:       domain.NetworkCJ,
		SourceProductID: id,
		Title:           title,
		Description:     strings.TrimSpace(p.Description),
		Currency:        "USD",
		ImageURL:        image,
		Availability:    true,
		Categories:      categories(p),
		KeywordsMatched: []string{},
	}

	if p.Price == nil {
		warnings = append(warnings, domain.NormalizationWarning{Field: "price", Message: "missing, defaulted to 0"})
	} else {
		price, err := domain.ParseRawAmount(p.Price.Amount)
		if err != nil {
			warnings = append(warnings, domain.NormalizationWarning{
				Field:   "price",
				Message: fmt.Sprintf("unparseable amount %s, defaulted to 0", string(p.Price.Amount)),
			})
		} else if price == 0 {
			return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: zero price (id %s)", domain.ErrMalformedListing, id)
		}
		product.Price = price
		product.Currency = domain.CurrencyFromSymbol(p.Price.Currency)
	}

	if p.SalePrice != nil {
		sale, err := domain.ParseRawAmount(p.SalePrice.Amount)
		switch {
		case err != nil:
			warnings = append(warnings, domain.NormalizationWarning{Field: "salePrice", Message: "unparseable amount, ignored"})
		case sale > 0:
			product.SalePrice = &sale
		}
	}

	if p.Availability != nil {
		product.Availability = domain.ParseAvailability(*p.Availability)
	}

	if sku := firstNonEmpty(p.MPN, p.GTIN); sku != "" {
		product.SKU = &sku
	}

	product.AffiliateURL = m.affiliateURL(p, link, id)
	return product, warnings, nil
}

func (m *Mapper) affiliateURL(p Product, link, id string) string {
	if p.LinkCode != nil && p.LinkCode.ClickURL != "" {
		return p.LinkCode.ClickURL
	}
	if m.links == nil || m.links.IsTrackingLink(link) {
		return link
	}
	return m.links.Build(link, rawString(p.AdvertiserID), id, nil)
}

func categories(p Product) []string {
	out := make([]string, 0, len(p.ProductType)+1)
	seen := make(map[string]bool)
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range p.ProductType {
		add(c)
	}
	if p.GoogleProductCategory != nil {
		add(p.GoogleProductCategory.Name)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
