package pepperjam

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/affiliate"
)

// click domains whose buy_url is already tracked
var trackedHosts = []string{"pjtra.com", "pjatr.com", "pntra.com", "pntrs.com", "pntrac.com", "gopjn.com"}

// Mapper converts Pepperjam product creatives to UnifiedProduct
type Mapper struct {
	links *affiliate.Builder
}

// NewMapper creates a Pepperjam mapper. links may be nil, in which case buy_url is used as-is.
func NewMapper(links *affiliate.Builder) *Mapper {
	return &Mapper{links: links}
}

// Network returns the network this mapper handles
func (m *Mapper) Network() domain.Network {
	return domain.NetworkPepperjam
}

// Map normalizes one Pepperjam product creative
func (m *Mapper) Map(raw domain.RawListing) (domain.UnifiedProduct, []domain.NormalizationWarning, error) {
	if raw.Network != domain.NetworkPepperjam {
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, raw.Network)
	}

	var p Product
	if err := json.Unmarshal(raw.Payload, &p); err != nil {
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: %v", domain.ErrMalformedListing, err)
	}

	name := strings.TrimSpace(p.Name)
	id := rawString(p.ID)
	if id == "" {
		id = name
	}
	buyURL := strings.TrimSpace(p.BuyURL)
	image := strings.TrimSpace(p.ImageURL)
	switch {
	case name == "":
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: missing name", domain.ErrMalformedListing)
	case buyURL == "":
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: missing buy_url (%s)", domain.ErrMalformedListing, id)
	case image == "":
		return domain.UnifiedProduct{}, nil, fmt.Errorf("%w: missing image_url (%s)", domain.ErrMalformedListing, id)
	}

	var warnings []domain.NormalizationWarning
	product := domain.UnifiedProduct{
		SourceAPI:       domain.NetworkPepperjam,
		SourceProductID: id,
		Title:           name,
		Description:     strings.TrimSpace(p.description()),
		Currency:        domain.CurrencyFromSymbol(p.CurrencySymbol),
		ImageURL:        image,
		Availability:    true,
		Categories:      categories(p.Categories),
		KeywordsMatched: []string{},
	}

	price, err := domain.ParseRawAmount(p.Price)
	if err != nil {
		warnings = append(warnings, domain.NormalizationWarning{
			Field:   "price",
			Message: fmt.Sprintf("unparseable price %q, defaulted to 0", string(p.Price)),
		})
	}
	product.Price = price

	if len(p.PriceSale) > 0 && string(p.PriceSale) != "null" && string(p.PriceSale) != `""` {
		sale, err := domain.ParseRawAmount(p.PriceSale)
		switch {
		case err != nil:
			warnings = append(warnings, domain.NormalizationWarning{Field: "salePrice", Message: "unparseable price_sale, ignored"})
		case sale > 0:
			product.SalePrice = &sale
		}
	}

	if p.StockAvailability != nil {
		product.Availability = domain.ParseAvailability(*p.StockAvailability)
	}

	if sku := strings.TrimSpace(p.SKU); sku != "" {
		product.SKU = &sku
	} else if upc := strings.TrimSpace(p.UPC); upc != "" {
		product.SKU = &upc
	}

	product.AffiliateURL = m.affiliateURL(buyURL, rawString(p.ProgramID), raw.AccountID, id)
	return product, warnings, nil
}

func (m *Mapper) affiliateURL(buyURL, programID, accountID, id string) string {
	if m.links == nil || m.isTracked(buyURL) {
		return buyURL
	}
	if programID == "" {
		programID = accountID
	}
	return m.links.Build(buyURL, programID, id, nil)
}

// isTracked also accepts any link on a Pepperjam redirect host, whatever its path
func (m *Mapper) isTracked(rawURL string) bool {
	if m.links.IsTrackingLink(rawURL) {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range trackedHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func categories(cats []category) []string {
	out := make([]string, 0, len(cats))
	seen := make(map[string]bool)
	for _, c := range cats {
		name := strings.TrimSpace(c.Name)
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
