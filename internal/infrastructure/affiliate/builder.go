package affiliate

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
)

// Default click hosts used when none is configured
const (
	DefaultCJClickHost        = "www.anrdoezrs.net"
	DefaultPepperjamClickHost = "www.pjtra.com"
)

// path prefixes that identify each network's redirect format
const (
	cjPathPrefix        = "/click-"
	pepperjamPathPrefix = "/t/"
)

// click domains each network redirects through, matched with their subdomains
var clickDomains = map[domain.Network][]string{
	domain.NetworkCJ:        {"anrdoezrs.net", "dpbolvw.net", "jdoqocy.com", "kqzyfj.com", "tkqlhce.com"},
	domain.NetworkPepperjam: {"pjtra.com", "pjatr.com", "pntra.com", "pntrs.com", "pntrac.com", "gopjn.com"},
}

var errMissingAdID = errors.New("missing network ad id")

// Template describes how one network's tracking links are laid out
type Template struct {
	Host        string
	PublisherID string
}

// Builder constructs tracking links for a single network from local templates.
// Build never calls the network.
type Builder struct {
	network  domain.Network
	template Template
	logger   *zap.Logger
	encode   func(url.Values) string
}

// NewBuilder creates a link builder for the given network
func NewBuilder(network domain.Network, template Template, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if template.Host == "" {
		switch network {
		case domain.NetworkCJ:
			template.Host = DefaultCJClickHost
		case domain.NetworkPepperjam:
			template.Host = DefaultPepperjamClickHost
		}
	}
	return &Builder{network: network, template: template, logger: logger, encode: url.Values.Encode}
}

// Network returns the network this builder produces links for
func (b *Builder) Network() domain.Network {
	return b.network
}

// Build returns a tracking link that redirects to targetURL.
// On any failure it logs a warning and returns targetURL unchanged.
func (b *Builder) Build(targetURL, adID, productID string, extra map[string]string) (link string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("affiliate link build panicked, using target url",
				zap.String("network", string(b.network)),
				zap.Any("panic", r))
			link = targetURL
		}
	}()

	built, err := b.build(targetURL, adID, productID, extra)
	if err != nil || built == "" {
		b.logger.Warn("affiliate link build failed, using target url",
			zap.String("network", string(b.network)),
			zap.String("target_url", targetURL),
			zap.Error(err))
		return targetURL
	}
	return built
}

func (b *Builder) build(targetURL, adID, productID string, extra map[string]string) (string, error) {
	if strings.TrimSpace(adID) == "" {
		return "", errMissingAdID
	}

	var path string
	switch b.network {
	case domain.NetworkCJ:
		path = cjPathPrefix + b.template.PublisherID + "-" + adID
	case domain.NetworkPepperjam:
		path = pepperjamPathPrefix + b.template.PublisherID + "-" + adID
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedNetwork, b.network)
	}

	base, err := url.Parse("https://" + b.template.Host + path)
	if err != nil {
		return "", fmt.Errorf("invalid link template: %w", err)
	}
	if base.Host == "" {
		return "", fmt.Errorf("invalid link template: empty host")
	}

	query := url.Values{}
	if targetURL != "" {
		query.Set("url", targetURL)
	}
	if productID != "" {
		query.Set("sid", productID)
	}
	// sorted so the same input always yields the same link
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "url" || k == "sid" {
			continue
		}
		query.Set(k, extra[k])
	}
	base.RawQuery = b.encode(query)
	return base.String(), nil
}

// Parser decodes tracking links of any network by path shape
type Parser struct{}

// Parse implements domain.LinkParser
func (Parser) Parse(rawURL string) *domain.LinkInfo {
	return Parse(rawURL)
}

// Parse maps a tracking link back to its parts. It returns nil for unrecognized formats.
// The host is not checked, so merchant URLs with a matching path also decode.
func Parse(rawURL string) *domain.LinkInfo {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}

	var network domain.Network
	var ids string
	switch {
	case strings.HasPrefix(u.Path, cjPathPrefix):
		network = domain.NetworkCJ
		ids = strings.TrimPrefix(u.Path, cjPathPrefix)
	case strings.HasPrefix(u.Path, pepperjamPathPrefix):
		network = domain.NetworkPepperjam
		ids = strings.TrimPrefix(u.Path, pepperjamPathPrefix)
	default:
		return nil
	}

	idx := strings.LastIndex(ids, "-")
	if idx < 0 || idx == len(ids)-1 || strings.Contains(ids, "/") {
		return nil
	}

	q := u.Query()
	return &domain.LinkInfo{
		Network:   network,
		AccountID: ids[:idx],
		AdID:      ids[idx+1:],
		TargetURL: q.Get("url"),
		ProductID: q.Get("sid"),
	}
}

// IsTrackingLink reports whether rawURL is already one of this network's tracking
// links: the path must decode and the host must be the configured click host or
// one of the network's click domains.
func (b *Builder) IsTrackingLink(rawURL string) bool {
	info := Parse(rawURL)
	if info == nil || info.Network != b.network {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == strings.ToLower(b.template.Host) {
		return true
	}
	for _, d := range clickDomains[b.network] {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

var _ domain.LinkParser = Parser{}
