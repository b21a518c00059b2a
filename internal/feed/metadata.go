package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aurafeed/internal/middleware"
	"aurafeed/internal/observability"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultGateway resolves ipfs:// token URIs.
const DefaultGateway = "https://ipfs.io/ipfs/"

const (
	defaultMetadataCacheSize = 512
	maxMetadataBytes         = 1 << 20
)

var zeroTime time.Time

// Metadata is the subset of token metadata a post is built from.
type Metadata struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CreatedAt     json.RawMessage `json:"createdAt"`
	Tags          []string        `json:"tags"`
	CoverImageURL string          `json:"coverImageUrl"`
	Attributes    []Attribute     `json:"attributes"`
	Media         []Media         `json:"media"`
	Content       *Content        `json:"content"`
}

// Content is the structured body some publishers nest under "content".
type Content struct {
	Title     string          `json:"title"`
	Summary   string          `json:"summary"`
	Body      string          `json:"body"`
	CreatedAt json.RawMessage `json:"createdAt"`
	Tags      []string        `json:"tags"`
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

type Media struct {
	URI string `json:"uri"`
}

// MetadataFetcher loads token metadata over HTTP and remembers successful
// responses by URI.
type MetadataFetcher struct {
	gateway string
	client  *http.Client
	cache   *lru.Cache
	logger  *slog.Logger
}

// NewMetadataFetcher returns a fetcher resolving ipfs:// through gateway.
// A nil client uses a 10 second timeout client.
func NewMetadataFetcher(gateway string, client *http.Client, logger *slog.Logger) *MetadataFetcher {
	if strings.TrimSpace(gateway) == "" {
		gateway = DefaultGateway
	}
	if !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = middleware.Logger
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New(defaultMetadataCacheSize)
	return &MetadataFetcher{gateway: gateway, client: client, cache: cache, logger: logger}
}

// Resolve maps ipfs://<cid> onto the gateway and returns other URIs unchanged.
func (f *MetadataFetcher) Resolve(uri string) string {
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return f.gateway + strings.TrimPrefix(rest, "ipfs/")
	}
	return uri
}

// Fetch returns the metadata document behind uri.
func (f *MetadataFetcher) Fetch(ctx context.Context, uri string) (*Metadata, error) {
	if uri == "" {
		observability.MetadataFetchErrors.WithLabelValues("empty_uri").Inc()
		return nil, errors.New("empty token uri")
	}
	if v, ok := f.cache.Get(uri); ok {
		return v.(*Metadata), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Resolve(uri), nil)
	if err != nil {
		observability.MetadataFetchErrors.WithLabelValues("request").Inc()
		return nil, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		observability.MetadataFetchErrors.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.MetadataFetchErrors.WithLabelValues("status").Inc()
		return nil, fmt.Errorf("fetch metadata: unexpected status %d", resp.StatusCode)
	}

	var md Metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&md); err != nil {
		observability.MetadataFetchErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	f.cache.Add(uri, &md)
	return &md, nil
}

// postFields is the display text derived from metadata with fallbacks applied.
type postFields struct {
	Title     string
	Summary   string
	Body      string
	CreatedAt time.Time
	Tags      []string
	Cover     string
}

// applyMetadata derives display fields for tokenID; md may be nil.
func applyMetadata(md *Metadata, label flavorLabels, tokenID string, now time.Time) postFields {
	out := postFields{
		Title:     label.TitlePrefix + tokenID,
		Summary:   label.Summary,
		Body:      "No body content provided.",
		CreatedAt: now,
		Tags:      []string{},
	}
	if md == nil {
		return out
	}

	content := md.Content
	if content == nil {
		content = &Content{}
	}

	out.Title = firstNonEmpty(content.Title, md.Name, out.Title)
	out.Summary = firstNonEmpty(content.Summary, md.Description, out.Summary)
	out.Body = firstNonEmpty(content.Body, md.Description, out.Body)

	created := parseRawTime(content.CreatedAt)
	if created.IsZero() {
		created = parseRawTime(md.CreatedAt)
	}
	if !created.IsZero() {
		out.CreatedAt = created
	}

	switch {
	case len(content.Tags) > 0:
		out.Tags = append([]string(nil), content.Tags...)
	case len(md.Tags) > 0:
		out.Tags = append([]string(nil), md.Tags...)
	default:
		out.Tags = attributeTags(md.Attributes)
	}

	if len(md.Media) > 0 && md.Media[0].URI != "" {
		out.Cover = md.Media[0].URI
	} else {
		out.Cover = md.CoverImageURL
	}
	return out
}

func attributeTags(attrs []Attribute) []string {
	tags := []string{}
	for _, a := range attrs {
		if a.TraitType != "tags" {
			continue
		}
		switch v := a.Value.(type) {
		case string:
			tags = append(tags, v)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					tags = append(tags, s)
				}
			}
		}
	}
	return tags
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// parseRawTime accepts an RFC 3339 string or a Unix timestamp in seconds or
// milliseconds. Anything else yields the zero time.
func parseRawTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return zeroTime
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseCreatedAt(s, zeroTime)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return unixTime(int64(n))
	}
	return zeroTime
}

func parseCreatedAt(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return unixTime(n)
	}
	return fallback
}

func unixTime(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
