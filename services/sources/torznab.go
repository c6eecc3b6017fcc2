package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"resolvr/models"
	"resolvr/utils/quality"
)

// TorznabProvider queries a Jackett/Prowlarr-compatible Torznab API.
type TorznabProvider struct {
	id         string
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewTorznabProvider(id, name, baseURL, apiKey string, client *http.Client) *TorznabProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TorznabProvider{
		id:         id,
		name:       strings.TrimSpace(name),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: client,
	}
}

func (p *TorznabProvider) ID() string { return p.id }

func (p *TorznabProvider) DisplayName() string {
	if p.name != "" {
		return p.name
	}
	return p.id
}

type torznabRSS struct {
	XMLName xml.Name       `xml:"rss"`
	Channel torznabChannel `xml:"channel"`
}

type torznabChannel struct {
	Items []torznabItem `xml:"item"`
}

type torznabItem struct {
	Title     string           `xml:"title"`
	GUID      string           `xml:"guid"`
	Link      string           `xml:"link"`
	Size      int64            `xml:"size"`
	Enclosure torznabEnclosure `xml:"enclosure"`
	Attrs     []torznabAttr    `xml:"attr"`
}

type torznabEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (p *TorznabProvider) Fetch(ctx context.Context, req FetchRequest) ([]models.StreamCandidate, error) {
	if strings.TrimSpace(req.CatalogID) == "" {
		return nil, fmt.Errorf("empty catalog id")
	}

	params := url.Values{}
	params.Set("apikey", p.apiKey)
	if req.MediaType == models.MediaTypeSeries && req.Season > 0 && req.Episode > 0 {
		params.Set("t", "tvsearch")
		params.Set("imdbid", strings.TrimPrefix(req.CatalogID, "tt"))
		params.Set("season", strconv.Itoa(req.Season))
		params.Set("ep", strconv.Itoa(req.Episode))
	} else {
		params.Set("t", "movie")
		params.Set("imdbid", strings.TrimPrefix(req.CatalogID, "tt"))
	}

	endpoint := fmt.Sprintf("%s/api?%s", p.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("torznab returned %d", resp.StatusCode)
	}

	var feed torznabRSS
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode torznab feed: %w", err)
	}

	candidates := make([]models.StreamCandidate, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		locator := p.pickLocator(item)
		if locator == "" {
			continue
		}
		kind := models.KindDirect
		if strings.HasPrefix(strings.ToLower(locator), "magnet:") {
			kind = models.KindTorrent
		}
		candidates = append(candidates, models.StreamCandidate{
			ID:           fmt.Sprintf("%s:%s", p.id, item.GUID),
			Name:         item.Title,
			DisplayTitle: item.Title,
			Quality:      quality.Classify(item.Title),
			Kind:         kind,
			Locator:      locator,
			SizeLabel:    formatSize(item.Size),
			Seeders:      p.attrInt(item, "seeders"),
			ProviderName: p.DisplayName(),
		})
	}
	return candidates, nil
}

// pickLocator prefers a magnet (from the magneturl attr or a magnet link)
// over the enclosure/.torrent URL.
func (p *TorznabProvider) pickLocator(item torznabItem) string {
	for _, attr := range item.Attrs {
		if strings.EqualFold(attr.Name, "magneturl") && strings.HasPrefix(strings.ToLower(attr.Value), "magnet:") {
			return attr.Value
		}
	}
	if strings.HasPrefix(strings.ToLower(item.Link), "magnet:") {
		return item.Link
	}
	for _, attr := range item.Attrs {
		if strings.EqualFold(attr.Name, "infohash") && attr.Value != "" {
			return buildMagnet(strings.ToLower(attr.Value), item.Title)
		}
	}
	if item.Enclosure.URL != "" {
		return item.Enclosure.URL
	}
	return strings.TrimSpace(item.Link)
}

func (p *TorznabProvider) attrInt(item torznabItem, name string) int {
	for _, attr := range item.Attrs {
		if strings.EqualFold(attr.Name, name) {
			if n, err := strconv.Atoi(attr.Value); err == nil {
				return n
			}
		}
	}
	return 0
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return ""
	}
	const gb = 1024 * 1024 * 1024
	const mb = 1024 * 1024
	if bytes >= gb {
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(gb))
	}
	return fmt.Sprintf("%.0f MB", float64(bytes)/float64(mb))
}
