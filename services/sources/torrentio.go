package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"resolvr/models"
	"resolvr/utils/quality"
)

const streamListDefaultBaseURL = "https://torrentio.strem.fun"

// StreamListProvider queries a torrentio-compatible stream-list addon for
// releases addressed directly by catalog ID.
type StreamListProvider struct {
	id         string
	name       string
	baseURL    string
	options    string // URL path options inserted before /stream, e.g. "sort=qualitysize"
	httpClient *http.Client
}

// NewStreamListProvider constructs a provider with sane defaults. An empty
// baseURL falls back to the public torrentio endpoint.
func NewStreamListProvider(id, name, baseURL, options string, client *http.Client) *StreamListProvider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = streamListDefaultBaseURL
	}
	return &StreamListProvider{
		id:         id,
		name:       strings.TrimSpace(name),
		baseURL:    strings.TrimRight(baseURL, "/"),
		options:    strings.TrimSpace(options),
		httpClient: client,
	}
}

func (p *StreamListProvider) ID() string { return p.id }

func (p *StreamListProvider) DisplayName() string {
	if p.name != "" {
		return p.name
	}
	return p.id
}

type streamListResponse struct {
	Streams []struct {
		Name     string `json:"name"`
		Title    string `json:"title"`
		InfoHash string `json:"infoHash"`
		URL      string `json:"url"`
		Seeders  any    `json:"seeders"`
	} `json:"streams"`
}

var (
	reStreamSeeders = regexp.MustCompile(`👤\s*(\d+)`)
	reStreamSize    = regexp.MustCompile(`💾\s*([\d.,]+\s*[KMGTP]?B)`)
)

func (p *StreamListProvider) Fetch(ctx context.Context, req FetchRequest) ([]models.StreamCandidate, error) {
	streamID := strings.TrimSpace(req.CatalogID)
	if streamID == "" {
		return nil, fmt.Errorf("empty catalog id")
	}
	if req.MediaType == models.MediaTypeSeries && req.Season > 0 && req.Episode > 0 {
		streamID = fmt.Sprintf("%s:%d:%d", streamID, req.Season, req.Episode)
	}

	var endpoint string
	if p.options != "" {
		endpoint = fmt.Sprintf("%s/%s/stream/%s/%s.json", p.baseURL, p.options, req.MediaType, url.PathEscape(streamID))
	} else {
		endpoint = fmt.Sprintf("%s/stream/%s/%s.json", p.baseURL, req.MediaType, url.PathEscape(streamID))
	}

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
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("stream list %s returned %d: %s", streamID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload streamListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode stream list response: %w", err)
	}

	candidates := make([]models.StreamCandidate, 0, len(payload.Streams))
	for _, stream := range payload.Streams {
		title := deriveTitleLine(stream.Title)
		infoHash := strings.ToLower(strings.TrimSpace(stream.InfoHash))

		candidate := models.StreamCandidate{
			Name:         strings.TrimSpace(stream.Name),
			DisplayTitle: title,
			Quality:      quality.Classify(stream.Name + " " + stream.Title),
			Seeders:      parseSeeders(stream.Seeders, stream.Title),
			SizeLabel:    parseSizeLabel(stream.Title),
			ProviderName: p.DisplayName(),
		}

		switch {
		case infoHash != "":
			candidate.ID = fmt.Sprintf("%s:%s", p.id, infoHash)
			candidate.Kind = models.KindTorrent
			candidate.Locator = buildMagnet(infoHash, title)
		case strings.TrimSpace(stream.URL) != "":
			candidate.ID = fmt.Sprintf("%s:%s", p.id, stream.URL)
			candidate.Kind = models.KindDirect
			candidate.Locator = strings.TrimSpace(stream.URL)
		default:
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func deriveTitleLine(raw string) string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) == 0 {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(lines[0])
}

func parseSeeders(src any, fallback string) int {
	switch v := src.(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	if match := reStreamSeeders.FindStringSubmatch(fallback); len(match) == 2 {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n
		}
	}
	return 0
}

func parseSizeLabel(raw string) string {
	if match := reStreamSize.FindStringSubmatch(raw); len(match) == 2 {
		return strings.TrimSpace(match[1])
	}
	return ""
}

// buildMagnet creates a magnet URI from an info hash and display name.
func buildMagnet(infoHash, title string) string {
	if infoHash == "" {
		return ""
	}
	builder := strings.Builder{}
	builder.WriteString("magnet:?xt=urn:btih:")
	builder.WriteString(infoHash)
	if title != "" {
		builder.WriteString("&dn=")
		builder.WriteString(url.QueryEscape(title))
	}
	return builder.String()
}
