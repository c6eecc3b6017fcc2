package debrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// Torrent status strings reported by the acceleration service.
const (
	StatusMagnetError      = "magnet_error"
	StatusMagnetConversion = "magnet_conversion"
	StatusWaitingSelection = "waiting_files_selection"
	StatusQueued           = "queued"
	StatusDownloading      = "downloading"
	StatusDownloaded       = "downloaded"
	StatusError            = "error"
	StatusVirus            = "virus"
	StatusCompressing      = "compressing"
	StatusUploading        = "uploading"
	StatusDead             = "dead"
)

// ErrNotAccepted signals the service rejected or does not know the torrent
// (HTTP 400/404 from the info endpoint).
var ErrNotAccepted = errors.New("torrent not accepted by acceleration service")

// AddMagnetResult is the response to a magnet submission.
type AddMagnetResult struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// File describes one file inside a remote torrent.
type File struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

// TorrentInfo is the polled state of a remote torrent.
type TorrentInfo struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Hash     string   `json:"hash"`
	Bytes    int64    `json:"bytes"`
	Status   string   `json:"status"`
	Files    []File   `json:"files"`
	Links    []string `json:"links"`
}

// UnrestrictResult is the response to an unrestrict call.
type UnrestrictResult struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Download string `json:"download"`
}

// availabilityBatchSize is the service's ceiling on hashes per availability call.
const availabilityBatchSize = 50

// Client talks to the acceleration service's REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an acceleration-service API client. An empty baseURL uses
// the public endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.real-debrid.com/rest/1.0"
	}
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c != nil && c.apiKey != ""
}

func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	return c.httpClient.Do(req)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doRequest(req)
}

// AddMagnet submits a magnet URI and returns the remote torrent ID.
func (c *Client) AddMagnet(ctx context.Context, magnetURI string) (*AddMagnetResult, error) {
	if !c.HasCredential() {
		return nil, fmt.Errorf("acceleration API key not configured")
	}
	trimmed := strings.TrimSpace(magnetURI)
	if trimmed == "" {
		return nil, fmt.Errorf("magnet URI is required")
	}

	form := url.Values{}
	form.Set("magnet", trimmed)
	resp, err := c.postForm(ctx, "/torrents/addMagnet", form)
	if err != nil {
		return nil, fmt.Errorf("add magnet request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("acceleration authentication failed: invalid API key")
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("add magnet returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result AddMagnetResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode add magnet response: %w", err)
	}
	if result.ID == "" {
		return nil, fmt.Errorf("add magnet returned no torrent id")
	}
	log.Printf("[debrid] magnet added: id=%s", result.ID)
	return &result, nil
}

// TorrentInfo fetches the current state of a remote torrent. A 400 or 404
// response yields ErrNotAccepted; transient network and 5xx failures are
// retried before surfacing.
func (c *Client) TorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	if !c.HasCredential() {
		return nil, fmt.Errorf("acceleration API key not configured")
	}
	trimmedID := strings.TrimSpace(torrentID)
	if trimmedID == "" {
		return nil, fmt.Errorf("torrent ID is required")
	}

	endpoint := fmt.Sprintf("%s/torrents/info/%s", c.baseURL, url.PathEscape(trimmedID))

	var info TorrentInfo
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.doRequest(req)
			if err != nil {
				return fmt.Errorf("torrent info request failed: %w", err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(fmt.Errorf("%w (HTTP %d)", ErrNotAccepted, resp.StatusCode))
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return retry.Unrecoverable(fmt.Errorf("acceleration authentication failed: invalid API key"))
			case resp.StatusCode >= http.StatusInternalServerError:
				return fmt.Errorf("torrent info returned %d", resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return retry.Unrecoverable(fmt.Errorf("torrent info returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
			}

			info = TorrentInfo{}
			if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode torrent info response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// SelectFiles submits a file selection: a comma-separated list of file IDs or
// the literal "all".
func (c *Client) SelectFiles(ctx context.Context, torrentID, fileIDs string) error {
	if !c.HasCredential() {
		return fmt.Errorf("acceleration API key not configured")
	}
	trimmedID := strings.TrimSpace(torrentID)
	if trimmedID == "" {
		return fmt.Errorf("torrent ID is required")
	}

	form := url.Values{}
	form.Set("files", fileIDs)
	resp, err := c.postForm(ctx, "/torrents/selectFiles/"+url.PathEscape(trimmedID), form)
	if err != nil {
		return fmt.Errorf("select files request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("select files returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	log.Printf("[debrid] selected files for torrent %s: %s", trimmedID, fileIDs)
	return nil
}

// UnrestrictLink converts a hoster link into a direct download URL.
func (c *Client) UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error) {
	if !c.HasCredential() {
		return nil, fmt.Errorf("acceleration API key not configured")
	}
	trimmedLink := strings.TrimSpace(link)
	if trimmedLink == "" {
		return nil, fmt.Errorf("link is required")
	}

	form := url.Values{}
	form.Set("link", trimmedLink)
	resp, err := c.postForm(ctx, "/unrestrict/link", form)
	if err != nil {
		return nil, fmt.Errorf("unrestrict request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unrestrict returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result UnrestrictResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode unrestrict response: %w", err)
	}
	if result.Download == "" {
		return nil, fmt.Errorf("unrestrict returned no download URL")
	}
	log.Printf("[debrid] unrestricted link: %s -> %s", trimmedLink, result.Download)
	return &result, nil
}

// DeleteTorrent removes a torrent from the remote account.
func (c *Client) DeleteTorrent(ctx context.Context, torrentID string) error {
	if !c.HasCredential() {
		return fmt.Errorf("acceleration API key not configured")
	}
	trimmedID := strings.TrimSpace(torrentID)
	if trimmedID == "" {
		return fmt.Errorf("torrent ID is required")
	}

	endpoint := fmt.Sprintf("%s/torrents/delete/%s", c.baseURL, url.PathEscape(trimmedID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	resp, err := c.doRequest(req)
	if err != nil {
		return fmt.Errorf("delete torrent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete torrent returned %d", resp.StatusCode)
	}
	log.Printf("[debrid] torrent %s deleted", trimmedID)
	return nil
}

// InstantAvailability checks which of the given info hashes are cached.
// At most availabilityBatchSize hashes may be passed per call; the service
// rejects longer paths. The response maps each hash to its cached variants;
// a hash is cached when it has at least one non-empty variant.
func (c *Client) InstantAvailability(ctx context.Context, hashes []string) (map[string]bool, error) {
	if !c.HasCredential() {
		return nil, fmt.Errorf("acceleration API key not configured")
	}
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}
	if len(hashes) > availabilityBatchSize {
		return nil, fmt.Errorf("at most %d hashes per availability call, got %d", availabilityBatchSize, len(hashes))
	}

	endpoint := c.baseURL + "/torrents/instantAvailability/" + strings.Join(hashes, "/")

	var raw map[string]json.RawMessage
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.doRequest(req)
			if err != nil {
				return fmt.Errorf("availability request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("availability returned %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				return retry.Unrecoverable(fmt.Errorf("availability returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
			}

			raw = nil
			if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode availability response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	cached := make(map[string]bool, len(raw))
	for hash, payload := range raw {
		cached[strings.ToLower(hash)] = hasCachedVariant(payload)
	}
	return cached, nil
}

// hasCachedVariant inspects one hash's availability payload. The service
// returns either an empty array (uncached) or an object mapping hoster codes
// to lists of file-variant maps.
func hasCachedVariant(payload json.RawMessage) bool {
	var byHoster map[string][]map[string]json.RawMessage
	if err := json.Unmarshal(payload, &byHoster); err != nil {
		return false
	}
	for _, variants := range byHoster {
		for _, variant := range variants {
			if len(variant) > 0 {
				return true
			}
		}
	}
	return false
}
