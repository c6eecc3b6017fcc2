package debrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMagnetSendsFormAndAuth(t *testing.T) {
	var gotAuth, gotMagnet, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/torrents/addMagnet", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotMagnet = r.PostFormValue("magnet")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"ABC123","uri":"https://example.test/torrents/ABC123"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL)
	result, err := client.AddMagnet(context.Background(), "magnet:?xt=urn:btih:aaaabbbbccccddddeeeeffff0000111122223333")
	require.NoError(t, err)

	assert.Equal(t, "ABC123", result.ID)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "magnet:?xt=urn:btih:aaaabbbbccccddddeeeeffff0000111122223333", gotMagnet)
}

func TestAddMagnetRejectsEmptyInputs(t *testing.T) {
	client := NewClient("test-key", "http://unused.test")
	_, err := client.AddMagnet(context.Background(), "   ")
	assert.Error(t, err)

	noKey := NewClient("", "http://unused.test")
	_, err = noKey.AddMagnet(context.Background(), "magnet:?xt=urn:btih:abc")
	assert.Error(t, err)
	assert.False(t, noKey.HasCredential())
}

func TestTorrentInfoMapsRejectionToErrNotAccepted(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		client := NewClient("test-key", server.URL)
		_, err := client.TorrentInfo(context.Background(), "T1")
		assert.ErrorIs(t, err, ErrNotAccepted, "status %d", status)
		server.Close()
	}
}

func TestTorrentInfoRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"T1","filename":"movie.mkv","status":"downloaded","links":["https://host.test/abc"]}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL)
	info, err := client.TorrentInfo(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, StatusDownloaded, info.Status)
}

func TestSelectFilesPostsList(t *testing.T) {
	var gotFiles string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/torrents/selectFiles/T1", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotFiles = r.PostFormValue("files")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL)
	require.NoError(t, client.SelectFiles(context.Background(), "T1", "2"))
	assert.Equal(t, "2", gotFiles)
}

func TestUnrestrictLinkReturnsDownloadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/unrestrict/link", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "https://host.test/abc", r.PostFormValue("link"))
		w.Write([]byte(`{"id":"U1","filename":"movie.mkv","filesize":123,"download":"https://cdn.test/movie.mkv"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL)
	result, err := client.UnrestrictLink(context.Background(), "https://host.test/abc")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/movie.mkv", result.Download)
}

func TestDeleteTorrentToleratesNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/torrents/delete/T1", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL)
	assert.NoError(t, client.DeleteTorrent(context.Background(), "T1"))
}

func TestInstantAvailabilityParsesVariants(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/torrents/instantAvailability/aaa/bbb/ccc", r.URL.Path)
		w.Write([]byte(`{
			"aaa": {"rd": [{"1": {"filename": "movie.mkv", "filesize": 100}}]},
			"bbb": [],
			"ccc": {"rd": []}
		}`))
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL)
	cached, err := client.InstantAvailability(context.Background(), []string{"aaa", "bbb", "ccc"})
	require.NoError(t, err)

	assert.True(t, cached["aaa"])
	assert.False(t, cached["bbb"])
	assert.False(t, cached["ccc"])
}

func TestInstantAvailabilityEnforcesBatchCeiling(t *testing.T) {
	client := NewClient("test-key", "http://unused.test")
	hashes := make([]string, availabilityBatchSize+1)
	for i := range hashes {
		hashes[i] = "aaaa"
	}
	_, err := client.InstantAvailability(context.Background(), hashes)
	assert.Error(t, err)
}
