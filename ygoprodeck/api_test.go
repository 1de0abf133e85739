package ygoprodeck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	ygo := NewClient()
	ygo.BaseURL = server.URL
	return ygo
}

func serveFile(t *testing.T, path string) http.HandlerFunc {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

func TestURLEncoding(t *testing.T) {
	ygo := NewClient()

	v := url.Values{}
	v.Set("name", "Blue-Eyes White Dragon")
	v.Set("cardset", "A+B & C")
	link := ygo.URL(v)

	require.True(t, strings.HasPrefix(link, ygoCardInfoURL+"?"), link)
	require.Contains(t, link, "name=Blue-Eyes%20White%20Dragon")
	require.Contains(t, link, "cardset=A%2BB%20%26%20C")
	require.NotContains(t, link, "+")

	require.Equal(t, ygoCardInfoURL, ygo.URL(nil))
}

func TestSinceParams(t *testing.T) {
	now := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

	v := SinceParams(16, now)
	require.Equal(t, "06/29/2026", v.Get("startdate"))
	require.Equal(t, "10/19/2026", v.Get("enddate"))
	require.Equal(t, "tcg_date", v.Get("dateregion"))

	// Non-positive windows fall back to the default
	require.Equal(t, v, SinceParams(0, now))

	require.Equal(t, "yugi_all_cards-10-19-2026.json", SinceArchiveName(now))
}

func TestCardByNameInSet(t *testing.T) {
	fixture := serveFile(t, filepath.Join("testdata", "dark_magician.json"))
	ygo := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Dark Magician", r.URL.Query().Get("name"))
		require.Equal(t, "Legend of Blue Eyes White Dragon", r.URL.Query().Get("cardset"))
		require.NotContains(t, r.URL.RawQuery, "+")
		fixture(w, r)
	})

	card, err := ygo.CardByNameInSet(context.Background(), "Dark Magician", "Legend of Blue Eyes White Dragon")
	require.NoError(t, err)
	require.Equal(t, 46986414, card.Id)
	require.Equal(t, "Dark Magician", card.Name)
	require.Len(t, card.CardSets, 3)
	require.Len(t, card.CardImages, 1)
	require.Equal(t, 2500, *card.Atk)

	lob := card.InSet("legend of blue eyes white dragon")
	require.Len(t, lob.CardSets, 1)
	require.Equal(t, "LOB-005", lob.CardSets[0].SetCode)
	// The original card is left untouched
	require.Len(t, card.CardSets, 3)
}

func TestCardsSinceArchives(t *testing.T) {
	now := time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)
	fixture := serveFile(t, filepath.Join("testdata", "dark_magician.json"))
	ygo := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "06/29/2026", r.URL.Query().Get("startdate"))
		require.Equal(t, "10/19/2026", r.URL.Query().Get("enddate"))
		fixture(w, r)
	})

	archived := map[string][]byte{}
	ygo.Archiver = func(name string, data []byte) error {
		archived[name] = data
		return nil
	}

	response, err := ygo.CardsSince(context.Background(), DefaultNewCardsWeeks, now)
	require.NoError(t, err)
	require.Len(t, response.Data, 1)
	require.Contains(t, archived, "yugi_all_cards-10-19-2026.json")
	require.Contains(t, string(archived["yugi_all_cards-10-19-2026.json"]), "LOB-005")
}

func TestAllCardsArchiveToDir(t *testing.T) {
	dir := t.TempDir()
	ygo := newTestClient(t, serveFile(t, filepath.Join("testdata", "dark_magician.json")))
	ygo.Archiver = ArchiveToDir(dir)

	response, err := ygo.AllCards(context.Background())
	require.NoError(t, err)
	require.Len(t, response.Data, 1)

	data, err := os.ReadFile(filepath.Join(dir, AllCardsArchiveName))
	require.NoError(t, err)
	require.Contains(t, string(data), "Dark Magician")
}

func TestArchiveFailure(t *testing.T) {
	ygo := newTestClient(t, serveFile(t, filepath.Join("testdata", "dark_magician.json")))
	ygo.Archiver = ArchiveToDir(filepath.Join(t.TempDir(), "missing"))

	_, err := ygo.AllCards(context.Background())
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		Name   string
		Status int
		Body   string
	}{
		{"not found", http.StatusBadRequest, `{"error":"No card matching your query was found in the database."}`},
		{"plain error", http.StatusNotFound, `nothing here`},
		{"malformed", http.StatusOK, `{"data": [`},
		{"missing data", http.StatusOK, `{"meta": {}}`},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			ygo := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.Status)
				w.Write([]byte(test.Body))
			})

			_, err := ygo.Query(context.Background(), url.Values{"name": {"Nope"}})
			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			require.Equal(t, test.Status, fetchErr.StatusCode)
			require.Contains(t, fetchErr.URL, "name=Nope")
		})
	}
}

func TestCardByNameInSetEmpty(t *testing.T) {
	ygo := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	})

	_, err := ygo.CardByNameInSet(context.Background(), "Dark Magician", "Nowhere")
	require.True(t, errors.Is(err, ErrNoCards), err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
}

func TestTransportFailure(t *testing.T) {
	ygo := NewClient()
	ygo.BaseURL = "http://127.0.0.1:1"
	ygo.client.RetryMax = 0

	_, err := ygo.Query(context.Background(), nil)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Zero(t, fetchErr.StatusCode)
}
