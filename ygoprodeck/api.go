// Package ygoprodeck is a minimal client for the YGOPRODeck card database
// API, returning typed card records.
package ygoprodeck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	ygoCardInfoURL = "https://db.ygoprodeck.com/api/v7/cardinfo.php"

	// Requests over this rate get the caller IP blocked for an hour
	ygoRequestsPerSecond = 20

	ygoDateFormat     = "01/02/2006"
	archiveDateFormat = "01-02-2006"

	// DefaultNewCardsWeeks is the look-back window used when none is given
	DefaultNewCardsWeeks = 16

	AllCardsArchiveName = "yugi_all_cards.json"
)

// ErrNoCards is returned when a lookup expecting at least one card got none.
var ErrNoCards = errors.New("no cards found")

// FetchError reports a failed request, a non-success status, or a body
// that could not be decoded.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ArchiveFunc stores a raw response body under the given file name.
type ArchiveFunc func(name string, data []byte) error

type Client struct {
	client *retryablehttp.Client

	// BaseURL of the cardinfo endpoint, overridable for testing
	BaseURL string

	// When set, successful bulk responses are handed over verbatim
	Archiver ArchiveFunc
}

type limitTransport struct {
	Parent  http.RoundTripper
	Limiter *rate.Limiter
}

func (t *limitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	err := t.Limiter.Wait(req.Context())
	if err != nil {
		return nil, err
	}
	return t.Parent.RoundTrip(req)
}

func NewClient() *Client {
	ygo := Client{}
	ygo.BaseURL = ygoCardInfoURL
	ygo.client = retryablehttp.NewClient()
	ygo.client.Logger = nil
	ygo.client.HTTPClient = cleanhttp.DefaultPooledClient()
	ygo.client.HTTPClient.Transport = &limitTransport{
		Parent:  ygo.client.HTTPClient.Transport,
		Limiter: rate.NewLimiter(ygoRequestsPerSecond, 1),
	}
	// Hand back the last response once retries are exhausted so that
	// the status code ends up in the error
	ygo.client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &ygo
}

// URL builds the request link for the given parameters. Values are
// percent-encoded, spaces included.
func (ygo *Client) URL(params url.Values) string {
	if len(params) == 0 {
		return ygo.BaseURL
	}
	query := strings.ReplaceAll(params.Encode(), "+", "%20")
	return ygo.BaseURL + "?" + query
}

// SinceParams returns the parameters selecting cards released in the TCG
// during the given number of weeks before now.
func SinceParams(weeks int, now time.Time) url.Values {
	if weeks <= 0 {
		weeks = DefaultNewCardsWeeks
	}
	start := now.AddDate(0, 0, -7*weeks)

	v := url.Values{}
	v.Set("startdate", start.Format(ygoDateFormat))
	v.Set("enddate", now.Format(ygoDateFormat))
	v.Set("dateregion", "tcg_date")
	return v
}

// SinceArchiveName is the archive file name used by CardsSince.
func SinceArchiveName(now time.Time) string {
	return "yugi_all_cards-" + now.Format(archiveDateFormat) + ".json"
}

// Query performs a cardinfo request with arbitrary parameters.
func (ygo *Client) Query(ctx context.Context, params url.Values) (*Response, error) {
	return ygo.query(ctx, params, "")
}

// CardByNameInSet retrieves a single card by its exact name, restricted to
// cards that were printed in the given set.
func (ygo *Client) CardByNameInSet(ctx context.Context, name, setName string) (*Card, error) {
	v := url.Values{}
	v.Set("name", name)
	v.Set("cardset", setName)

	response, err := ygo.query(ctx, v, "")
	if err != nil {
		return nil, err
	}
	if len(response.Data) == 0 {
		return nil, &FetchError{
			URL: ygo.URL(v),
			Err: fmt.Errorf("%w for %s in %s", ErrNoCards, name, setName),
		}
	}
	return &response.Data[0], nil
}

// AllCards downloads the whole card database.
func (ygo *Client) AllCards(ctx context.Context) (*Response, error) {
	return ygo.query(ctx, nil, AllCardsArchiveName)
}

// CardsSince downloads the cards released in the last weeks, counting
// back from now.
func (ygo *Client) CardsSince(ctx context.Context, weeks int, now time.Time) (*Response, error) {
	return ygo.query(ctx, SinceParams(weeks, now), SinceArchiveName(now))
}

func (ygo *Client) query(ctx context.Context, params url.Values, archiveName string) (*Response, error) {
	link := ygo.URL(params)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, &FetchError{URL: link, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ygo.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: link, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: link, StatusCode: resp.StatusCode, Err: err}
	}

	var reply struct {
		Data  []Card `json:"data"`
		Error string `json:"error"`
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if json.Unmarshal(data, &reply) == nil && reply.Error != "" {
			msg = reply.Error
		} else if len(msg) > 256 {
			msg = msg[:256]
		}
		return nil, &FetchError{
			URL:        link,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %s", msg),
		}
	}

	err = json.Unmarshal(data, &reply)
	if err != nil {
		return nil, &FetchError{URL: link, StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal error: %w", err)}
	}
	if reply.Data == nil {
		return nil, &FetchError{URL: link, StatusCode: resp.StatusCode, Err: errors.New("missing data array")}
	}

	if archiveName != "" && ygo.Archiver != nil {
		err = ygo.Archiver(archiveName, data)
		if err != nil {
			return nil, &FetchError{URL: link, Err: fmt.Errorf("archive %s: %w", archiveName, err)}
		}
	}

	return &Response{Data: reply.Data}, nil
}
