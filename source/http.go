package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"syscall"
	"time"

	"github.com/liftlog/routinecache/logger"
	"github.com/liftlog/routinecache/routine"
)

var retry = 3

// Error describes a failed request to the document API.
type Error struct {
	URL      string
	Method   string
	Status   int
	Body     string
	TheError error
}

func (e *Error) Error() string {
	if e == nil || e.TheError == nil {
		return ""
	}
	return e.TheError.Error()
}

func (e *Error) Unwrap() error {
	return e.TheError
}

func newError(url, method string, status int, body string, err error) *Error {
	return &Error{
		URL:      url,
		Method:   method,
		Status:   status,
		Body:     body,
		TheError: err,
	}
}

// HTTPClient is a Source backed by the document API over HTTP.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  logger.Logger
}

var _ Source = (*HTTPClient)(nil)

// NewHTTP returns a Source talking to the document API at baseURL. The
// token, when non-empty, is sent as a bearer credential.
func NewHTTP(logger logger.Logger, baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  http.DefaultClient,
		logger:  logger.WithPrefix("source"),
	}
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
			return true
		}
	}
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
			return true
		}
	}
	return false
}

func (c *HTTPClient) get(ctx context.Context, pathParam string, query url.Values, response any) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return newError(c.baseURL, http.MethodGet, 0, "", fmt.Errorf("error parsing base url: %w", err))
	}
	u.Path = path.Join(u.Path, pathParam)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	c.logger.Trace("sending request: GET %s", u.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return newError(u.String(), http.MethodGet, 0, "", fmt.Errorf("error creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	var resp *http.Response
	for i := 0; i < retry; i++ {
		isLast := i == retry-1
		var err error
		resp, err = c.client.Do(req)
		if shouldRetry(resp, err) && !isLast {
			c.logger.Trace("client returned retryable error, retrying...")
			if resp != nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			// exponential backoff
			time.Sleep(time.Duration(150*(1<<i)) * time.Millisecond)
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return newError(u.String(), http.MethodGet, 0, "", fmt.Errorf("error sending request: %w", err))
		}
		break
	}
	defer resp.Body.Close()
	c.logger.Trace("response status: %s", resp.Status)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(u.String(), http.MethodGet, 0, "", fmt.Errorf("error reading response body: %w", err))
	}
	if resp.StatusCode == http.StatusNotFound {
		return newError(u.String(), http.MethodGet, resp.StatusCode, string(respBody), ErrNotFound)
	}
	if resp.StatusCode > 299 {
		return newError(u.String(), http.MethodGet, resp.StatusCode, string(respBody), fmt.Errorf("request failed with status (%s)", resp.Status))
	}
	if response != nil {
		if err := json.Unmarshal(respBody, response); err != nil {
			return newError(u.String(), http.MethodGet, resp.StatusCode, string(respBody), fmt.Errorf("error unmarshalling response: %w", err))
		}
	}
	return nil
}

func (c *HTTPClient) FetchOwnerRecord(ctx context.Context, ownerID string) (*OwnerRecord, error) {
	var rec OwnerRecord
	if err := c.get(ctx, "/v1/owners/"+url.PathEscape(ownerID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *HTTPClient) QueryOwnedRoutines(ctx context.Context, ownerID string, limit int) ([]routine.Routine, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var items []routine.Routine
	if err := c.get(ctx, "/v1/owners/"+url.PathEscape(ownerID)+"/routines", query, &items); err != nil {
		return nil, err
	}
	return items, nil
}
