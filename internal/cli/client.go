package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charliek/m3tail/internal/api"
	"github.com/charliek/m3tail/internal/domain"
)

// Client is an HTTP client for the m3tail API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	// streamClient has no overall timeout so streams can stay open
	streamClient *http.Client
}

// NewClient creates a new API client. An empty token sends no
// Authorization header.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}
}

// GetStatus gets the watch state and store counters
func (c *Client) GetStatus() (*api.StatusResponse, error) {
	var resp api.StatusResponse
	if err := c.do("GET", "/api/v1/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLogs gets records. With any of Search, Level or Tags set the server
// filters ad hoc; otherwise the session view is returned.
func (c *Client) GetLogs(params domain.LogParams) (*api.LogsResponse, error) {
	path := "/api/v1/logs"
	if query := logQuery(params); len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp api.LogsResponse
	if err := c.do("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearLogs drops every record on the server
func (c *Client) ClearLogs() error {
	var resp api.SuccessResponse
	return c.do("POST", "/api/v1/logs/clear", nil, &resp)
}

// GetFilter gets the session criteria
func (c *Client) GetFilter() (*api.FilterResponse, error) {
	var resp api.FilterResponse
	if err := c.do("GET", "/api/v1/filter", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetFilter replaces the session criteria
func (c *Client) SetFilter(filter api.FilterResponse) (*api.FilterResponse, error) {
	var resp api.FilterResponse
	if err := c.do("PUT", "/api/v1/filter", filter, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLevels gets the levels present in the store
func (c *Client) GetLevels() ([]string, error) {
	var resp api.LevelsResponse
	if err := c.do("GET", "/api/v1/levels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Levels, nil
}

// GetTags gets the tags present in the store
func (c *Client) GetTags() ([]string, error) {
	var resp api.TagsResponse
	if err := c.do("GET", "/api/v1/tags", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

// StartWatch starts watching path on the server
func (c *Client) StartWatch(path string) (*api.WatchResponse, error) {
	var resp api.WatchResponse
	if err := c.do("POST", "/api/v1/watch", api.WatchRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopWatch stops the server's watch
func (c *Client) StopWatch() (*api.WatchResponse, error) {
	var resp api.WatchResponse
	if err := c.do("POST", "/api/v1/watch/stop", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the instance to exit
func (c *Client) Shutdown() error {
	var resp api.SuccessResponse
	return c.do("POST", "/api/v1/shutdown", nil, &resp)
}

// StreamLogs streams view changes and calls the callback for each one.
// It returns nil when ctx is cancelled or the server closes the stream.
func (c *Client) StreamLogs(ctx context.Context, params domain.LogParams, callback func(api.ViewChangeResponse)) error {
	path := "/api/v1/logs/stream"
	query := logQuery(params)
	query.Del("lines")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.addAuthHeader(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var change api.ViewChangeResponse
			if err := json.Unmarshal([]byte(data), &change); err == nil {
				callback(change)
			}
		}
	}
}

// logQuery builds the query string shared by GetLogs and StreamLogs
func logQuery(params domain.LogParams) url.Values {
	query := url.Values{}
	if params.Search != "" {
		query.Set("search", params.Search)
	}
	if params.Level != "" {
		query.Set("level", params.Level)
	}
	if len(params.Tags) > 0 {
		query.Set("tags", strings.Join(params.Tags, ","))
	}
	if params.Lines > 0 {
		query.Set("lines", strconv.Itoa(params.Lines))
	}
	return query
}

func (c *Client) do(method, path string, body, v interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return responseError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

func responseError(resp *http.Response) error {
	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Code != "" {
		return fmt.Errorf("%s: %s", errResp.Code, errResp.Error)
	}
	return fmt.Errorf("request failed with status %d", resp.StatusCode)
}

// addAuthHeader adds the Authorization header if a token is available
func (c *Client) addAuthHeader(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
