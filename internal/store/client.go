package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	apperrors "github.com/alexjbarnes/filedrive/internal/errors"
)

// TransientError wraps an error that is likely temporary and safe to retry.
// The client itself never retries; the classification is for callers.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, meaning the caller may retry after a backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// defaultTimeout is the timeout for the default HTTP client used
	// when no custom client is provided.
	defaultTimeout = 30 * time.Second

	// maxResponseBytes caps response body reads. Folder records embed
	// base64 file payloads, so the cap is generous.
	maxResponseBytes = 64 * 1024 * 1024
)

// Client talks to the document store's flat REST surface: the /files and
// /folders collections. It owns no state, performs no retries, and does
// no caching; every call is a single request/response.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host, so record payloads never leak to
// third-party domains.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates a store client for the given base URL. If httpClient
// is nil, a client with a 30-second timeout and same-host redirect policy
// is created.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:       defaultTimeout,
			CheckRedirect: sameHostRedirectPolicy,
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	// Ensure valid UTF-8 and replace control characters.
	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

// do sends a request with an optional JSON body and returns the raw
// response body. Non-2xx statuses become errors; network failures and
// retryable statuses are wrapped in TransientError.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := fmt.Errorf("%w: sending %s %s: %w", apperrors.ErrStoreRequest, method, path, err)
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return nil, &TransientError{Err: wrapped}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("%w: store %s %s returned status %d: %s", apperrors.ErrStoreResponse, method, path, resp.StatusCode, sanitizeResponseBody(respBody))
		if isTransientStatus(resp.StatusCode) {
			return nil, &TransientError{Err: err}
		}

		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, err.Error())
		}

		return nil, err
	}

	return respBody, nil
}

// ListFiles returns all records in the root /files collection.
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	body, err := c.do(ctx, http.MethodGet, "/files", nil)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	files, err := decodeFiles(body)
	if err != nil {
		return nil, fmt.Errorf("decoding /files response: %w", err)
	}

	return files, nil
}

// GetFile returns a single root file by id.
func (c *Client) GetFile(ctx context.Context, id string) (*File, error) {
	body, err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting file %s: %w", id, err)
	}

	f, err := decodeFile(body)
	if err != nil {
		return nil, fmt.Errorf("decoding file %s: %w", id, err)
	}

	return f, nil
}

// CreateFile persists a new root file record and returns the stored copy.
func (c *Client) CreateFile(ctx context.Context, f File) (*File, error) {
	body, err := c.do(ctx, http.MethodPost, "/files", f)
	if err != nil {
		return nil, fmt.Errorf("creating file %q: %w", f.Name, err)
	}

	created, err := decodeFile(body)
	if err != nil {
		return nil, fmt.Errorf("decoding created file: %w", err)
	}

	return created, nil
}

// PatchFile applies a partial update to a root file record.
func (c *Client) PatchFile(ctx context.Context, id string, patch FilePatch) error {
	if _, err := c.do(ctx, http.MethodPatch, "/files/"+url.PathEscape(id), patch); err != nil {
		return fmt.Errorf("patching file %s: %w", id, err)
	}

	return nil
}

// DeleteFile removes a root file record by id.
func (c *Client) DeleteFile(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/files/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("deleting file %s: %w", id, err)
	}

	return nil
}

// ListFolders returns all records in the /folders collection.
func (c *Client) ListFolders(ctx context.Context) ([]Folder, error) {
	body, err := c.do(ctx, http.MethodGet, "/folders", nil)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	folders, err := decodeFolders(body)
	if err != nil {
		return nil, fmt.Errorf("decoding /folders response: %w", err)
	}

	return folders, nil
}

// FolderByName returns the folder with the given name, or nil when no
// folder matches. The store treats name as a filterable field, not a key,
// so the response is an array; the first match wins.
func (c *Client) FolderByName(ctx context.Context, name string) (*Folder, error) {
	body, err := c.do(ctx, http.MethodGet, "/folders?name="+url.QueryEscape(name), nil)
	if err != nil {
		return nil, fmt.Errorf("querying folder %q: %w", name, err)
	}

	folders, err := decodeFolders(body)
	if err != nil {
		return nil, fmt.Errorf("decoding folder query response: %w", err)
	}

	if len(folders) == 0 {
		return nil, nil
	}

	return &folders[0], nil
}

// GetFolder returns a single folder by id.
func (c *Client) GetFolder(ctx context.Context, id string) (*Folder, error) {
	body, err := c.do(ctx, http.MethodGet, "/folders/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting folder %s: %w", id, err)
	}

	f, err := decodeFolder(body)
	if err != nil {
		return nil, fmt.Errorf("decoding folder %s: %w", id, err)
	}

	return f, nil
}

// CreateFolder persists a new folder record, embedded files included,
// and returns the stored copy.
func (c *Client) CreateFolder(ctx context.Context, f Folder) (*Folder, error) {
	body, err := c.do(ctx, http.MethodPost, "/folders", f)
	if err != nil {
		return nil, fmt.Errorf("creating folder %q: %w", f.Name, err)
	}

	created, err := decodeFolder(body)
	if err != nil {
		return nil, fmt.Errorf("decoding created folder: %w", err)
	}

	return created, nil
}

// PatchFolder applies a partial update to a folder record.
func (c *Client) PatchFolder(ctx context.Context, id string, patch FolderPatch) error {
	if _, err := c.do(ctx, http.MethodPatch, "/folders/"+url.PathEscape(id), patch); err != nil {
		return fmt.Errorf("patching folder %s: %w", id, err)
	}

	return nil
}

// DeleteFolder removes a folder record by id, embedded files included.
func (c *Client) DeleteFolder(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/folders/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("deleting folder %s: %w", id, err)
	}

	return nil
}
