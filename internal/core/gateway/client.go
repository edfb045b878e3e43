package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const maxBodyBytes = 16 << 20

// NewHTTPClient builds the client shared by the backend and source-host gateways.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// endpoint issues JSON requests against one base URL.
type endpoint struct {
	baseURL   string
	http      *http.Client
	accept    string
	userAgent string
}

type response struct {
	Status int
	Body   []byte
}

func (r response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// send performs a request and reads the whole body. Only transport failures
// are returned as errors; status handling is left to the caller.
func (e *endpoint) send(ctx context.Context, method, path, bearer string, body any) (response, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("encode body: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, rdr)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", e.accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{Status: resp.StatusCode}, fmt.Errorf("read body: %w", err)
	}
	return response{Status: resp.StatusCode, Body: data}, nil
}

// problem is the union of error shapes the backend answers with.
type problem struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

func parseProblem(body []byte) problem {
	var p problem
	if len(bytes.TrimSpace(body)) == 0 {
		return p
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return problem{}
	}
	return p
}

func (p problem) text() string {
	if p.Message != "" {
		return p.Message
	}
	return p.Error
}

// decodeOptional decodes body into v and reports whether there was anything to decode.
func decodeOptional(body []byte, v any) (bool, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return false, err
	}
	return true, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func trimBaseURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}
