package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const DefaultTimeout = 30 * time.Second

// Observer is notified once per remote call. statusCode is 0 when no response was received.
type Observer func(method string, endpoint string, statusCode int, elapsed time.Duration)

// Transport issues authenticated JSON requests against a workspace host. It is
// immutable, the With* functions return modified copies.
type Transport struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
}

// NewTransport creates a transport for the given workspace host. The host is
// normalized with NormalizeHost.
func NewTransport(host string) (*Transport, error) {
	baseURL, err := NormalizeHost(host)
	if err != nil {
		return nil, err
	}
	return &Transport{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.New(slog.DiscardHandler),
	}, nil
}

func (t *Transport) clone() *Transport {
	c := *t
	return &c
}

func (t *Transport) WithToken(authToken string) *Transport {
	if t == nil {
		return nil
	}
	c := t.clone()
	c.authToken = strings.TrimSpace(authToken)
	return c
}

func (t *Transport) WithHTTPClient(httpClient *http.Client) *Transport {
	if t == nil {
		return nil
	}
	c := t.clone()
	c.httpClient = httpClient
	return c
}

// WithTimeout sets the timeout of every request made by the transport. A zero or
// negative timeout leaves the current value in place.
func (t *Transport) WithTimeout(timeout time.Duration) *Transport {
	if t == nil {
		return nil
	}
	if timeout <= 0 {
		return t
	}
	c := t.clone()
	httpClient := *t.httpClient
	httpClient.Timeout = timeout
	c.httpClient = &httpClient
	return c
}

func (t *Transport) WithLogger(logger *slog.Logger) *Transport {
	if t == nil {
		return nil
	}
	c := t.clone()
	c.logger = logger
	return c
}

func (t *Transport) WithObserver(observer Observer) *Transport {
	if t == nil {
		return nil
	}
	c := t.clone()
	c.observer = observer
	return c
}

func (t *Transport) GetBaseURL() string {
	return t.baseURL
}

func (t *Transport) GetLogger() *slog.Logger {
	return t.logger
}

func (t *Transport) observe(method string, endpoint string, statusCode int, started time.Time) {
	if t.observer != nil {
		t.observer(method, endpoint, statusCode, time.Since(started))
	}
}

// Do performs a request against the workspace API and returns the response body of
// a 2xx response. Non-success responses are returned as *APIError, connection
// failures as *TransportError and encoding problems as *MalformedInputError.
func (t *Transport) Do(ctx context.Context, method string, endpoint string, query url.Values, body any) ([]byte, error) {
	t.logger.Info("Workspace request started", "method", method, "endpoint", endpoint)
	started := time.Now()

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.logger.Info("Workspace request errored", "method", method, "endpoint", endpoint, "stage", "failed to marshal request body", "error", err.Error())
			return nil, &MalformedInputError{Field: "request body", Reason: "failed to marshal request body", Err: err}
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	target := t.baseURL + endpoint
	if len(query) > 0 {
		target = target + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		t.logger.Info("Workspace request errored", "method", method, "endpoint", endpoint, "stage", "failed to create request", "error", err.Error())
		return nil, &MalformedInputError{Field: "request", Reason: "failed to create request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.authToken != "" {
		if strings.HasPrefix(t.authToken, "Bearer ") || strings.HasPrefix(t.authToken, "Basic ") {
			req.Header.Set("Authorization", t.authToken)
		} else {
			req.Header.Set("Authorization", "Bearer "+t.authToken)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.observe(method, endpoint, 0, started)
		t.logger.Info("Workspace request errored", "method", method, "endpoint", endpoint, "stage", "failed to execute request", "error", err.Error())
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	t.observe(method, endpoint, resp.StatusCode, started)
	if err != nil {
		t.logger.Info("Workspace request errored", "method", method, "endpoint", endpoint, "stage", "failed to read response body", "error", err.Error())
		return nil, &TransportError{Method: method, Endpoint: endpoint, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode:   resp.StatusCode,
			ResponseBody: string(respBody),
		}
		remoteErr := RemoteErrorBody{}
		if err := json.Unmarshal(respBody, &remoteErr); err == nil {
			apiErr.ErrorCode = remoteErr.ErrorCode
			apiErr.Message = remoteErr.Message
			t.logger.Info("Workspace request failed", "method", method, "endpoint", endpoint, "status", resp.StatusCode, "error_code", remoteErr.ErrorCode, "message", remoteErr.Message)
		} else {
			t.logger.Info("Workspace request failed", "method", method, "endpoint", endpoint, "status", resp.StatusCode, "response", apiErr.ResponseBody)
		}
		return nil, apiErr
	}

	t.logger.Info("Workspace request successful", "method", method, "endpoint", endpoint, "status", resp.StatusCode)
	return respBody, nil
}

// Decode unmarshals a JSON response body into a struct of type T.
func Decode[T any](respBody []byte) (*T, error) {
	var response T
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &response, nil
}
