// Package relay posts form submissions to a third-party form-relay service.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

var (
	// ErrTransport marks a request that never reached the relay or never came back.
	ErrTransport = errors.New("relay transport failure")
	// ErrRejected marks a relay response outside the 2xx range.
	ErrRejected = errors.New("relay rejected submission")
)

// TransportError wraps the underlying network error of a failed request.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("post %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// RejectedError reports the status code the relay answered with.
type RejectedError struct {
	Endpoint   string
	StatusCode int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("post %s: relay answered %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

// Field is one text part of a multipart submission.
type Field struct {
	Name  string
	Value string
}

// File is the binary part of a multipart submission.
type File struct {
	FieldName   string
	Filename    string
	ContentType string
	Data        []byte
}

// Client sends submissions. The zero value is not usable; call New.
type Client struct {
	httpClient *http.Client
}

// New builds a client. A zero timeout leaves requests unbounded.
func New(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// NewWithHTTPClient wraps an existing http.Client, mostly for tests.
func NewWithHTTPClient(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{httpClient: hc}
}

// PostJSON sends v as a JSON object.
func (c *Client) PostJSON(ctx context.Context, endpoint string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// PostMultipart sends fields and, when file is non-nil, the file part.
func (c *Client) PostMultipart(ctx context.Context, endpoint string, fields []Field, file *File) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return fmt.Errorf("write field %q: %w", f.Name, err)
		}
	}
	if file != nil {
		if err := writeFile(w, file); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func writeFile(w *multipart.Writer, file *File) error {
	part, err := w.CreatePart(fileHeader(file))
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) error {
	endpoint := req.URL.String()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectedError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}
	return nil
}
