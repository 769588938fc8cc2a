// Package backend talks to the fleet bookkeeping backend: the vision endpoint
// that reads tonnage from invoice frames, and the invoice endpoint.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"invoicecam/internal/dto"
)

// Backend endpoint paths.
const (
	UploadPath   = "/api/invoices/upload"
	InvoicesPath = "/api/invoices"

	// FrameField is the multipart field carrying the frame.
	FrameField    = "fatura_resmi"
	FrameFilename = "frame.jpg"

	maxErrorBody = 64 << 10
)

// Client is an HTTP client for the bookkeeping backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Detect uploads one JPEG frame and returns the detector's findings.
// An empty frame is still uploaded; the detector is expected to answer with no detections.
func (c *Client) Detect(ctx context.Context, frame []byte) (*dto.DetectionResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(FrameField, FrameFilename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError(resp, UploadPath, "frame processing failed")
	}

	var result dto.DetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if err == io.EOF {
			return nil, ErrEmptyResponse
		}
		return nil, fmt.Errorf("decode detection response: %w", err)
	}

	return &result, nil
}

// CreateInvoice persists an invoice on the backend.
func (c *Client) CreateInvoice(ctx context.Context, invoice dto.InvoiceRequest) (*dto.CreatedInvoice, error) {
	payload, err := json.Marshal(invoice)
	if err != nil {
		return nil, fmt.Errorf("encode invoice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+InvoicesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError(resp, InvoicesPath, "invoice could not be saved")
	}

	created := &dto.CreatedInvoice{Request: invoice}

	// The acknowledgement body is informational; only an id is picked out of it.
	var ack struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&ack); err == nil && len(ack.ID) > 0 {
		created.RemoteID = strings.Trim(string(ack.ID), `"`)
		if created.RemoteID == "null" {
			created.RemoteID = ""
		}
	}

	return created, nil
}

// parseError builds an APIError from a non-success response, preferring the body's message field.
func parseError(resp *http.Response, endpoint, fallback string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	message := fallback
	if err := json.Unmarshal(data, &body); err == nil {
		switch {
		case body.Message != "":
			message = body.Message
		case body.Error != "":
			message = body.Error
		}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: message, Endpoint: endpoint}
}
