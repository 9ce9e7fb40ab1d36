package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// maxReplySize caps how much of a webhook reply is read.
const maxReplySize = 64 << 10

// Webhook is a Hook that posts the domain as JSON to URL. A non-2xx reply
// rejects the operation with that status and body. A JSON reply carrying a
// "key" field rewrites the object key.
type Webhook struct {
	URL    string
	Client *http.Client
}

// NewWebhook creates a Webhook. A nil client uses http.DefaultClient.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{URL: url, Client: client}
}

type webhookPayload struct {
	Event       Slot   `json:"event"`
	Method      string `json:"method,omitempty"`
	Path        string `json:"path"`
	Key         string `json:"key"`
	FileName    string `json:"fileName,omitempty"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType,omitempty"`
	Status      int    `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}

type webhookReply struct {
	Key string `json:"key"`
}

func (w *Webhook) Run(ctx context.Context, slot Slot, d *Domain) error {
	payload := webhookPayload{
		Event:       slot,
		Method:      d.Method,
		Path:        d.Path,
		Key:         d.Key,
		FileName:    d.FileName,
		FileSize:    d.FileSize,
		ContentType: d.ContentType,
	}
	if d.Response != nil {
		payload.Status = d.Response.StatusCode
	}
	if d.Err != nil {
		payload.Error = d.Err.Error()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("call webhook: %w", err)
	}
	defer resp.Body.Close()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return fmt.Errorf("read webhook reply: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reject(resp.StatusCode, strings.TrimSpace(string(reply)))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" || len(bytes.TrimSpace(reply)) == 0 {
		return nil
	}

	var r webhookReply
	if err := json.Unmarshal(reply, &r); err != nil {
		return fmt.Errorf("decode webhook reply: %w", err)
	}
	if r.Key != "" {
		d.Key = strings.TrimPrefix(r.Key, "/")
	}
	return nil
}
