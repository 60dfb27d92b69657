// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package luminous provides the HTTP client for the Luminous chat server.
//
// This file implements the Client: the streaming completion call, the
// resume stream for research still running on the server, the fire-and-forget
// stop notice, model discovery and the chat persistence endpoints. Failures
// are returned as *ClientError so callers can tell timeouts, refused
// connections and HTTP status errors apart.
package luminous

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/luminous-tui/internal/model"
	"github.com/jeranaias/luminous-tui/internal/sse"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the client.
type ClientConfig struct {
	// BaseURL of the server, e.g. http://127.0.0.1:5000. Empty means the
	// client is not configured and every call fails with ErrNotConfigured.
	BaseURL string

	// Timeout for non-streaming requests (default: 30s). Streams are bounded
	// only by their context.
	Timeout time.Duration

	// UserAgent sent with every request.
	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:   "http://127.0.0.1:5000",
		Timeout:   30 * time.Second,
		UserAgent: "luminous-tui",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the Luminous server. It is safe for concurrent use.
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a client with the default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client, filling zero values with defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "luminous-tui"
	}

	return &Client{
		config:       &cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
	}
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Configured reports whether a server URL is set.
func (c *Client) Configured() bool {
	return c.config.BaseURL != ""
}

// =============================================================================
// STREAMING
// =============================================================================

// StreamCompletion starts a streaming completion. Non-2xx responses return
// an *APIError.
func (c *Client) StreamCompletion(ctx context.Context, req CompletionRequest) (*sse.Reader, error) {
	req.Stream = true
	req.StreamOptions.IncludeUsage = true
	if req.Messages == nil {
		req.Messages = []model.Message{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}
	return c.openStream(ctx, http.MethodPost, "/v1/chat/completions", body)
}

// ResumeEvents re-attaches to a turn still running server-side for chatID.
func (c *Client) ResumeEvents(ctx context.Context, chatID string) (*sse.Reader, error) {
	return c.openStream(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/events", nil)
}

func (c *Client) openStream(ctx context.Context, method, path string, body []byte) (*sse.Reader, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, wrapTransport("stream request", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return sse.NewReader(ctx, resp.Body), nil
}

// =============================================================================
// CHATS
// =============================================================================

// StopChat asks the server to cancel the running turn of chatID and drop
// it from the stored chat.
func (c *Client) StopChat(ctx context.Context, chatID string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/stop", nil, nil)
}

// ListChats returns chat metadata, newest first.
func (c *Client) ListChats(ctx context.Context) ([]model.ChatMeta, error) {
	var chats []model.ChatMeta
	if err := c.doJSON(ctx, http.MethodGet, "/api/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// GetChat returns a chat with its messages. Unknown ids return
// ErrChatNotFound.
func (c *Client) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	err := c.doJSON(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(id), nil, &chat)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// SaveChat replaces the stored chat and its messages.
func (c *Client) SaveChat(ctx context.Context, chat model.Chat) error {
	msgs := chat.Messages
	if msgs == nil {
		msgs = []model.Message{}
	}
	body := saveChatRequest{
		ChatID:           chat.ID,
		Title:            chat.Title,
		Messages:         msgs,
		MemoryMode:       bool(chat.MemoryMode),
		DeepResearchMode: bool(chat.DeepResearchMode),
		IsVision:         bool(chat.IsVision),
		LastModel:        chat.LastModel,
	}
	return c.doJSON(ctx, http.MethodPost, "/api/chats/save", body, nil)
}

// PatchChat updates the title and/or last model of a chat.
func (c *Client) PatchChat(ctx context.Context, id string, patch model.ChatPatch) error {
	if patch.Empty() {
		return nil
	}
	return c.doJSON(ctx, http.MethodPatch, "/api/chats/"+url.PathEscape(id), patch, nil)
}

// DeleteChat deletes one chat.
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(id), nil, nil)
}

// ClearChats deletes every chat.
func (c *Client) ClearChats(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/chats", nil, nil)
}

// ResetMemory clears the server's long-term memory store.
func (c *Client) ResetMemory(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/memory/reset", struct{}{}, nil)
}

// =============================================================================
// MODELS
// =============================================================================

// ListModels returns the models offered by the server.
func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	var list modelList
	if err := c.doJSON(ctx, http.MethodGet, "/v1/models", nil, &list); err != nil {
		return nil, err
	}

	entries := list.Data
	if len(entries) == 0 {
		entries = list.Models
	}
	models := make([]model.ModelInfo, 0, len(entries))
	for _, e := range entries {
		id := e.ID
		if id == "" {
			id = e.Key
		}
		if id == "" {
			continue
		}
		models = append(models, model.ModelInfo{
			ID:     id,
			Name:   e.DisplayName,
			Vision: e.Capabilities.Vision,
		})
	}
	return models, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, rd)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	return req, nil
}

// doJSON sends in (when non-nil) as JSON and decodes the response into out
// (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return wrapTransport(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: fmt.Sprintf("failed to decode %s %s response", method, path),
			Cause:   err,
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil {
		return newAPIError(resp.StatusCode, strings.TrimSpace(eb.Error))
	}
	return newAPIError(resp.StatusCode, "")
}
