// Package resend provides a minimal client for the Resend email API.
// Uses raw HTTP calls (no SDK) to minimize external dependencies.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// defaultBaseURL は Resend API のエンドポイント
const defaultBaseURL = "https://api.resend.com"

// Message は送信する1通のメール
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Client は Resend API クライアントのインターフェース
type Client interface {
	// Send はメールを送信し、Resend 側のメッセージ ID を返す
	Send(ctx context.Context, msg Message) (string, error)
}

// RealClient は Resend API への raw HTTP クライアント実装
type RealClient struct {
	APIKey     string
	BaseURL    string
	httpClient *http.Client
}

// NewClient は RealClient を生成する
func NewClient(apiKey string) *RealClient {
	return &RealClient{
		APIKey:     apiKey,
		BaseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ErrNotConfigured は API キーが設定されていない場合のエラー
var ErrNotConfigured = errors.New("resend: not configured")

// Send は POST /emails でメールを送信する
func (c *RealClient) Send(ctx context.Context, msg Message) (string, error) {
	if c.APIKey == "" {
		return "", ErrNotConfigured
	}

	jsonBody, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/emails", bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && resp.StatusCode < 400 {
		return "", err
	}
	if resp.StatusCode >= 400 {
		if result.Message != "" {
			return "", fmt.Errorf("resend: %s (%d)", result.Message, resp.StatusCode)
		}
		return "", fmt.Errorf("resend: unexpected status %d", resp.StatusCode)
	}
	return result.ID, nil
}
