// Package gotrue provides a lightweight client for the GoTrue auth API
// (the identity provider behind the admin login).
// Uses raw HTTP calls (no SDK) to minimize external dependencies.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// User は GoTrue 上のユーザーレコード
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt string         `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	BannedUntil      string         `json:"banned_until,omitempty"`
}

// Session はパスワードサインイン成功時に発行されるセッション
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// CreateUserParams は admin ユーザー作成のパラメータ
type CreateUserParams struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// UpdateUserParams は admin ユーザー更新のパラメータ。
// BanDuration に "none" を渡すと BAN が解除される。
type UpdateUserParams struct {
	Password     string         `json:"password,omitempty"`
	EmailConfirm bool           `json:"email_confirm,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	BanDuration  string         `json:"ban_duration,omitempty"`
}

// Client は GoTrue API クライアントのインターフェース
type Client interface {
	// GetUser はアクセストークンを検証し、対応するユーザーを返す
	GetUser(ctx context.Context, accessToken string) (*User, error)
	// CreateUser は admin API でユーザーを新規作成する
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	// ListUsers は admin API でユーザー一覧を取得する（1-origin ページ）
	ListUsers(ctx context.Context, page, perPage int) ([]User, error)
	// UpdateUser は admin API で既存ユーザーを更新する
	UpdateUser(ctx context.Context, userID string, params UpdateUserParams) (*User, error)
	// SignInWithPassword はメール＋パスワードでサインインしセッションを返す
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
}

// RealClient は GoTrue API への raw HTTP クライアント実装
type RealClient struct {
	BaseURL        string // https://<project>.supabase.co など（末尾スラッシュなし）
	AnonKey        string // 公開 API・サインイン検証用
	ServiceRoleKey string // admin API 用
	httpClient     *http.Client
}

// NewClient は RealClient を生成する
func NewClient(baseURL, anonKey, serviceRoleKey string) *RealClient {
	return &RealClient{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		AnonKey:        anonKey,
		ServiceRoleKey: serviceRoleKey,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
	}
}

// ErrNotConfigured は GoTrue が設定されていない場合のエラー
var ErrNotConfigured = errors.New("gotrue: not configured")

// APIError は GoTrue API からのエラー応答
type APIError struct {
	Status    int    // HTTP ステータス
	ErrorCode string // 構造化エラーコード（"email_exists" など、無い場合は空）
	Message   string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("gotrue: %s (%d %s)", e.Message, e.Status, e.ErrorCode)
	}
	return fmt.Sprintf("gotrue: %s (%d)", e.Message, e.Status)
}

// IsAlreadyRegistered reports whether err means the email is already taken.
// The structured error_code is checked first; the 400/422 status classes and
// the legacy message substring are kept only as a compatibility shim for
// older GoTrue versions that lack error codes.
func IsAlreadyRegistered(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.ErrorCode == "email_exists" || apiErr.ErrorCode == "phone_exists" {
		return true
	}
	if strings.Contains(strings.ToLower(apiErr.Message), "already registered") ||
		strings.Contains(strings.ToLower(apiErr.Message), "already been registered") {
		return true
	}
	return apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity
}

// GetUser は GET /auth/v1/user でトークンを検証する。
// anon キーを apikey に、検証対象トークンを Authorization に載せる。
func (c *RealClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if c.BaseURL == "" || c.AnonKey == "" {
		return nil, ErrNotConfigured
	}
	var user User
	err := c.do(ctx, http.MethodGet, "/auth/v1/user", c.AnonKey, "Bearer "+accessToken, nil, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser は POST /auth/v1/admin/users でユーザーを作成する
func (c *RealClient) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	if c.BaseURL == "" || c.ServiceRoleKey == "" {
		return nil, ErrNotConfigured
	}
	var user User
	err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users",
		c.ServiceRoleKey, "Bearer "+c.ServiceRoleKey, params, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers は GET /auth/v1/admin/users でユーザー一覧を取得する
func (c *RealClient) ListUsers(ctx context.Context, page, perPage int) ([]User, error) {
	if c.BaseURL == "" || c.ServiceRoleKey == "" {
		return nil, ErrNotConfigured
	}
	path := "/auth/v1/admin/users?page=" + strconv.Itoa(page) + "&per_page=" + strconv.Itoa(perPage)
	var result struct {
		Users []User `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, path, c.ServiceRoleKey, "Bearer "+c.ServiceRoleKey, nil, &result)
	if err != nil {
		return nil, err
	}
	return result.Users, nil
}

// UpdateUser は PUT /auth/v1/admin/users/{id} でユーザーを更新する
func (c *RealClient) UpdateUser(ctx context.Context, userID string, params UpdateUserParams) (*User, error) {
	if c.BaseURL == "" || c.ServiceRoleKey == "" {
		return nil, ErrNotConfigured
	}
	var user User
	err := c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+userID,
		c.ServiceRoleKey, "Bearer "+c.ServiceRoleKey, params, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SignInWithPassword は POST /auth/v1/token?grant_type=password でサインインする
func (c *RealClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if c.BaseURL == "" || c.AnonKey == "" {
		return nil, ErrNotConfigured
	}
	body := map[string]string{"email": email, "password": password}
	var session Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password",
		c.AnonKey, "Bearer "+c.AnonKey, body, &session)
	if err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, &APIError{Status: http.StatusInternalServerError, Message: "empty access token in response"}
	}
	return &session, nil
}

// do は共通のリクエスト処理。4xx/5xx は APIError に変換する。
func (c *RealClient) do(ctx context.Context, method, path, apiKey, authorization string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(jsonBody)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", authorization)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseAPIError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// parseAPIError は GoTrue のエラー応答を APIError に正規化する。
// エンドポイントによってフィールド名が揺れる（msg / message / error_description）。
func parseAPIError(resp *http.Response) error {
	var payload struct {
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorField       string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	msg := payload.Msg
	if msg == "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = payload.ErrorDescription
	}
	if msg == "" {
		msg = payload.ErrorField
	}
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, ErrorCode: payload.ErrorCode, Message: msg}
}
