package auth

import (
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

	"golang.org/x/oauth2/google"

	"github.com/hitoshi/blogman/internal/model"
)

const defaultIdentityBaseURL = "https://identitytoolkit.googleapis.com"

// adminScopes は管理API呼び出しに使うサービスアカウントのスコープ。
var adminScopes = []string{
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/cloud-platform",
}

// ErrAdminUnavailable はサービスアカウントが未設定で管理APIを呼べない場合に返す。
var ErrAdminUnavailable = errors.New("identity provider admin credentials are not configured")

// IdentityConfig はIdentity Toolkit REST APIの設定。
type IdentityConfig struct {
	APIKey          string
	ProjectID       string
	CredentialsJSON []byte

	// テスト用にオーバーライド可能な値
	BaseURL         string
	HTTPClient      *http.Client
	AdminHTTPClient *http.Client
}

// IdentityClient はIdentity Toolkit REST APIのクライアント。
// 利用者向けAPIはAPIキーで、管理APIはサービスアカウントのOAuth2トークンで呼び出す。
type IdentityClient struct {
	apiKey    string
	projectID string
	baseURL   string
	client    *http.Client
	admin     *http.Client
}

// NewIdentityClient はIdentityClientを生成する。
// CredentialsJSONが指定されていればgoogle.JWTConfigFromJSONで管理API用のクライアントを作る。
func NewIdentityClient(ctx context.Context, cfg IdentityConfig) (*IdentityClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultIdentityBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	admin := cfg.AdminHTTPClient
	if admin == nil && len(cfg.CredentialsJSON) > 0 {
		conf, err := google.JWTConfigFromJSON(cfg.CredentialsJSON, adminScopes...)
		if err != nil {
			return nil, fmt.Errorf("サービスアカウント設定の読み込みに失敗しました: %w", err)
		}
		admin = conf.Client(ctx)
	}

	return &IdentityClient{
		apiKey:    cfg.APIKey,
		projectID: cfg.ProjectID,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		client:    cfg.HTTPClient,
		admin:     admin,
	}, nil
}

// ProviderError はIdPが返したエラーを表す。CodeはEMAIL_NOT_FOUND等のエラーコード。
type ProviderError struct {
	Status int
	Code   string
}

// Error はerrorインターフェースを実装する。
func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error (%d): %s", e.Status, e.Code)
}

// ProviderErrorCode はerrがProviderErrorであればそのコードを返す。
func ProviderErrorCode(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// signInResponse はsignUp / signInWithPasswordのレスポンス。
type signInResponse struct {
	IDToken     string `json:"idToken"`
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// SignIn はメールアドレスとパスワードで認証し、IDトークンを取得する。
func (c *IdentityClient) SignIn(ctx context.Context, email, password string) (*model.LoginResult, error) {
	var resp signInResponse
	err := c.post(ctx, c.client, c.publicURL("accounts:signInWithPassword"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &model.LoginResult{
		LocalID:     resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		IDToken:     resp.IDToken,
	}, nil
}

// SignUp は管理者ユーザーを登録し、続けて表示名を設定する。
func (c *IdentityClient) SignUp(ctx context.Context, email, password, displayName string) (*model.AdminUser, error) {
	var created signInResponse
	err := c.post(ctx, c.client, c.publicURL("accounts:signUp"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &created)
	if err != nil {
		return nil, err
	}

	var updated signInResponse
	err = c.post(ctx, c.client, c.publicURL("accounts:update"), map[string]any{
		"idToken":           created.IDToken,
		"displayName":       displayName,
		"returnSecureToken": true,
	}, &updated)
	if err != nil {
		return nil, err
	}

	return &model.AdminUser{
		LocalID:     created.LocalID,
		Email:       email,
		DisplayName: displayName,
	}, nil
}

// CreateSessionCookie はIDトークンから有効期間ttlのセッションCookieを発行する。
func (c *IdentityClient) CreateSessionCookie(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	if c.admin == nil {
		return "", ErrAdminUnavailable
	}
	var resp struct {
		SessionCookie string `json:"sessionCookie"`
	}
	err := c.post(ctx, c.admin, c.projectURL(":createSessionCookie"), map[string]any{
		"idToken":       idToken,
		"validDuration": strconv.FormatInt(int64(ttl/time.Second), 10),
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.SessionCookie, nil
}

// lookupUser はaccounts:lookupのユーザー要素。日時はミリ秒のUNIX時刻文字列。
type lookupUser struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	EmailVerified bool   `json:"emailVerified"`
	CreatedAt     string `json:"createdAt"`
	LastLoginAt   string `json:"lastLoginAt"`
}

// LookupByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (c *IdentityClient) LookupByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	if c.admin == nil {
		return nil, ErrAdminUnavailable
	}
	var resp struct {
		Users []lookupUser `json:"users"`
	}
	err := c.post(ctx, c.admin, c.projectURL("/accounts:lookup"), map[string]any{
		"email": []string{email},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, nil
	}
	u := resp.Users[0]
	return &model.AdminUser{
		LocalID:       u.LocalID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
		CreatedAt:     parseMillis(u.CreatedAt),
		LastLoginAt:   parseMillis(u.LastLoginAt),
	}, nil
}

// UpdateUser はユーザー情報を更新する。空文字列のフィールドは送信しない。
func (c *IdentityClient) UpdateUser(ctx context.Context, localID, email, password, displayName string) error {
	if c.admin == nil {
		return ErrAdminUnavailable
	}
	body := map[string]any{"localId": localID}
	if email != "" {
		body["email"] = email
	}
	if password != "" {
		body["password"] = password
	}
	if displayName != "" {
		body["displayName"] = displayName
	}
	return c.post(ctx, c.admin, c.projectURL("/accounts:update"), body, nil)
}

func (c *IdentityClient) publicURL(method string) string {
	return c.baseURL + "/v1/" + method + "?key=" + url.QueryEscape(c.apiKey)
}

func (c *IdentityClient) projectURL(suffix string) string {
	return c.baseURL + "/v1/projects/" + url.PathEscape(c.projectID) + suffix
}

// errorResponse はIdentity Toolkitのエラーレスポンス。
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// post はJSONをPOSTし、成功時はoutにデコードする。
// エラーレスポンスはProviderErrorに変換する。
func (c *IdentityClient) post(ctx context.Context, client *http.Client, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("IdPへのリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("IdPレスポンスの読み込みに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if err := json.Unmarshal(body, &er); err != nil || er.Error.Message == "" {
			return &ProviderError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		}
		return &ProviderError{Status: resp.StatusCode, Code: providerCode(er.Error.Message)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("IdPレスポンスの解析に失敗しました: %w", err)
	}
	return nil
}

// providerCode は "WEAK_PASSWORD : Password should be ..." のような
// メッセージからエラーコード部分を取り出す。
func providerCode(message string) string {
	code, _, _ := strings.Cut(message, " : ")
	return strings.TrimSpace(code)
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
