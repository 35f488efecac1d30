package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultSessionKeysURL はセッションCookieの署名検証に使う公開証明書の配布URL。
	DefaultSessionKeysURL = "https://www.googleapis.com/identitytoolkit/v3/relyingparty/publicKeys"

	sessionIssuerPrefix = "https://session.firebase.google.com/"
	keyCacheTTL         = time.Hour
)

// ErrUnknownKey は署名鍵IDが公開証明書に含まれない場合に返す。
var ErrUnknownKey = errors.New("unknown signing key")

// SessionClaims はセッションCookieのクレーム。
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// KeySource は鍵IDに対応するRSA公開鍵を返す。
type KeySource interface {
	PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// SessionVerifier はIdPが発行したセッションCookie（RS256のJWT）を検証する。
type SessionVerifier struct {
	projectID string
	keys      KeySource
	now       func() time.Time
}

// NewSessionVerifier はSessionVerifierを生成する。
func NewSessionVerifier(projectID string, keys KeySource) *SessionVerifier {
	return &SessionVerifier{projectID: projectID, keys: keys, now: time.Now}
}

// Verify はセッションCookieの署名・発行者・対象・有効期限を検証する。
func (v *SessionVerifier) Verify(ctx context.Context, cookie string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(cookie, claims,
		func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			if kid == "" {
				return nil, fmt.Errorf("kid header is missing")
			}
			return v.keys.PublicKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(sessionIssuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("セッションCookieの検証に失敗しました: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("セッションCookieのsubが空です")
	}
	return claims, nil
}

// HTTPKeySource は公開証明書をHTTPで取得し、一定時間キャッシュする。
type HTTPKeySource struct {
	url    string
	client *http.Client

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
	now     func() time.Time
}

// NewHTTPKeySource はHTTPKeySourceを生成する。urlが空の場合はDefaultSessionKeysURLを使う。
func NewHTTPKeySource(url string, client *http.Client) *HTTPKeySource {
	if url == "" {
		url = DefaultSessionKeysURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPKeySource{url: url, client: client, now: time.Now}
}

// PublicKey は鍵IDに対応する公開鍵を返す。キャッシュが切れていれば再取得する。
func (s *HTTPKeySource) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys == nil || s.now().After(s.expires) {
		keys, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.keys = keys
		s.expires = s.now().Add(keyCacheTTL)
	}

	key, ok := s.keys[kid]
	if !ok {
		return nil, ErrUnknownKey
	}
	return key, nil
}

// fetch は {kid: PEM証明書} 形式のJSONを取得して公開鍵に変換する。
func (s *HTTPKeySource) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("公開証明書リクエストの生成に失敗しました: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("公開証明書の取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("公開証明書の取得に失敗しました: status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return nil, fmt.Errorf("公開証明書の解析に失敗しました: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, certPEM := range certs {
		key, err := parseCertificateKey(certPEM)
		if err != nil {
			return nil, fmt.Errorf("公開証明書 %s の解析に失敗しました: %w", kid, err)
		}
		keys[kid] = key
	}
	return keys, nil
}

func parseCertificateKey(certPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, fmt.Errorf("PEMブロックが見つかりません")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("RSA公開鍵ではありません")
	}
	return key, nil
}

var _ KeySource = (*HTTPKeySource)(nil)
