package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewSSRFGuard はSSRFGuardの生成をテストする。
func TestNewSSRFGuard(t *testing.T) {
	guard := NewSSRFGuard()
	if guard == nil {
		t.Fatal("NewSSRFGuard() returned nil")
	}
}

// TestNewSafeClient はSSRF防止付きHTTPクライアントの生成をテストする。
func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(10*time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
}

// TestNewSafeClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewSafeClientTimeout(t *testing.T) {
	guard := NewSSRFGuard()
	timeout := 5 * time.Second
	client := guard.NewSafeClient(timeout)
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewSafeClientHasTransport はSafeClientにカスタムTransportが設定されていることをテストする。
// safeurlはnet.DialerのControlフックでIPアドレス検証を行うため、
// Transportが標準のhttp.DefaultTransportではないことを確認する。
func TestNewSafeClientHasTransport(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewSafeClientBlocksLoopback はSafeClientがループバックへのリクエストをブロックすることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	guard := NewSSRFGuard()
	client := guard.NewSafeClient(5*time.Second)

	_, err := client.Get(ts.URL)
	if err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

// TestValidateURL_PublicURL は公開URLの検証が成功することをテストする。
func TestValidateURL_PublicURL(t *testing.T) {
	guard := NewSSRFGuard()

	publicURLs := []string{
		"https://example.com/image.png",
		"https://cdn.example.com/img/photo.jpg",
		"http://blog.example.org/banner.gif",
		"https://203.0.113.10/pic.png",
	}

	for _, u := range publicURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

// TestValidateURL_PrivateIP はプライベートIPアドレスの拒否をテストする。
func TestValidateURL_PrivateIP(t *testing.T) {
	guard := NewSSRFGuard()

	privateURLs := []string{
		"http://10.0.0.1/image.png",
		"http://10.255.255.255/image.png",
		"http://172.16.0.1/image.png",
		"http://172.31.255.255/image.png",
		"http://192.168.0.1/image.png",
		"http://192.168.1.100/image.png",
	}

	for _, u := range privateURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for private IP", u)
			}
		})
	}
}

// TestValidateURL_LoopbackAddress はループバックアドレスの拒否をテストする。
func TestValidateURL_LoopbackAddress(t *testing.T) {
	guard := NewSSRFGuard()

	loopbackURLs := []string{
		"http://127.0.0.1/image.png",
		"http://127.0.0.2/image.png",
		"http://localhost/image.png",
	}

	for _, u := range loopbackURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for loopback address", u)
			}
		})
	}
}

// TestValidateURL_LinkLocalAddress はリンクローカルアドレスの拒否をテストする。
func TestValidateURL_LinkLocalAddress(t *testing.T) {
	guard := NewSSRFGuard()

	linkLocalURLs := []string{
		"http://169.254.0.1/image.png",
		"http://169.254.169.254/latest/meta-data/", // AWS metadata
	}

	for _, u := range linkLocalURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for link-local address", u)
			}
		})
	}
}

// TestValidateURL_MetadataIP はクラウドメタデータIPアドレスの拒否をテストする。
func TestValidateURL_MetadataIP(t *testing.T) {
	guard := NewSSRFGuard()

	metadataURLs := []string{
		"http://169.254.169.254/latest/meta-data/",             // AWS
		"http://169.254.169.254/metadata/instance?api-version=2021-02-01", // Azure
		"http://169.254.169.254/computeMetadata/v1/",           // GCP
	}

	for _, u := range metadataURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for metadata IP", u)
			}
		})
	}
}

// TestValidateURL_InvalidURL は無効なURLの検証が失敗することをテストする。
func TestValidateURL_InvalidURL(t *testing.T) {
	guard := NewSSRFGuard()

	invalidURLs := []string{
		"",
		"not-a-url",
		"ftp://example.com/image.png",
		"file:///etc/passwd",
		"gopher://example.com",
	}

	for _, u := range invalidURLs {
		t.Run(u, func(t *testing.T) {
			err := guard.ValidateURL(u)
			if err == nil {
				t.Errorf("ValidateURL(%q) should have returned error for invalid URL", u)
			}
		})
	}
}

// TestValidateURL_IPv6Loopback はIPv6ループバックアドレスの拒否をテストする。
func TestValidateURL_IPv6Loopback(t *testing.T) {
	guard := NewSSRFGuard()

	err := guard.ValidateURL("http://[::1]/image.png")
	if err == nil {
		t.Error("ValidateURL(\"http://[::1]/image.png\") should have returned error for IPv6 loopback")
	}
}

// TestValidateURL_ZeroAddress は0.0.0.0の拒否をテストする。
func TestValidateURL_ZeroAddress(t *testing.T) {
	guard := NewSSRFGuard()

	err := guard.ValidateURL("http://0.0.0.0/image.png")
	if err == nil {
		t.Error("ValidateURL(\"http://0.0.0.0/image.png\") should have returned error for zero address")
	}
}

// TestValidateURL_ExtraBlockedRanges はCGNATやIPv4射影アドレス、メタデータホスト名の拒否をテストする。
func TestValidateURL_ExtraBlockedRanges(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"http://100.64.0.1/image.png",
		"http://[::ffff:127.0.0.1]/image.png",
		"http://metadata.google.internal/computeMetadata/v1/",
		"http://LOCALHOST/image.png",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", u)
			}
		})
	}
}

// TestSSRFGuardInterface はSSRFGuardがインターフェースを正しく実装していることをテストする。
func TestSSRFGuardInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
