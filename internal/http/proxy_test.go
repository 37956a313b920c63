package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/cloudvault/cloudvault-cli/internal/config"
	"github.com/cloudvault/cloudvault-cli/internal/logging"
)

// TestProxyFuncWithBypass_EmptyNoProxy verifies that an empty noProxy always routes through proxy.
func TestProxyFuncWithBypass_EmptyNoProxy(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "", logging.NewNopLogger())

	req, _ := http.NewRequest("GET", "https://vault.example.com/list", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected proxy URL, got nil (direct)")
	}
	if result.Host != "proxy.corp:8080" {
		t.Errorf("expected proxy host proxy.corp:8080, got %s", result.Host)
	}
}

// TestProxyFuncWithBypass_WildcardDomain verifies *.example.com bypasses vault.example.com.
func TestProxyFuncWithBypass_WildcardDomain(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "*.example.com", logging.NewNopLogger())

	req, _ := http.NewRequest("GET", "https://vault.example.com/list", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil (bypass) for vault.example.com, got %v", result)
	}

	req, _ = http.NewRequest("GET", "https://other.org/list", nil)
	result, _ = proxyFunc(req)
	if result == nil {
		t.Error("expected proxy for other.org")
	}
}

// TestProxyFuncWithBypass_MultiplePatterns verifies comma-separated bypass entries.
func TestProxyFuncWithBypass_MultiplePatterns(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")
	proxyFunc := proxyFuncWithBypass(proxyURL, "vault.internal,10.0.0.0/8", logging.NewNopLogger())

	for _, raw := range []string{"https://vault.internal/health", "http://10.1.2.3:5000/list"} {
		req, _ := http.NewRequest("GET", raw, nil)
		result, err := proxyFunc(req)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", raw, err)
		}
		if result != nil {
			t.Errorf("expected bypass for %s, got %v", raw, result)
		}
	}
}

func TestBuildProxyURL(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ProxyHost = "proxy.corp"

	u := buildProxyURL(cfg)
	if u.Host != "proxy.corp:8080" {
		t.Errorf("expected default port 8080, got %s", u.Host)
	}
	if u.User != nil {
		t.Error("credentials must not be embedded without a password")
	}

	cfg.ProxyPort = 3128
	cfg.ProxyUser = "alice"
	cfg.ProxyPassword = "s3cret"
	u = buildProxyURL(cfg)
	if u.Host != "proxy.corp:3128" {
		t.Errorf("expected port 3128, got %s", u.Host)
	}
	if pw, ok := u.User.Password(); !ok || pw != "s3cret" {
		t.Error("expected embedded password")
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	cfg := config.NewConfig()
	if NeedsProxyPassword(cfg) {
		t.Error("no-proxy never needs a password")
	}

	cfg.ProxyMode = "basic"
	cfg.ProxyUser = "alice"
	if !NeedsProxyPassword(cfg) {
		t.Error("basic mode with user and no password needs one")
	}

	cfg.ProxyPassword = "x"
	if NeedsProxyPassword(cfg) {
		t.Error("password already provided")
	}
}

func TestConfigureHTTPClient_Modes(t *testing.T) {
	cfg := config.NewConfig()

	client, err := ConfigureHTTPClient(cfg, nil)
	if err != nil {
		t.Fatalf("no-proxy: %v", err)
	}
	tr, ok := client.Transport.(*http.Transport)
	if !ok || tr.Proxy != nil {
		t.Error("no-proxy mode should use a plain transport without proxy")
	}

	cfg.ProxyMode = "basic"
	client, err = ConfigureHTTPClient(cfg, nil)
	if err != nil {
		t.Fatalf("basic without host should fall back, got %v", err)
	}
	if tr := client.Transport.(*http.Transport); tr.Proxy != nil {
		t.Error("basic without host should fall back to direct")
	}

	cfg.ProxyMode = "socks"
	if _, err := ConfigureHTTPClient(cfg, nil); err == nil {
		t.Error("expected error for unsupported proxy mode")
	}
}

func TestCreateOptimizedClient_ReachesServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.APIBaseURL = srv.URL

	client, err := CreateOptimizedClient(cfg, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("CreateOptimizedClient: %v", err)
	}
	if client.Timeout != 0 {
		t.Errorf("client must not carry an overall timeout, got %v", client.Timeout)
	}

	resp, err := client.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
