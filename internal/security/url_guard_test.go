package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_Timeout(t *testing.T) {
	guard := NewURLGuard()
	client := guard.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout %v, got %v", 5*time.Second, client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewURLGuard().NewSafeClient(5 * time.Second)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestValidateURL(t *testing.T) {
	guard := NewURLGuard()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://vimeo.com/api/oembed.json?url=https://vimeo.com/1", false},
		{"http://i.vimeocdn.com/video/1.jpg", false},
		{"", true},
		{"ftp://example.com/file", true},
		{"javascript:alert(1)", true},
		{"https:///path", true},
		{"http://10.0.0.1/", true},
		{"http://172.16.0.1/", true},
		{"http://192.168.1.100/", true},
		{"http://127.0.0.1/", true},
		{"http://localhost/", true},
		{"http://LOCALHOST:8080/", true},
		{"http://api.localhost/", true},
		{"http://169.254.169.254/latest/meta-data/", true},
		{"http://[::1]/", true},
		{"http://0.0.0.0/", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateImageURL_RequiresHTTPS(t *testing.T) {
	guard := NewURLGuard()

	if err := guard.ValidateImageURL("https://i.vimeocdn.com/video/1_640.jpg"); err != nil {
		t.Errorf("expected https image URL to pass, got %v", err)
	}
	if err := guard.ValidateImageURL("http://i.vimeocdn.com/video/1_640.jpg"); err == nil {
		t.Error("expected http image URL to be rejected")
	}
	if err := guard.ValidateImageURL("https://10.0.0.1/x.jpg"); err == nil {
		t.Error("expected private IP image URL to be rejected")
	}
}
