package clientip

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name        string
		remoteAddr  string
		headers     map[string]string
		wantPrimary string
		wantKey     string
	}{
		{
			name:        "remote addr only",
			remoteAddr:  "10.0.0.1:5555",
			wantPrimary: "10.0.0.1",
			wantKey:     "10.0.0.1",
		},
		{
			name:        "ipv6 remote addr",
			remoteAddr:  "[2001:db8::1]:443",
			wantPrimary: "2001:db8::1",
			wantKey:     "2001:db8::1",
		},
		{
			name:        "fly header wins over later headers",
			remoteAddr:  "10.0.0.1:5555",
			headers:     map[string]string{"Fly-Client-IP": "1.1.1.1", "X-Real-IP": "2.2.2.2"},
			wantPrimary: "1.1.1.1",
			wantKey:     "1.1.1.1|10.0.0.1|2.2.2.2",
		},
		{
			name:        "first forwarded hop",
			remoteAddr:  "10.0.0.1:5555",
			headers:     map[string]string{"X-Forwarded-For": " 3.3.3.3 , 4.4.4.4"},
			wantPrimary: "3.3.3.3",
			wantKey:     "10.0.0.1|3.3.3.3",
		},
		{
			name:        "duplicate ips collapse",
			remoteAddr:  "5.5.5.5:80",
			headers:     map[string]string{"CF-Connecting-IP": "5.5.5.5"},
			wantPrimary: "5.5.5.5",
			wantKey:     "5.5.5.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			got := Extract(r)
			if got.Primary != tt.wantPrimary {
				t.Errorf("Primary = %q, want %q", got.Primary, tt.wantPrimary)
			}
			if got.RateLimitKey != tt.wantKey {
				t.Errorf("RateLimitKey = %q, want %q", got.RateLimitKey, tt.wantKey)
			}
		})
	}
}

func TestMiddleware_StoresInfo(t *testing.T) {
	var got Info
	var remote string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromRequest(r)
		remote = r.RemoteAddr
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Real-IP", "8.8.8.8")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if got.Primary != "8.8.8.8" || remote != "8.8.8.8" {
		t.Errorf("Primary = %q, RemoteAddr = %q", got.Primary, remote)
	}
	if FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()) != (Info{}) {
		t.Error("expected zero Info without middleware")
	}
}
