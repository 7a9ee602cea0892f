package collector

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"first public in chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 203.0.113.7"}, "10.0.0.9:1234", "203.0.113.7"},
		{"cloudfront viewer", map[string]string{"CloudFront-Viewer-Address": "198.51.100.4:44321"}, "10.0.0.9:1234", "198.51.100.4"},
		{"public remote addr", nil, "198.51.100.9:5555", "198.51.100.9"},
		{"private only", map[string]string{"X-Forwarded-For": "192.168.1.1"}, "127.0.0.1:80", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/usage_statistics", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}

func TestForwardedFor(t *testing.T) {
	r := httptest.NewRequest("POST", "/usage_statistics", nil)
	r.RemoteAddr = "127.0.0.1:80"
	assert.Empty(t, forwardedFor(r))

	r.RemoteAddr = "198.51.100.9:5555"
	assert.Equal(t, "198.51.100.9", forwardedFor(r))

	r.Header.Set("X-Forwarded-For", " 00.000.00.000, 00.000.000.000 ")
	assert.Equal(t, "00.000.00.000, 00.000.000.000", forwardedFor(r))

	r.Header.Set("X-Forwarded-For", strings.Repeat("1", 5000))
	assert.Len(t, forwardedFor(r), maxForwardedFor)
}
