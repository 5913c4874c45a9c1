package constants

import (
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	if DefaultPort != "8080" {
		t.Errorf("Expected DefaultPort to be '8080', got '%s'", DefaultPort)
	}

	if DefaultDBPath != "tilevault.db" {
		t.Errorf("Expected DefaultDBPath to be 'tilevault.db', got '%s'", DefaultDBPath)
	}

	if DefaultConcurrency < 1 {
		t.Errorf("Expected DefaultConcurrency to be positive, got %d", DefaultConcurrency)
	}

	if DefaultProgressFlushEvery != 10 {
		t.Errorf("Expected DefaultProgressFlushEvery to be 10, got %d", DefaultProgressFlushEvery)
	}
}

func TestZoomLimits(t *testing.T) {
	if MinZoom != 0 || MaxZoom != 22 {
		t.Errorf("Expected zoom range 0-22, got %d-%d", MinZoom, MaxZoom)
	}
}

func TestTimeouts(t *testing.T) {
	if DefaultFetchTimeout <= 0 {
		t.Errorf("Expected DefaultFetchTimeout to be positive, got %v", DefaultFetchTimeout)
	}

	if DefaultRateLimit > time.Second {
		t.Errorf("Expected DefaultRateLimit to be at most 1s, got %v", DefaultRateLimit)
	}
}

func TestMimeTypes(t *testing.T) {
	for _, m := range []string{MimeTypeJSON, MimeTypePNG, MimeTypeJPEG, MimeTypeWebP} {
		if m == "" {
			t.Error("MIME type constant should not be empty")
		}
	}
}
