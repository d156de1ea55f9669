package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	custom := &http.Client{Timeout: time.Minute}
	logger := &testLogger{}

	c, err := NewClient("https://valuation.example.com",
		WithAPIKey("abc"),
		WithHTTPClient(custom),
		WithTimeout(5*time.Second),
		WithLogger(logger),
		WithRetryMax(0),
		WithUserAgent("ua"),
	)

	assert.NoError(t, err)
	assert.Equal(t, "abc", c.apiKey)
	assert.Same(t, custom, c.httpClient)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	assert.Same(t, logger, c.logger)
	assert.Equal(t, 0, c.retryMax)
	assert.Equal(t, "ua", c.userAgent)
}

func TestOptions_IgnoreInvalidValues(t *testing.T) {
	c, err := NewClient("http://localhost",
		WithHTTPClient(nil),
		WithTimeout(-1),
		WithLogger(nil),
		WithRetryMax(-1),
		WithUserAgent(""),
	)

	assert.NoError(t, err)
	assert.NotNil(t, c.httpClient)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.Equal(t, noopLogger{}, c.logger)
	assert.Equal(t, 3, c.retryMax)
	assert.Contains(t, c.userAgent, "valuation-go-sdk")
}

func TestWithRetryWait(t *testing.T) {
	tests := []struct {
		name             string
		min, max         time.Duration
		wantMin, wantMax time.Duration
	}{
		{"both valid", time.Second, 2 * time.Second, time.Second, 2 * time.Second},
		{"max below min keeps max", time.Second, time.Millisecond, time.Second, 5 * time.Second},
		{"zero min ignored", 0, time.Second, 500 * time.Millisecond, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := NewClient("http://localhost", WithRetryWait(tt.min, tt.max))
			assert.Equal(t, tt.wantMin, c.retryWaitMin)
			assert.Equal(t, tt.wantMax, c.retryWaitMax)
		})
	}
}
