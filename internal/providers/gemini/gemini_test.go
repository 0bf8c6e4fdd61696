package gemini

import (
	"context"
	"testing"

	"github.com/lehigh-university-libraries/datagen/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"image/png", "png"},
		{"image/webp", "webp"},
		{"IMAGE/JPEG", "jpeg"},
		{"", "jpeg"},
		{"application/octet-stream", "jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, imageFormat(tt.in))
		})
	}
}

func TestDescribeRequiresKey(t *testing.T) {
	_, err := New().Describe(context.Background(), providers.Config{Image: []byte("img")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not set")
}
