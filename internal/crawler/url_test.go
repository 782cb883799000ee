package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrigin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/path?q=1", "https://example.com"},
		{"http://example.com:8080/a", "http://example.com:8080"},
		{"https://sub.example.com", "https://sub.example.com"},
	}
	for _, tc := range cases {
		got, err := Origin(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got)
	}

	for _, bad := range []string{"", "example.com", "/relative/path", "://nope"} {
		_, err := Origin(bad)
		require.Error(t, err, bad)
	}
}

func TestValidateTarget(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateTarget("https://example.com"))
	require.NoError(t, ValidateTarget("http://example.com/deep/path"))

	for _, bad := range []string{"", "   ", "ftp://example.com", "example.com", "http://"} {
		require.Error(t, ValidateTarget(bad), bad)
	}
}
