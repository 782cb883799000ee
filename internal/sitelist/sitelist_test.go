package sitelist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExtractsFirstURLPerLine(t *testing.T) {
	t.Parallel()

	in := strings.Join([]string{
		"https://example.com",
		"2. see https://two.example.org/page for details",
		"no url on this line",
		"",
		"http://three.example.net http://ignored.example.net",
	}, "\n")

	urls, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://example.com",
		"https://two.example.org/page",
		"http://three.example.net",
	}, urls)
}

func TestParseEmptyInput(t *testing.T) {
	t.Parallel()

	urls, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, urls)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	urls, err := Load(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)
	require.Nil(t, urls)
}

func TestLoadReadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "list_of_website.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://example.com\nhttps://other.org\n"), 0o600))

	urls, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com", "https://other.org"}, urls)
}
