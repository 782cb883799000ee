package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, samplePages()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	require.Equal(t, "Results", f.GetSheetName(0))

	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, []string{"URL", "Title", "Content", "Word Count", "Status", "Timestamp"}, rows[0])
	require.Equal(t, "https://example.com", rows[1][0])
	require.Equal(t, "Welcome to our site, friends", rows[1][2])
	require.Equal(t, "error", rows[2][4])
}
