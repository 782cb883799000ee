package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/JakeFAU/sitesnap/internal/crawler"
)

var columns = []string{"URL", "Title", "Content", "Word Count", "Status", "Timestamp"}

// WriteCSV writes the pages as a CSV table with normalized content.
func WriteCSV(w io.Writer, pages []crawler.PageResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, page := range pages {
		if err := cw.Write(row(page)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func row(page crawler.PageResult) []string {
	return []string{
		page.URL,
		page.Title,
		Normalize(page.Content),
		strconv.Itoa(page.WordCount),
		string(page.Status),
		page.Timestamp.Format(time.RFC3339),
	}
}
