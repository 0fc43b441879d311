package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/msi-products/capwatch/internal/model"
)

// RenderJSON renders the collection as indented JSON, the format users
// download and the archive uploader ships.
func RenderJSON(entries []model.Entry) ([]byte, error) {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal entries: %w", err)
	}
	return data, nil
}

// RenderCSV renders the collection with the columns the options page exported.
func RenderCSV(entries []model.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Title", "Link", "Date", "Read", "Saved"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range entries {
		record := []string{
			e.Title,
			e.Link,
			e.Date.Format(time.RFC3339),
			strconv.FormatBool(e.Read),
			strconv.FormatBool(e.Saved),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
