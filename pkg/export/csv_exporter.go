package export

import (
	"fmt"

	"github.com/gocarina/gocsv"
)

// CSVExporter renders timetable rows into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes with a header line, even for an empty timetable.
func (e *CSVExporter) Render(rows []SessionRow) ([]byte, error) {
	if rows == nil {
		rows = []SessionRow{}
	}
	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return []byte(out), nil
}
