// Package export renders the visible history as CSV or XLSX.
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/streamgate/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned for formats other than csv and xlsx.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet that holds the history in XLSX exports.
const SheetName = "History"

// Columns is the header row shared by both formats.
var Columns = []string{"id", "type", "source", "description", "status", "timestamp", "raw_id"}

// ParseFormat accepts csv or xlsx (case-insensitive). Empty defaults to csv.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatCSV):
		return FormatCSV, nil
	case string(FormatXLSX):
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName builds the download name for an export taken at the given time.
func (f Format) FileName(at time.Time) string {
	return fmt.Sprintf("history-%s.%s", at.UTC().Format("20060102T150405Z"), f)
}

// Service writes history exports.
type Service struct {
	logger *zap.Logger
}

// NewService creates an export service.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// Write renders events, in the given order, to w.
func (s *Service) Write(w io.Writer, format Format, events []domain.Event) error {
	var err error
	switch format {
	case FormatCSV:
		err = writeCSV(w, events)
	case FormatXLSX:
		err = writeXLSX(w, events)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return err
	}
	s.logger.Debug("history exported", zap.String("format", string(format)), zap.Int("rows", len(events)))
	return nil
}

func writeCSV(w io.Writer, events []domain.Event) error {
	buffered := bufio.NewWriter(w)
	csvWriter := csv.NewWriter(buffered)
	if err := csvWriter.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, event := range events {
		if err := csvWriter.Write(eventRow(event)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return buffered.Flush()
}

func writeXLSX(w io.Writer, events []domain.Event) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write xlsx header: %w", err)
	}

	for i, event := range events {
		values := eventRow(event)
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write xlsx row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func eventRow(event domain.Event) []string {
	return []string{
		formatValue(event.ID),
		event.Type,
		event.Source,
		event.Description,
		string(event.Status),
		formatValue(event.Time()),
		formatValue(event.RawID),
	}
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
