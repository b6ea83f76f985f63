package source

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/streamgate/internal/domain"
)

var (
	typeColumns        = []string{"type", "event_type", "kind"}
	descriptionColumns = []string{"description", "message", "summary", "title"}

	timeLayouts = []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05.999999Z07:00",
		"2006-01-02 15:04:05Z07",
		"2006-01-02",
	}
)

// RowID renders the id column of row as a string. ok is false when the id is absent or empty.
func RowID(table domain.SourceTable, row Row) (string, bool) {
	table = table.WithDefaults()
	s := scalarString(row[table.IDColumn])
	return s, s != ""
}

// MapRow converts a fetched row into an event. fetchedAt is used when the
// timestamp column is missing or unparseable.
func MapRow(table domain.SourceTable, row Row, fetchedAt time.Time) (domain.Event, error) {
	table = table.WithDefaults()

	rowID, ok := RowID(table, row)
	if !ok {
		return domain.Event{}, fmt.Errorf("row has no %q value", table.IDColumn)
	}

	eventType := firstString(row, typeColumns)
	if eventType == "" {
		eventType = table.Name
	}
	description := firstString(row, descriptionColumns)
	if description == "" {
		description = fmt.Sprintf("%s row %s", table.Name, rowID)
	}
	status := domain.ParseEventStatus(scalarString(row["status"]))

	at, err := ParseTimestamp(row[table.TimestampColumn])
	if err != nil {
		at = fetchedAt
	}

	return domain.NewEvent(eventType, table.Name, description, status, at, rowID), nil
}

// ParseTimestamp accepts an RFC3339-ish string or a number of epoch seconds
// (below 1e12) or milliseconds.
func ParseTimestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is null")
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid numeric timestamp: %w", err)
		}
		return epochToTime(f), nil
	case float64:
		return epochToTime(v), nil
	case int64:
		return epochToTime(float64(v)), nil
	case int:
		return epochToTime(float64(v)), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, fmt.Errorf("timestamp is empty")
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epochToTime(f), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp format %q", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", value)
	}
}

func epochToTime(f float64) time.Time {
	if math.Abs(f) < 1e12 {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return time.UnixMilli(int64(f)).UTC()
}

func firstString(row Row, columns []string) string {
	for _, col := range columns {
		if s := scalarString(row[col]); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
