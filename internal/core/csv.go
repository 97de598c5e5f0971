package core

import (
	"bufio"
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"
)

// RouteColumns is the fixed header of a route import file, in order.
var RouteColumns = []string{
	"name",
	"coordinates_x", "coordinates_y",
	"from_x", "from_y", "from_name",
	"to_x", "to_y", "to_name",
	"distance", "rating",
}

// RouteRow is one parsed data row of an import file. FromX is nil when the
// column was empty; empty location names are nil.
type RouteRow struct {
	Line         int
	Name         string
	CoordinatesX float64
	CoordinatesY float64
	FromX        *float64
	FromY        float64
	FromName     *string
	ToX          float64
	ToY          float64
	ToName       *string
	Distance     int64
	Rating       int64
}

// Spec converts the row into a RouteSpec. The row must have passed
// validation so FromX is set.
func (r RouteRow) Spec() RouteSpec {
	var fromX float64
	if r.FromX != nil {
		fromX = *r.FromX
	}
	return RouteSpec{
		Name:        r.Name,
		Coordinates: CoordinatesValue{X: r.CoordinatesX, Y: r.CoordinatesY},
		From:        LocationValue{X: fromX, Y: r.FromY, Name: r.FromName},
		To:          LocationValue{X: r.ToX, Y: r.ToY, Name: r.ToName},
		Distance:    r.Distance,
		Rating:      r.Rating,
	}
}

// ParseRoutesCSV parses content into rows. The header must match
// RouteColumns (case-insensitive, trimmed, in order). Fields are split on
// commas with no quoting; blank lines are skipped; line numbers are
// physical, with the header on line 1.
//
// It returns ErrEmptyFile, a *SchemaError, a *RowParseError or
// ErrNoDataRows; any of them rejects the whole file.
func ParseRoutesCSV(content []byte) ([]RouteRow, error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, ErrEmptyFile
	}
	if err := checkHeader(scanner.Text()); err != nil {
		return nil, err
	}

	var rows []RouteRow
	line := 1
	for scanner.Scan() {
		line++
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		row, err := parseRow(text, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}
	return rows, nil
}

// CountDataLines returns the number of non-blank lines after the header.
func CountDataLines(content []byte) int {
	n := 0
	for i, l := range bytes.Split(content, []byte("\n")) {
		if i == 0 {
			continue
		}
		if len(bytes.TrimSpace(l)) > 0 {
			n++
		}
	}
	return n
}

func checkHeader(header string) error {
	header = strings.TrimSuffix(header, "\r")
	if strings.TrimSpace(header) == "" {
		return ErrEmptyFile
	}
	cols := strings.Split(header, ",")
	if len(cols) != len(RouteColumns) {
		return &SchemaError{
			Reason: "CSV must have exactly 11 columns: " + strings.Join(RouteColumns, ", "),
		}
	}
	for i, want := range RouteColumns {
		got := strings.TrimSpace(cols[i])
		if !strings.EqualFold(got, want) {
			return &SchemaError{Column: i + 1, Expected: want, Found: got}
		}
	}
	return nil
}

func parseRow(text string, line int) (RouteRow, error) {
	parts := strings.Split(text, ",")
	if len(parts) != len(RouteColumns) {
		return RouteRow{}, &RowParseError{Line: line, Reason: "line must have exactly 11 columns"}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	p := rowParser{line: line}
	row := RouteRow{
		Line:         line,
		Name:         parts[0],
		CoordinatesX: p.float("coordinates_x", parts[1]),
		CoordinatesY: p.float("coordinates_y", parts[2]),
		FromY:        p.float("from_y", parts[4]),
		FromName:     optionalName(parts[5]),
		ToX:          p.float("to_x", parts[6]),
		ToY:          p.float("to_y", parts[7]),
		ToName:       optionalName(parts[8]),
		Distance:     p.int("distance", parts[9]),
		Rating:       p.int("rating", parts[10]),
	}
	if parts[3] != "" {
		x := p.float("from_x", parts[3])
		row.FromX = &x
	}
	if p.err != nil {
		return RouteRow{}, p.err
	}
	return row, nil
}

// rowParser keeps the first number conversion failure of a row.
type rowParser struct {
	line int
	err  error
}

func (p *rowParser) float(field, s string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = &RowParseError{Line: p.line, Field: field, Reason: numError(s, err)}
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.err = &RowParseError{Line: p.line, Field: field, Reason: "not a finite number: " + strconv.Quote(s)}
		return 0
	}
	return v
}

func (p *rowParser) int(field, s string) int64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		p.err = &RowParseError{Line: p.line, Field: field, Reason: numError(s, err)}
		return 0
	}
	return v
}

func numError(s string, err error) string {
	if errors.Is(err, strconv.ErrRange) {
		return "value out of range: " + strconv.Quote(s)
	}
	if s == "" {
		return "empty value"
	}
	return "for input string: " + strconv.Quote(s)
}

func optionalName(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
