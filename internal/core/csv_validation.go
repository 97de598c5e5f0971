package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// IssueKind classifies a row validation issue.
type IssueKind string

const (
	// IssueSemantic is a domain constraint violation (length, range, charset). Hard.
	IssueSemantic IssueKind = "semantic"
	// IssueZeroDistance is a row whose from and to are identical. Hard.
	IssueZeroDistance IssueKind = "zero_distance"
	// IssueDuplicateInBatch is a name repeated within one file. Hard.
	IssueDuplicateInBatch IssueKind = "duplicate_in_batch"
	// IssueDuplicateExisting is a name already persisted. Soft: the row is skipped.
	IssueDuplicateExisting IssueKind = "duplicate_existing"
)

// RowIssue is one validation finding for one row.
type RowIssue struct {
	Line    int       `json:"line"`
	Field   string    `json:"field,omitempty"`
	Name    string    `json:"name,omitempty"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

// Soft reports whether the issue only skips its row.
func (i RowIssue) Soft() bool {
	return i.Kind == IssueDuplicateExisting
}

func (i RowIssue) String() string {
	if i.Kind == IssueDuplicateInBatch {
		return fmt.Sprintf("Line %d: Duplicate route name in import file: %s", i.Line, i.Name)
	}
	return fmt.Sprintf("Line %d: %s", i.Line, i.Message)
}

// BatchReport is the outcome of validating every row of a file.
type BatchReport struct {
	// Importable rows: no issue at all.
	Valid []RouteRow
	// Issues in file order.
	Issues []RowIssue
	Hard   int
	Soft   int
}

// Rejected reports whether the batch must not be imported.
func (r BatchReport) Rejected() bool {
	return r.Hard > 0
}

// Messages renders the issues for an ImportResult.
func (r BatchReport) Messages() []string {
	out := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		out[i] = issue.String()
	}
	return out
}

func (r *BatchReport) add(issue RowIssue) {
	r.Issues = append(r.Issues, issue)
	if issue.Soft() {
		r.Soft++
	} else {
		r.Hard++
	}
}

// NameLookup reports whether a route with the given name exists
// (case-insensitive).
type NameLookup func(ctx context.Context, name string) (bool, error)

// RepositoryNameLookup adapts a RouteRepository to NameLookup.
func RepositoryNameLookup(repo RouteRepository) NameLookup {
	return func(ctx context.Context, name string) (bool, error) {
		_, err := repo.FindRouteByName(ctx, name, 0)
		if err == nil {
			return true, nil
		}
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
}

// ValidateRows runs semantic, business and cross-row checks over rows in
// file order and collects every issue. Only lookup failures are returned
// as errors.
func ValidateRows(ctx context.Context, rows []RouteRow, exists NameLookup) (BatchReport, error) {
	var report BatchReport
	seen := make(map[string]int, len(rows))

	for _, row := range rows {
		before := len(report.Issues)

		semantic := semanticIssues(row)
		for _, issue := range semantic {
			report.add(issue)
		}

		if semantic.nameOK() {
			key := strings.ToLower(strings.TrimSpace(row.Name))
			if first, dup := seen[key]; dup {
				report.add(RowIssue{
					Line:    row.Line,
					Field:   "name",
					Name:    row.Name,
					Kind:    IssueDuplicateInBatch,
					Message: fmt.Sprintf("Duplicate route name in import file: %s (first seen on line %d)", row.Name, first),
				})
			} else {
				seen[key] = row.Line
			}

			found, err := exists(ctx, strings.TrimSpace(row.Name))
			if err != nil {
				return BatchReport{}, fmt.Errorf("check route name on line %d: %w", row.Line, err)
			}
			if found {
				report.add(RowIssue{
					Line:    row.Line,
					Field:   "name",
					Name:    row.Name,
					Kind:    IssueDuplicateExisting,
					Message: fmt.Sprintf("Route with name '%s' already exists", row.Name),
				})
			}
		}

		if row.FromX != nil && row.Spec().From.Equal(row.Spec().To) {
			report.add(RowIssue{
				Line:    row.Line,
				Kind:    IssueZeroDistance,
				Message: "From and To locations cannot be identical",
			})
		}

		if len(report.Issues) == before {
			report.Valid = append(report.Valid, row)
		}
	}
	return report, nil
}

type rowIssues []RowIssue

func (r rowIssues) nameOK() bool {
	for _, issue := range r {
		if issue.Field == "name" {
			return false
		}
	}
	return true
}

// semanticIssues checks the constraints that need no stored state.
func semanticIssues(row RouteRow) rowIssues {
	var out rowIssues
	add := func(field, msg string) {
		out = append(out, RowIssue{Line: row.Line, Field: field, Kind: IssueSemantic, Message: msg})
	}

	for _, msg := range routeNameProblems(row.Name) {
		add("name", msg)
	}
	if row.CoordinatesY > MaxCoordinatesY {
		add("coordinates_y", fmt.Sprintf("Coordinates Y must be <= %d, found: %v", MaxCoordinatesY, row.CoordinatesY))
	}
	if row.FromX == nil {
		add("from_x", "From location X cannot be null")
	}
	if row.Distance < 2 {
		add("distance", fmt.Sprintf("Distance must be >= 2, found: %d", row.Distance))
	}
	if row.Rating <= 0 {
		add("rating", fmt.Sprintf("Rating must be > 0, found: %d", row.Rating))
	}
	return out
}
