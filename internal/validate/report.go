// Package validate checks a staged catalog against the destination schema.
// Every check is advisory: findings accumulate in a Report and nothing is
// raised, so a single pass surfaces every problem.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/johndauphine/crosswalk/internal/catalog"
	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/staging"
)

// Kind classifies a finding.
type Kind int

const (
	CatalogMismatch Kind = iota
	MissingAttribute
	ShapeMismatch
	UniquenessViolation
	NullabilityViolation
	ReferentialViolation
	UnmatchedCorrection
	StagingFailure
)

var kindNames = map[Kind]string{
	CatalogMismatch:      "catalog mismatch",
	MissingAttribute:     "missing attribute",
	ShapeMismatch:        "shape mismatch",
	UniquenessViolation:  "uniqueness violation",
	NullabilityViolation: "nullability violation",
	ReferentialViolation: "referential violation",
	UnmatchedCorrection:  "unmatched correction",
	StagingFailure:       "staging failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Finding is one advisory problem.
type Finding struct {
	Kind  Kind
	Table catalog.TableID
	// Field is the field, or the comma-joined field group, concerned.
	Field string
	// Row is the offending row position, or -1 when not about one row.
	Row int
	// Key is the offending row's natural key, when known.
	Key string
	// Count is the number of offending rows or values behind the finding.
	Count int
	// Samples holds up to the configured number of offending values.
	Samples []string
	Message string
}

// Location renders schema.table[.field].
func (f Finding) Location() string {
	if f.Field == "" {
		return f.Table.String()
	}
	return f.Table.String() + "." + f.Field
}

func (f Finding) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %s", f.Kind, f.Location(), f.Message)
	if f.Row >= 0 {
		fmt.Fprintf(&sb, " (row %d", f.Row)
		if f.Key != "" {
			fmt.Fprintf(&sb, ", key %s", f.Key)
		}
		sb.WriteString(")")
	}
	if len(f.Samples) > 0 {
		fmt.Fprintf(&sb, " sample: %s", strings.Join(f.Samples, ", "))
	}
	return sb.String()
}

// Report collects findings from one validation pass.
type Report struct {
	Stage    string
	Findings []Finding
}

// NewReport creates an empty report for a named stage.
func NewReport(stage string) *Report {
	return &Report{Stage: stage}
}

// Add appends findings.
func (r *Report) Add(f ...Finding) {
	r.Findings = append(r.Findings, f...)
}

// Merge appends every finding of other.
func (r *Report) Merge(other *Report) {
	if other != nil {
		r.Findings = append(r.Findings, other.Findings...)
	}
}

// Len returns the number of findings.
func (r *Report) Len() int { return len(r.Findings) }

// Empty reports whether there are no findings.
func (r *Report) Empty() bool { return len(r.Findings) == 0 }

// Count returns the number of findings of one kind.
func (r *Report) Count(k Kind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// ByKind returns the findings of one kind in report order.
func (r *Report) ByKind(k Kind) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Kind == k {
			out = append(out, f)
		}
	}
	return out
}

// ForTable returns the findings for one table.
func (r *Report) ForTable(id catalog.TableID) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Table == id {
			out = append(out, f)
		}
	}
	return out
}

// Summary counts findings per kind.
func (r *Report) Summary() map[Kind]int {
	out := make(map[Kind]int)
	for _, f := range r.Findings {
		out[f.Kind]++
	}
	return out
}

// AddStagingIssues records staging problems as findings.
func (r *Report) AddStagingIssues(issues []staging.Issue) {
	for _, iss := range issues {
		r.Add(Finding{
			Kind:    StagingFailure,
			Table:   iss.Table,
			Field:   iss.Field,
			Row:     iss.Row,
			Count:   1,
			Message: iss.Err.Error(),
		})
	}
}

// AddUnmatchedCorrections records correction identifiers that matched no
// staged row, one finding per correction file.
func (r *Report) AddUnmatchedCorrections(applied []staging.Applied, sampleSize int) {
	for _, a := range applied {
		if len(a.Result.Unmatched) == 0 {
			continue
		}
		r.Add(Finding{
			Kind:    UnmatchedCorrection,
			Table:   a.Spec.Table,
			Field:   a.Spec.KeyField,
			Row:     -1,
			Count:   len(a.Result.Unmatched),
			Samples: sample(a.Result.Unmatched, sampleSize),
			Message: fmt.Sprintf("%d identifiers in %s match no staged row", len(a.Result.Unmatched), a.Spec.File),
		})
	}
}

// Print logs the report: one warning per finding, then counts per kind.
func (r *Report) Print() {
	if r.Empty() {
		logging.Info("%s: no findings", r.Stage)
		return
	}
	for _, f := range r.Findings {
		logging.Warn("%s", f)
	}
	summary := r.Summary()
	kinds := make([]Kind, 0, len(summary))
	for k := range summary {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%d %s", summary[k], k)
	}
	logging.Warn("%s: %d findings (%s)", r.Stage, r.Len(), strings.Join(parts, ", "))
}

func sample(values []string, n int) []string {
	if n <= 0 || len(values) <= n {
		out := make([]string, len(values))
		copy(out, values)
		return out
	}
	out := make([]string, n)
	copy(out, values[:n])
	return out
}
