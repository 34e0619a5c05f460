// Package normalize coerces raw source rows into values the target columns
// accept: missing timestamps, invalid enum labels, malformed arrays and nulls
// in non-nullable columns are repaired, and every repair is reported.
package normalize

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"db-migrate/internal/enum"
	"db-migrate/internal/schema"

	"github.com/google/uuid"
)

var (
	// ErrNormalizationFailed marks a value that could not be coerced. It fails
	// the row, not the run.
	ErrNormalizationFailed = errors.New("normalization failed")
	// ErrMalformedSchema means the table descriptor itself is unusable.
	ErrMalformedSchema = errors.New("malformed schema")
)

// FieldError is a row-level normalization failure on one column.
type FieldError struct {
	Table  string
	Column string
	Value  any
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("normalize %s.%s (value %v): %v", e.Table, e.Column, e.Value, e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrNormalizationFailed, e.Err}
}

// Diagnostic rules.
const (
	RuleTimestampNow    = "timestamp_now"
	RuleEnumDefault     = "enum_default"
	RuleEnumNullDefault = "enum_null_default"
	RuleArrayEmpty      = "array_empty"
	RuleArrayWrap       = "array_wrap"
	RuleArrayElement    = "array_invalid_element"
	RuleZeroValue       = "zero_value"
	RuleExtraColumn     = "extra_column"
)

// Diagnostic records one substitution, for data quality audits.
type Diagnostic struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	Rule        string `json:"rule"`
	Original    any    `json:"original"`
	Replacement any    `json:"replacement"`
}

// Policy holds the configurable parts of normalization.
type Policy struct {
	// StrictEnums fails the row on a label outside the registry instead of
	// substituting the default.
	StrictEnums bool
	// KeepNullTimestamps leaves nulls in nullable timestamp columns.
	KeepNullTimestamps bool
	// Aliases maps raw column names (case-insensitive) to target column names,
	// e.g. createdat -> createdAt.
	Aliases map[string]string
}

type Normalizer struct {
	reg     *enum.Registry
	policy  Policy
	aliases map[string]string
	newUUID func() string
}

func New(reg *enum.Registry, policy Policy) *Normalizer {
	aliases := make(map[string]string, len(policy.Aliases))
	for from, to := range policy.Aliases {
		aliases[strings.ToLower(from)] = to
	}
	return &Normalizer{reg: reg, policy: policy, aliases: aliases, newUUID: uuid.NewString}
}

// WithUUIDFunc replaces the generator used for non-nullable uuid columns.
func (n *Normalizer) WithUUIDFunc(f func() string) *Normalizer {
	n.newUUID = f
	return n
}

// Result is a normalized row: exactly the table's columns.
type Result struct {
	Row         map[string]any
	Diagnostics []Diagnostic
}

// run carries one row's state.
type run struct {
	n     *Normalizer
	table *schema.Table
	now   time.Time
	res   *Result
}

func (r *run) diag(col, rule string, original, replacement any) {
	r.res.Diagnostics = append(r.res.Diagnostics, Diagnostic{
		Table: r.table.Name, Column: col, Rule: rule, Original: original, Replacement: replacement,
	})
}

func (r *run) fail(col string, value any, err error) error {
	return &FieldError{Table: r.table.Name, Column: col, Value: value, Err: err}
}

// Normalize maps raw onto the columns of t and repairs each value. now is the
// instant substituted for missing timestamps; pass the same value for a whole
// run so re-runs write identical rows.
//
// On ErrNormalizationFailed the returned Result still holds every column, with
// the offending value left as it was. ErrMalformedSchema returns no Result.
func (n *Normalizer) Normalize(t *schema.Table, raw map[string]any, now time.Time) (*Result, error) {
	if err := validate(t); err != nil {
		return nil, err
	}

	r := &run{n: n, table: t, now: now, res: &Result{Row: make(map[string]any, len(t.Columns))}}
	values := r.match(raw)

	var firstErr error
	for _, c := range t.Columns {
		v := values[c.Name]
		if b, ok := v.([]byte); ok && !(c.Kind == schema.KindScalar && c.Family() == schema.FamilyBinary) {
			v = string(b)
		}

		var out any
		var err error
		switch c.Kind {
		case schema.KindTimestamp:
			out, err = r.timestamp(c, v)
		case schema.KindEnum:
			out, err = r.enum(c, v)
		case schema.KindArray:
			out, err = r.array(c, v)
		default:
			out, err = r.scalar(c, v)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			out = v
		}
		r.res.Row[c.Name] = out
	}
	return r.res, firstErr
}

func validate(t *schema.Table) error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrMalformedSchema)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: table %s has no columns", ErrMalformedSchema, t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		if c == nil || c.Name == "" {
			return fmt.Errorf("%w: table %s: column %d has no name", ErrMalformedSchema, t.Name, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: table %s: duplicate column %s", ErrMalformedSchema, t.Name, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// match assigns raw keys to columns: exact name first, then alias, then a
// case-insensitive match. Keys that match nothing are dropped.
func (r *run) match(raw map[string]any) map[string]any {
	values := make(map[string]any, len(r.table.Columns))
	fold := make(map[string]string, len(r.table.Columns))
	for _, c := range r.table.Columns {
		fold[strings.ToLower(c.Name)] = c.Name
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rest []string
	for _, k := range keys {
		if r.table.Column(k) != nil {
			values[k] = raw[k]
			continue
		}
		rest = append(rest, k)
	}

	for _, k := range rest {
		name := ""
		if to, ok := r.n.aliases[strings.ToLower(k)]; ok {
			name = fold[strings.ToLower(to)]
		}
		if name == "" {
			name = fold[strings.ToLower(k)]
		}
		if name == "" {
			r.diag(k, RuleExtraColumn, raw[k], nil)
			continue
		}
		if _, taken := values[name]; taken {
			r.diag(k, RuleExtraColumn, raw[k], nil)
			continue
		}
		values[name] = raw[k]
	}
	return values
}

func (r *run) scalar(c *schema.Column, v any) (any, error) {
	if v != nil || c.IsNullable {
		return v, nil
	}

	var zero any
	switch fam := c.Family(); {
	case fam == schema.FamilyTemporal:
		zero = r.now
	case (fam == schema.FamilyText || fam == schema.FamilyOther) && schema.LooksTemporal(c.Name):
		// timestamp stored as text, or a type the catalog reported opaquely
		zero = r.now
	case fam == schema.FamilyText:
		zero = ""
	case fam == schema.FamilyInteger, fam == schema.FamilyNumeric:
		zero = int64(0)
	case fam == schema.FamilyBool:
		zero = false
	case fam == schema.FamilyUUID:
		zero = r.n.newUUID()
	case fam == schema.FamilyJSON:
		zero = "{}"
	case fam == schema.FamilyBinary:
		zero = []byte{}
	default:
		return nil, r.fail(c.Name, v, fmt.Errorf("null in non-nullable column of type %s has no zero value", c.DataType))
	}

	r.diag(c.Name, RuleZeroValue, nil, zero)
	return zero, nil
}
