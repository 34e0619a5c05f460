package normalize

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"db-migrate/internal/schema"

	"github.com/lib/pq"
)

// ErrInvalidEnumLabel is wrapped when strict enums reject a label.
var ErrInvalidEnumLabel = errors.New("invalid enum label")

// Text layouts accepted for timestamp columns. Fractional seconds are
// accepted by time.Parse without being spelled out in the layout.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the textual timestamp forms found in source dumps.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (r *run) timestamp(c *schema.Column, v any) (any, error) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		v = nil
	}
	if v == nil {
		if c.IsNullable && r.n.policy.KeepNullTimestamps {
			return nil, nil
		}
		r.diag(c.Name, RuleTimestampNow, nil, r.now)
		return r.now, nil
	}

	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		t, err := ParseTimestamp(val)
		if err != nil {
			return nil, r.fail(c.Name, v, err)
		}
		return t, nil
	case int64:
		return fromEpoch(val), nil
	case int:
		return fromEpoch(int64(val)), nil
	case float64:
		t, err := fromEpochFloat(val)
		if err != nil {
			return nil, r.fail(c.Name, v, err)
		}
		return t, nil
	default:
		return nil, r.fail(c.Name, v, fmt.Errorf("cannot use %T as a timestamp", v))
	}
}

// fromEpoch reads unix seconds, or milliseconds when n is too large to be seconds.
func fromEpoch(n int64) time.Time {
	if n > 1e12 || n < -1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// fromEpochFloat is fromEpoch for fractional values, kept to the microsecond.
func fromEpochFloat(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("%v is not an epoch", f)
	}
	micros := f * 1e6
	if f > 1e12 || f < -1e12 {
		micros = f * 1e3
	}
	if micros >= math.MaxInt64 || micros <= math.MinInt64 {
		return time.Time{}, fmt.Errorf("epoch %v out of range", f)
	}
	return time.UnixMicro(int64(math.Round(micros))).UTC(), nil
}

// enumLabels finds the labels for typeName: registry by type, registry by
// "table.column", then labels declared inline in the catalog.
func (r *run) enumLabels(c *schema.Column, typeName string) ([]string, bool) {
	if typeName != "" && !strings.EqualFold(typeName, "enum") {
		if labels, ok := r.n.reg.Resolve(typeName); ok {
			return labels, true
		}
	}
	if labels, ok := r.n.reg.Resolve(r.table.Name + "." + c.Name); ok {
		return labels, true
	}
	if len(c.EnumLabels) > 0 {
		return c.EnumLabels, true
	}
	return nil, false
}

func (r *run) enum(c *schema.Column, v any) (any, error) {
	labels, known := r.enumLabels(c, c.NativeType)
	if !known {
		// opaque enum: nothing to validate against
		if v == nil && !c.IsNullable {
			return nil, r.fail(c.Name, v, fmt.Errorf("null in non-nullable enum %s with no registered default", c.NativeType))
		}
		return v, nil
	}

	def := labels[0]
	if v == nil {
		if c.IsNullable {
			return nil, nil
		}
		r.diag(c.Name, RuleEnumNullDefault, nil, def)
		return def, nil
	}

	s := labelOf(v)
	if contains(labels, s) {
		return s, nil
	}
	if r.n.policy.StrictEnums {
		return nil, r.fail(c.Name, v, fmt.Errorf("%w %q for %s", ErrInvalidEnumLabel, s, c.NativeType))
	}
	r.diag(c.Name, RuleEnumDefault, v, def)
	return def, nil
}

func (r *run) array(c *schema.Column, v any) (any, error) {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		v = nil
	}
	if v == nil {
		r.diag(c.Name, RuleArrayEmpty, nil, []any{})
		return []any{}, nil
	}

	seq, ok := toSequence(v)
	if !ok {
		seq = []any{v}
		r.diag(c.Name, RuleArrayWrap, v, seq)
	}

	labels, isEnum := r.enumLabels(c, c.ElementType)
	if !isEnum || !(c.ElementEnum || r.n.reg.Has(c.ElementType)) {
		return seq, nil
	}

	// Elements of an enum array follow the enum rules, except that an invalid
	// element is dropped rather than replaced.
	kept := make([]any, 0, len(seq))
	for _, e := range seq {
		if e == nil {
			kept = append(kept, e)
			continue
		}
		if b, ok := e.([]byte); ok {
			e = string(b)
		}
		s := labelOf(e)
		if contains(labels, s) {
			kept = append(kept, s)
			continue
		}
		if r.n.policy.StrictEnums {
			return nil, r.fail(c.Name, v, fmt.Errorf("%w %q for %s[]", ErrInvalidEnumLabel, s, c.ElementType))
		}
		r.diag(c.Name, RuleArrayElement, e, nil)
	}
	return kept, nil
}

// toSequence turns v into a fresh []any when it already is a sequence, or is
// the text form of one (postgres array literal or JSON array).
func toSequence(v any) ([]any, bool) {
	switch val := v.(type) {
	case []any:
		return append([]any{}, val...), true
	case string:
		return parseArrayText(val)
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func parseArrayText(s string) ([]any, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		var elems []sql.NullString
		if err := (pq.GenericArray{A: &elems}).Scan(s); err != nil {
			return nil, false
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			if e.Valid {
				out[i] = e.String
			}
		}
		return out, true

	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		var out []any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, false
		}
		if out == nil {
			out = []any{}
		}
		return out, true
	}
	return nil, false
}

func labelOf(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(v)
	}
}

func contains(labels []string, s string) bool {
	for _, l := range labels {
		if l == s {
			return true
		}
	}
	return false
}
