package schema

import (
	"strings"
	"unicode"
)

// 컬럼명 약어 (reg_dt, upd_dttm 등)
var abbreviations = map[string]string{
	"dt": "date", "dttm": "datetime", "tm": "time", "ts": "timestamp", "ymd": "date",
	"reg": "registered", "mod": "modified", "upd": "updated", "cre": "created",
	"del": "deleted", "ins": "inserted", "chg": "changed", "crt": "created",
}

// Verbs that make "<verb> at" / "<verb> on" name a point in time.
var temporalVerbs = map[string]bool{
	"create": true, "update": true, "delete": true, "modify": true, "register": true,
	"insert": true, "change": true, "publish": true, "expire": true, "archive": true,
}

// SplitName breaks a snake_case or camelCase column name into lower-case
// words, expanding common abbreviations.
func SplitName(name string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			w := strings.ToLower(string(cur))
			if full, ok := abbreviations[w]; ok {
				w = full
			}
			words = append(words, w)
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) ||
			(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// LooksTemporal reports whether a column name reads like a timestamp:
// createdAt, updated_at, reg_dt, publishDate, createdat.
func LooksTemporal(name string) bool {
	words := SplitName(name)
	for _, w := range words {
		switch w {
		case "date", "time", "timestamp", "datetime":
			return true
		}
	}

	n := len(words)
	if n >= 2 && (words[n-1] == "at" || words[n-1] == "on") && isTemporalVerb(words[n-2]) {
		return true
	}
	// Lower-cased names lose the word boundary: createdat, updateat.
	if n == 1 && strings.HasSuffix(words[0], "at") {
		return isTemporalVerb(strings.TrimSuffix(words[0], "at"))
	}
	return false
}

func isTemporalVerb(w string) bool {
	if temporalVerbs[w] {
		return true
	}
	if stem, ok := strings.CutSuffix(w, "d"); ok && temporalVerbs[stem] {
		return true // created, updated
	}
	if stem, ok := strings.CutSuffix(w, "ed"); ok && temporalVerbs[stem] {
		return true // registered, inserted
	}
	switch w {
	case "modified", "registered", "changed", "archived", "published":
		return true
	}
	return false
}
