package cmd

import (
	"context"
	"fmt"
	"strings"

	"db-migrate/internal/schema"
)

// SelectTables resolves which tables to migrate and in what order.
//
// Filter strategy:
// 1. --tables flag
// 2. settings.tables
// 3. every base table in the schema
// Exclusions from --exclude and settings.exclude_tables apply last.
func SelectTables(ctx context.Context, in *schema.Introspector, s Settings, include, exclude []string) ([]string, error) {
	all, err := in.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	if len(include) == 0 {
		include = s.Tables
	}

	names := all
	if len(include) > 0 {
		req := make(map[string]bool, len(include))
		for _, t := range include {
			req[strings.ToLower(t)] = true
		}

		names = nil
		for _, t := range all {
			if req[strings.ToLower(t)] {
				names = append(names, t)
				delete(req, strings.ToLower(t))
			}
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no matching tables found for inputs: %v", include)
		}
		for t := range req {
			logger.Warn("requested table not found", "table", t, "schema", in.Schema())
		}
	}

	skip := make(map[string]bool)
	for _, t := range append(append([]string{}, exclude...), s.ExcludeTables...) {
		skip[strings.ToLower(t)] = true
	}
	kept := names[:0:0]
	for _, t := range names {
		if !skip[strings.ToLower(t)] {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("every table was excluded")
	}

	if s.Order == "dependency" {
		return in.Order(ctx, kept)
	}
	return kept, nil
}
