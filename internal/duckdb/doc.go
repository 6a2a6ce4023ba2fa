// Package duckdb provides DuckDB helpers: opening a database file and a small
// generic table mapper driven by struct tags.
//
//	type row struct {
//	    ID      int64  `duckdb:"id,pk"`
//	    Ordinal int64  `duckdb:"ordinal,immutable"`
//	    Name    string `duckdb:"name"`
//	}
//
//	table := duckdb.NewTable[row](db, "machines")
//	err := table.Upsert(ctx, &row{ID: 1, Name: "web"})
//	rows, err := table.List(ctx, duckdb.Query{OrderBy: "ordinal"})
//
// Columns tagged pk form the ON CONFLICT target. Columns tagged immutable keep
// the value from their first insert. Schema creation is left to the caller.
package duckdb
