package relation

// Project returns a relation holding only the requested columns that exist in r,
// in the order they were requested. Requested names that r lacks are skipped;
// duplicates in the request are kept once.
func Project(r *Relation, columns []string) *Relation {
	picked := make([]int, 0, len(columns))
	names := make([]string, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	for _, name := range columns {
		if seen[name] {
			continue
		}
		seen[name] = true
		if idx := r.ColumnIndex(name); idx >= 0 {
			picked = append(picked, idx)
			names = append(names, name)
		}
	}

	rows := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		out := make([]any, len(picked))
		for j, idx := range picked {
			out[j] = row[idx]
		}
		rows[i] = out
	}
	return MustNew(r.Name, names, rows)
}

// MissingColumns returns the requested column names that r does not have.
func MissingColumns(r *Relation, columns []string) []string {
	var missing []string
	for _, name := range columns {
		if !r.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
