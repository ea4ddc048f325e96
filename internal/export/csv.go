package export

import (
	"encoding/csv"
	"io"

	"github.com/leapstack-labs/claimjoin/pkg/relation"
)

// WriteCSV writes a header row followed by one record per row, columns in
// relation order. NULL cells are written as empty fields.
func WriteCSV(w io.Writer, rel *relation.Relation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rel.Columns); err != nil {
		return err
	}

	record := make([]string, rel.Width())
	for _, row := range rel.Rows {
		for i, v := range row {
			record[i] = relation.Format(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
