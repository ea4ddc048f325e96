package export

import (
	"io"
	"sort"

	"github.com/leapstack-labs/claimjoin/pkg/relation"
	"github.com/parquet-go/parquet-go"
)

// parquetSchema builds an all-optional schema from the inferred column kinds.
// Parquet groups order their fields by name, so leaves are not in relation order.
func parquetSchema(rel *relation.Relation) (*parquet.Schema, []relation.Kind) {
	group := make(parquet.Group, rel.Width())
	kinds := make([]relation.Kind, rel.Width())
	for i, col := range rel.Columns {
		kinds[i] = rel.KindOf(col)
		switch kinds[i] {
		case relation.KindInteger:
			group[col] = parquet.Optional(parquet.Int(64))
		case relation.KindReal:
			group[col] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		default:
			group[col] = parquet.Optional(parquet.String())
		}
	}
	return parquet.NewSchema("claimjoin", group), kinds
}

// WriteParquet writes rel as a Snappy-compressed Parquet file.
func WriteParquet(w io.Writer, rel *relation.Relation) error {
	schema, kinds := parquetSchema(rel)

	// leaf column index -> relation column index
	order := make([]int, rel.Width())
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return rel.Columns[order[a]] < rel.Columns[order[b]] })

	writer := parquet.NewWriter(w, schema, parquet.Compression(&parquet.Snappy))

	rows := make([]parquet.Row, 0, rel.Len())
	for _, src := range rel.Rows {
		row := make(parquet.Row, len(order))
		for leaf, col := range order {
			if relation.IsNull(src[col]) {
				row[leaf] = parquet.NullValue().Level(0, 0, leaf)
				continue
			}
			row[leaf] = parquetValue(src[col], kinds[col]).Level(0, 1, leaf)
		}
		rows = append(rows, row)
	}

	if _, err := writer.WriteRows(rows); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func parquetValue(v any, kind relation.Kind) parquet.Value {
	switch kind {
	case relation.KindInteger:
		if n, ok := v.(int64); ok {
			return parquet.Int64Value(n)
		}
	case relation.KindReal:
		if f, ok := relation.AsFloat(v); ok {
			return parquet.DoubleValue(f)
		}
	}
	return parquet.ByteArrayValue([]byte(relation.Format(v)))
}
