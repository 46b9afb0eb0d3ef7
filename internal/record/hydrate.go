package record

// groupMeta folds raw meta rows for one record into typed values. A key with
// multiple rows restores as a list in row order; a single row restores as a
// scalar.
func groupMeta(keyed map[string][]string) map[string]MetaValue {
	meta := make(map[string]MetaValue, len(keyed))
	for key, rows := range keyed {
		if len(rows) == 0 {
			continue
		}
		if len(rows) > 1 {
			list := make([]string, len(rows))
			copy(list, rows)
			meta[key] = MetaValue{Kind: MetaList, List: list}
			continue
		}
		meta[key] = MetaValue{Kind: MetaScalar, Scalar: rows[0]}
	}
	return meta
}
