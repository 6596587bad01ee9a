package reference

import "strconv"

// Grid returns the matrix as a header row and string rows, with a leading
// Protocol ID column. NewFeatureMatrix(Grid()) rebuilds an equal matrix.
func (m *FeatureMatrix) Grid() ([]string, [][]string) {
	headers := append([]string{ColumnProtocolID}, m.features...)
	rows := make([][]string, len(m.ids))
	for i, id := range m.ids {
		row := make([]string, 0, len(headers))
		row = append(row, id.String())
		for _, set := range m.cells[i] {
			row = append(row, strconv.FormatBool(set))
		}
		rows[i] = row
	}
	return headers, rows
}

// Grid returns the table's header and rows in column order
func (t *Table) Grid() ([]string, [][]string) {
	if t == nil {
		return nil, nil
	}
	rows := make([][]string, len(t.Rows))
	for i, rec := range t.Rows {
		row := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	return append([]string(nil), t.Columns...), rows
}

// Grid lays the map back out column-wise, padding short columns with ""
func (m *ColumnMap) Grid() ([]string, [][]string) {
	keys := m.Keys()
	depth := 0
	for _, k := range keys {
		if n := len(m.values[k]); n > depth {
			depth = n
		}
	}
	rows := make([][]string, depth)
	for i := range rows {
		row := make([]string, len(keys))
		for j, k := range keys {
			if vals := m.values[k]; i < len(vals) {
				row[j] = vals[i]
			}
		}
		rows[i] = row
	}
	return keys, rows
}
