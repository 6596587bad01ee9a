package excel

// Sheet is a header row plus raw string data rows, as read from a CSV or XLSX file
type Sheet struct {
	Headers []string   // Column headers, trimmed
	Rows    [][]string // Data rows, cells trimmed; rows may be ragged
}

