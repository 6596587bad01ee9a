package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cmportal/internal"

	"github.com/xuri/excelize/v2"
)

// FileType is a supported tabular file format
type FileType string

const (
	FileTypeCSV  FileType = "csv"
	FileTypeXLSX FileType = "xlsx"
)

// DetectFileType maps a file name's extension to a FileType
func DetectFileType(name string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FileTypeCSV, nil
	case ".xlsx", ".xlsm":
		return FileTypeXLSX, nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", filepath.Ext(name))
	}
}

// DataReader reads CSV and XLSX files into raw rows
type DataReader struct {
	filePath string
	fileType FileType
	logger   *internal.Logger
}

// NewDataReader creates a reader for the file; the type is taken from its extension
func NewDataReader(filePath string) *DataReader {
	fileType, err := DetectFileType(filePath)
	if err != nil {
		fileType = FileTypeCSV
	}
	return &DataReader{filePath: filePath, fileType: fileType, logger: internal.DefaultLogger.With("DataReader")}
}

// ReadRows reads every row of the file, header included
func (r *DataReader) ReadRows() ([][]string, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(string(r.fileType)), r.filePath)
	}

	f, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", r.filePath, err)
	}
	defer f.Close()

	start := time.Now()
	rows, err := ReadRowsFrom(f, r.fileType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.filePath, err)
	}
	r.logger.Debug("%s read in %.2fms (%d rows)", filepath.Base(r.filePath), float64(time.Since(start).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

// ReadRowsFrom reads all rows from a CSV or XLSX stream. XLSX input uses the
// first sheet of the workbook.
func ReadRowsFrom(src io.Reader, fileType FileType) ([][]string, error) {
	switch fileType {
	case FileTypeCSV:
		return readCSVRows(src)
	case FileTypeXLSX:
		return readExcelRows(src)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func readCSVRows(src io.Reader) ([][]string, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	// Excel-exported CSVs often carry a UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return trimRows(rows), nil
}

func readExcelRows(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	return trimRows(rows), nil
}

// NewSheet splits raw rows into headers and data rows
func NewSheet(rows [][]string) (*Sheet, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("file must have at least a header row")
	}
	return &Sheet{Headers: rows[0], Rows: rows[1:]}, nil
}

func trimRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, row := range rows {
		blank := true
		for j := range row {
			row[j] = strings.TrimSpace(row[j])
			if row[j] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		out = append(out, row)
	}
	return out
}
