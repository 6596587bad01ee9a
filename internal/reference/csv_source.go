package reference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cmportal/adapters/excel"
	"cmportal/domain/reference"
	"cmportal/internal"
	"cmportal/internal/config"

	"golang.org/x/sync/errgroup"
)

// CSVSource reads the reference tables from the dataset directory
type CSVSource struct {
	paths  config.DatasetConfig
	logger *internal.Logger
}

// NewCSVSource creates a source over the configured dataset files
func NewCSVSource(paths config.DatasetConfig, logger *internal.Logger) *CSVSource {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &CSVSource{paths: paths, logger: logger.With("CSVSource")}
}

// Name implements ports.ReferenceSource
func (s *CSVSource) Name() string {
	return "csv:" + s.paths.Dir
}

// Load reads every table in parallel. The feature matrix and cleaned database
// are required; other tables missing on disk load as empty.
func (s *CSVSource) Load(ctx context.Context) (*reference.Tables, error) {
	tables := &reference.Tables{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sheet, err := s.read(ctx, s.paths.BinaryFeatures, true)
		if err != nil {
			return err
		}
		m, err := reference.NewFeatureMatrix(sheet.Headers, sheet.Rows)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(s.paths.BinaryFeatures), err)
		}
		tables.Matrix = m
		return nil
	})

	g.Go(func() error {
		sheet, err := s.read(ctx, s.paths.CleanedDatabase, true)
		if err != nil {
			return err
		}
		m, err := reference.NewMetadataTable(sheet.Headers, sheet.Rows)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(s.paths.CleanedDatabase), err)
		}
		tables.Metadata = m
		return nil
	})

	columnMaps := []struct {
		path string
		dest **reference.ColumnMap
	}{
		{s.paths.FeatureCategories, &tables.Categories},
		{s.paths.CausalFeatureCategories, &tables.CausalCategories},
		{s.paths.TargetParameters, &tables.TargetParameters},
		{s.paths.OddsEnrichments, &tables.Topics},
	}
	for _, cm := range columnMaps {
		g.Go(func() error {
			sheet, err := s.read(ctx, cm.path, false)
			if err != nil || sheet == nil {
				return err
			}
			m, err := reference.NewColumnMap(sheet.Headers, sheet.Rows)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(cm.path), err)
			}
			*cm.dest = m
			return nil
		})
	}

	g.Go(func() error {
		sheet, err := s.read(ctx, s.paths.Enrichments, false)
		if err != nil || sheet == nil {
			return err
		}
		tables.Enrichments = reference.NewTable(sheet.Headers, sheet.Rows)
		return nil
	})

	g.Go(func() error {
		sheet, err := s.read(ctx, s.paths.SelectedVariables, false)
		if err != nil || sheet == nil {
			return err
		}
		// single column, no header
		for _, row := range append([][]string{sheet.Headers}, sheet.Rows...) {
			if len(row) > 0 && strings.TrimSpace(row[0]) != "" {
				tables.SelectedVariables = append(tables.SelectedVariables, strings.TrimSpace(row[0]))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return tables, nil
}

// read returns the file as a sheet. A missing optional file yields a nil sheet.
func (s *CSVSource) read(ctx context.Context, path string, required bool) (*excel.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		if required {
			return nil, fmt.Errorf("required reference table path not configured")
		}
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !required {
		s.logger.Warn("optional table %s not found, serving it empty", path)
		return nil, nil
	}
	rows, err := excel.NewDataReader(path).ReadRows()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		if required {
			return nil, fmt.Errorf("%s is empty", path)
		}
		return nil, nil
	}
	return excel.NewSheet(rows)
}
