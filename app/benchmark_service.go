package app

import (
	"context"
	"fmt"
	"strings"

	"cmportal/domain/core"
	"cmportal/domain/protocol"
	"cmportal/domain/reference"
	"cmportal/internal"
	"cmportal/internal/errors"
	"cmportal/internal/scoring"
	"cmportal/ports"
)

// UploadedProtocol is a protocol described by user files rather than the catalog
type UploadedProtocol struct {
	Record   protocol.Record    `json:"record"`
	Features []protocol.Feature `json:"features"`
}

// BenchmarkRequest describes one benchmark comparison
type BenchmarkRequest struct {
	// ProtocolID selects the main protocol from the catalog; zero means Uploaded is used
	ProtocolID protocol.ID
	Uploaded   *UploadedProtocol
	// Purpose names the topic whose key characteristics form the reference profile
	Purpose    string
	References []UploadedProtocol
	CompareIDs []protocol.ID
}

// CatalogComparison is a catalog protocol benchmarked alongside the main one
type CatalogComparison struct {
	ID protocol.ID `json:"id"`
	protocol.BenchmarkResult
}

// BenchmarkReport gathers every benchmarked profile of a request
type BenchmarkReport struct {
	ProtocolName    string                                          `json:"protocol_name"`
	SelectedPurpose string                                          `json:"selected_purpose"`
	Indicators      []protocol.Indicator                            `json:"indicators"`
	Results         map[protocol.Indicator]protocol.IndicatorResult `json:"results"`
	References      []protocol.BenchmarkResult                      `json:"reference_results"`
	Catalog         []CatalogComparison                             `json:"db_protocol_results"`
}

// BenchmarkService scores protocols' maturity indicators against the catalog
type BenchmarkService struct {
	tables ports.TablesProvider
	logger *internal.Logger
}

// NewBenchmarkService creates a benchmark service
func NewBenchmarkService(tables ports.TablesProvider, logger *internal.Logger) *BenchmarkService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &BenchmarkService{tables: tables, logger: logger.With("BenchmarkService")}
}

// Run benchmarks the main protocol, the purpose reference, uploaded reference
// pairs, and catalog comparisons. A catalog comparison that cannot be loaded
// is logged and left out.
func (s *BenchmarkService) Run(ctx context.Context, req BenchmarkRequest) (*BenchmarkReport, error) {
	if !req.ProtocolID.Valid() && req.Uploaded == nil {
		return nil, errors.InvalidInputWith("Experimental data required when uploading protocol", core.ErrMissingCriteria)
	}

	tables, err := s.tables.Tables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reference tables unavailable")
	}
	processor := scoring.NewProcessor(tables.Topics, s.logger)

	var (
		mainRecord   protocol.Record
		mainFeatures []protocol.Feature
	)
	if req.ProtocolID.Valid() {
		mainRecord, mainFeatures, err = CatalogRecord(tables, req.ProtocolID, "")
		if core.IsNotFoundError(err) {
			return nil, errors.WithCode(errors.CodeNotFound, errors.Wrapf(err, "Failed to load protocol ID %d", req.ProtocolID))
		}
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to load protocol ID %d", req.ProtocolID)
		}
	} else {
		mainRecord, mainFeatures = req.Uploaded.Record, req.Uploaded.Features
	}

	primary, err := processor.Process(mainRecord, mainFeatures)
	if err != nil {
		return nil, errors.ReferenceData("topic index", err)
	}

	report := &BenchmarkReport{
		ProtocolName:    primary.Name,
		SelectedPurpose: req.Purpose,
		Indicators:      scoring.ExpectedIndicators,
		Results:         primary.Results,
		References:      []protocol.BenchmarkResult{},
		Catalog:         []CatalogComparison{},
	}

	purpose, err := processor.Process(PurposeRecord(req.Purpose), tables.Topics.Values(req.Purpose))
	if err != nil {
		return nil, errors.ReferenceData("topic index", err)
	}
	report.References = append(report.References, purpose)

	for _, ref := range req.References {
		res, err := processor.Process(ref.Record, ref.Features)
		if err != nil {
			return nil, errors.ReferenceData("topic index", err)
		}
		report.References = append(report.References, res)
	}

	for _, id := range req.CompareIDs {
		suffix := ""
		if id == req.ProtocolID {
			suffix = " (Reference)"
		}
		record, features, err := CatalogRecord(tables, id, suffix)
		if err != nil {
			s.logger.Error("Error processing protocol ID %d: %v", id, err)
			continue
		}
		res, err := processor.Process(record, features)
		if err != nil {
			s.logger.Error("Error processing protocol ID %d: %v", id, err)
			continue
		}
		report.Catalog = append(report.Catalog, CatalogComparison{ID: id, BenchmarkResult: res})
	}

	s.logger.Info("benchmarked %q against %d references and %d catalog protocols",
		report.ProtocolName, len(report.References), len(report.Catalog))
	return report, nil
}

// CatalogRecord assembles a catalog protocol's indicator record and features.
// Missing measurements are left empty so they are predicted; a recorded
// T-tubule observation counts as present.
func CatalogRecord(tables *reference.Tables, id protocol.ID, nameSuffix string) (protocol.Record, []protocol.Feature, error) {
	features, ok := tables.Matrix.FeaturesOf(id)
	if !ok {
		return nil, nil, core.NewProtocolNotFoundError(id.String())
	}
	if _, ok := tables.Metadata.Record(id); !ok {
		return nil, nil, fmt.Errorf("%w: no metadata row", core.NewProtocolNotFoundError(id.String()))
	}

	record := protocol.Record{protocol.NameKey: fmt.Sprintf("Protocol %d%s", id, nameSuffix)}
	for _, ind := range scoring.ExpectedIndicators {
		v, ok := tables.Metadata.Value(id, ind)
		switch {
		case !ok:
			record[ind] = ""
		case ind == scoring.TTubuleStructure:
			record[ind] = "1"
		default:
			record[ind] = v
		}
	}
	return record, features, nil
}

// PurposeRecord is the unmeasured profile of a topic's key characteristics
func PurposeRecord(purpose string) protocol.Record {
	record := protocol.Record{protocol.NameKey: "Key Characteristics of " + strings.TrimSpace(purpose)}
	for _, ind := range scoring.ExpectedIndicators {
		record[ind] = ""
	}
	return record
}
