package ui

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"cmportal/adapters/excel"
	"cmportal/app"
	"cmportal/domain/core"
	"cmportal/domain/protocol"
	"cmportal/internal/errors"

	"github.com/gin-gonic/gin"
)

type benchmarkResponse struct {
	Status string `json:"status"`
	*app.BenchmarkReport
}

// benchmarkForm is the parsed multipart benchmark submission
type benchmarkForm struct {
	protocolFile     *multipart.FileHeader
	experimentalFile *multipart.FileHeader
	purpose          string
	ownID            string
	compareIDs       []string
	refProtocols     []*multipart.FileHeader
	refExperimental  []*multipart.FileHeader
}

func readBenchmarkForm(c *gin.Context) benchmarkForm {
	f := benchmarkForm{
		purpose:    strings.TrimSpace(c.PostForm("selected_purpose")),
		ownID:      strings.TrimSpace(c.PostForm("selected_own_protocol_id")),
		compareIDs: c.PostFormArray("selected_protocol_ids[]"),
	}
	f.protocolFile, _ = c.FormFile("protocol_file")
	f.experimentalFile, _ = c.FormFile("experimental_file")
	if form, err := c.MultipartForm(); err == nil && form != nil {
		f.refProtocols = form.File["reference_protocol_files[]"]
		f.refExperimental = form.File["reference_experimental_files[]"]
	}
	return f
}

// validate applies the form-level checks in the order the dashboard reports them
func (f benchmarkForm) validate() error {
	if f.protocolFile == nil && f.ownID == "" {
		return errors.InvalidInputWith("Protocol file or database selection required", core.ErrMissingCriteria)
	}
	if f.purpose == "" {
		return errors.InvalidInputWith("Protocol purpose selection required", core.ErrMissingCriteria)
	}
	if f.ownID == "" && f.experimentalFile == nil {
		return errors.InvalidInputWith("Experimental data file required when uploading protocol", core.ErrMissingCriteria)
	}
	return nil
}

func (s *Server) handleSubmitBenchmark(c *gin.Context) {
	ctx := c.Request.Context()
	form := readBenchmarkForm(c)
	if err := form.validate(); err != nil {
		s.respondStatusError(c, err)
		return
	}

	req := app.BenchmarkRequest{Purpose: form.purpose}
	for _, raw := range form.compareIDs {
		id, err := protocol.ParseID(raw)
		if err != nil {
			s.logger.Error("Error processing protocol ID %s: %v", raw, err)
			continue
		}
		req.CompareIDs = append(req.CompareIDs, id)
	}

	dir, err := s.uploads.ScratchDir(ctx)
	if err != nil {
		s.respondStatusError(c, err)
		return
	}
	defer func() {
		if err := s.uploads.Delete(context.WithoutCancel(ctx), dir); err != nil {
			s.logger.Warn("scratch cleanup: %v", err)
		}
	}()

	candidates, err := s.catalog.ProtocolFeatures(ctx)
	if err != nil {
		s.respondStatusError(c, err)
		return
	}

	if form.ownID != "" {
		id, err := protocol.ParseID(form.ownID)
		if err != nil {
			s.respondStatusError(c, errors.InvalidInputWith(fmt.Sprintf("Invalid protocol ID %q", form.ownID), err))
			return
		}
		req.ProtocolID = id
	} else {
		uploaded, err := s.readUploadedProtocol(ctx, dir, form.protocolFile, form.experimentalFile, candidates)
		if err != nil {
			s.respondStatusError(c, err)
			return
		}
		req.Uploaded = uploaded
	}

	// reference files are paired positionally; extras on either side are ignored
	for i := 0; i < len(form.refProtocols) && i < len(form.refExperimental); i++ {
		ref, err := s.readUploadedProtocol(ctx, dir, form.refProtocols[i], form.refExperimental[i], candidates)
		if err != nil {
			s.respondStatusError(c, err)
			return
		}
		req.References = append(req.References, *ref)
	}

	report, err := s.benchmark.Run(ctx, req)
	if err != nil {
		s.respondStatusError(c, err)
		return
	}
	c.JSON(http.StatusOK, benchmarkResponse{Status: statusSuccess, BenchmarkReport: report})
}

// readUploadedProtocol stores a feature-list file and an experimental-data
// file under dir and parses them into a protocol
func (s *Server) readUploadedProtocol(ctx context.Context, dir string, featureFile, dataFile *multipart.FileHeader, candidates []protocol.Feature) (*app.UploadedProtocol, error) {
	featureRows, err := s.readUpload(ctx, dir, featureFile)
	if err != nil {
		return nil, err
	}
	dataRows, err := s.readUpload(ctx, dir, dataFile)
	if err != nil {
		return nil, err
	}

	features, unknownFeatures := excel.ParseFeatureList(featureRows, candidates)
	if len(unknownFeatures) > 0 {
		s.logger.Warn("%s: ignoring unknown features %v", featureFile.Filename, unknownFeatures)
	}
	record, unknownFields := excel.ParseExperimentalData(dataRows)
	if len(unknownFields) > 0 {
		s.logger.Warn("%s: ignoring unknown fields %v", dataFile.Filename, unknownFields)
	}
	return &app.UploadedProtocol{Record: record, Features: features}, nil
}

// readUpload saves one uploaded CSV or XLSX file and reads its rows
func (s *Server) readUpload(ctx context.Context, dir string, header *multipart.FileHeader) ([][]string, error) {
	if header == nil {
		return nil, errors.InvalidInput("missing upload")
	}
	if _, err := excel.DetectFileType(header.Filename); err != nil {
		return nil, errors.UnsupportedFileType(header.Filename)
	}

	src, err := header.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", header.Filename)
	}
	defer src.Close()

	path, err := s.uploads.Store(ctx, dir, src, header.Filename)
	if err != nil {
		return nil, err
	}
	rows, err := excel.NewDataReader(path).ReadRows()
	if err != nil {
		return nil, errors.InvalidInputWith(fmt.Sprintf("Could not read %s", header.Filename), err)
	}
	return rows, nil
}
