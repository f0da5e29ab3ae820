package service

import (
	"context"
	"time"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

type uploadSource interface {
	GetUploadsForStudy(ctx context.Context, studyID string, start, end time.Time) ([]models.Upload, error)
}

// UploadsReportGenerator counts uploads per status. Only observed statuses are
// reported; the upload status set is open-ended so absent buckets are not filled.
type UploadsReportGenerator struct {
	uploads uploadSource
}

func NewUploadsReportGenerator(uploads uploadSource) *UploadsReportGenerator {
	return &UploadsReportGenerator{uploads: uploads}
}

// Generate implements ReportGenerator.
func (g *UploadsReportGenerator) Generate(ctx context.Context, req models.BridgeReporterRequest, study models.Study) (*models.Report, error) {
	uploads, err := g.uploads.GetUploadsForStudy(ctx, study.Identifier, req.StartDateTime, req.EndDateTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess, "get uploads for "+study.Identifier)
	}

	data := models.ReportData{}
	for _, upload := range uploads {
		key := string(upload.Status)
		count, _ := data[key].(int)
		data[key] = count + 1
	}

	return models.NewReport(req, study.Identifier, data), nil
}
