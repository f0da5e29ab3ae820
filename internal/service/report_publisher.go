package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

type reportSaver interface {
	SaveReport(ctx context.Context, report *models.Report) error
}

// ReportArchive mirrors published reports outside Bridge.
type ReportArchive interface {
	Upsert(ctx context.Context, report *models.Report) error
}

// ReportPublisher saves reports to Bridge and, when an archive is configured,
// mirrors them into it. Bridge is the source of truth.
type ReportPublisher struct {
	bridge  reportSaver
	archive ReportArchive
	logger  *zap.Logger
}

// NewReportPublisher constructs a publisher. archive may be nil.
func NewReportPublisher(bridge reportSaver, archive ReportArchive, logger *zap.Logger) *ReportPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportPublisher{bridge: bridge, archive: archive, logger: logger}
}

// Publish stores report. Both writes overwrite by key so repeats are harmless.
func (p *ReportPublisher) Publish(ctx context.Context, report *models.Report) error {
	if err := p.bridge.SaveReport(ctx, report); err != nil {
		return appErrors.Wrap(err, appErrors.ErrDataAccess, "save report for "+report.StudyID)
	}
	if p.archive == nil {
		return nil
	}
	if err := p.archive.Upsert(ctx, report); err != nil {
		// Archive failures are logged only; Bridge holds the authoritative copy.
		p.logger.Warn("report archive failed",
			zap.String("study_id", report.StudyID),
			zap.String("report_id", report.ReportID),
			zap.String("date", report.Date.String()),
			zap.Error(err))
	}
	return nil
}
