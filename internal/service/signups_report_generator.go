package service

import (
	"context"
	"fmt"
	"time"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

// Report data keys for the signups histograms.
const (
	SignUpsByStatusKey  = "byStatus"
	SignUpsBySharingKey = "bySharing"
)

type participantSource interface {
	GetParticipantsForStudy(ctx context.Context, studyID string, start, end time.Time) ([]models.StudyParticipant, error)
}

// SignUpsReportGenerator counts new participants by account status and, for
// enabled accounts only, by sharing scope. Both histograms list every enum value.
type SignUpsReportGenerator struct {
	participants participantSource
}

func NewSignUpsReportGenerator(participants participantSource) *SignUpsReportGenerator {
	return &SignUpsReportGenerator{participants: participants}
}

// Generate implements ReportGenerator.
func (g *SignUpsReportGenerator) Generate(ctx context.Context, req models.BridgeReporterRequest, study models.Study) (*models.Report, error) {
	participants, err := g.participants.GetParticipantsForStudy(ctx, study.Identifier, req.StartDateTime, req.EndDateTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDataAccess, "get participants for "+study.Identifier)
	}

	byStatus := make(map[string]int, len(models.AllAccountStatuses()))
	for _, status := range models.AllAccountStatuses() {
		byStatus[string(status)] = 0
	}
	bySharing := make(map[string]int, len(models.AllSharingScopes()))
	for _, scope := range models.AllSharingScopes() {
		bySharing[string(scope)] = 0
	}

	for _, p := range participants {
		if !p.Status.Valid() {
			return nil, appErrors.Wrap(fmt.Errorf("unknown account status %q", p.Status), appErrors.ErrGeneration,
				fmt.Sprintf("study %s participant %s", study.Identifier, p.ID))
		}
		byStatus[string(p.Status)]++
		// Sharing scope is only meaningful once the account is enabled.
		if p.Status != models.AccountStatusEnabled {
			continue
		}
		if !p.SharingScope.Valid() {
			return nil, appErrors.Wrap(fmt.Errorf("unknown sharing scope %q", p.SharingScope), appErrors.ErrGeneration,
				fmt.Sprintf("study %s participant %s", study.Identifier, p.ID))
		}
		bySharing[string(p.SharingScope)]++
	}

	return models.NewReport(req, study.Identifier, models.ReportData{
		SignUpsByStatusKey:  byStatus,
		SignUpsBySharingKey: bySharing,
	}), nil
}
