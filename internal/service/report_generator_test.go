package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

type participantSourceStub struct {
	participants map[string][]models.StudyParticipant
	err          error
	calls        []string
}

func (s *participantSourceStub) GetParticipantsForStudy(ctx context.Context, studyID string, start, end time.Time) ([]models.StudyParticipant, error) {
	s.calls = append(s.calls, studyID)
	if s.err != nil {
		return nil, s.err
	}
	return s.participants[studyID], nil
}

type uploadSourceStub struct {
	uploads map[string][]models.Upload
	err     error
}

func (s *uploadSourceStub) GetUploadsForStudy(ctx context.Context, studyID string, start, end time.Time) ([]models.Upload, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.uploads[studyID], nil
}

func testRequest(scheduleType models.ReportType) models.BridgeReporterRequest {
	pdt := time.FixedZone("PDT", -7*60*60)
	start := time.Date(2024, time.May, 1, 0, 0, 0, 0, pdt)
	return models.BridgeReporterRequest{
		Scheduler:     "bridge-reporter",
		ScheduleType:  scheduleType,
		StartDateTime: start,
		EndDateTime:   start.Add(24*time.Hour - time.Second),
	}
}

func TestSignUpsReportGeneratorCountsByStatusAndSharing(t *testing.T) {
	source := &participantSourceStub{participants: map[string][]models.StudyParticipant{
		"api": {
			{ID: "p1", Status: models.AccountStatusEnabled, SharingScope: models.SharingScopeAllQualifiedResearchers},
			{ID: "p2", Status: models.AccountStatusEnabled, SharingScope: models.SharingScopeNoSharing},
			{ID: "p3", Status: models.AccountStatusUnverified, SharingScope: models.SharingScopeAllQualifiedResearchers},
		},
	}}
	gen := NewSignUpsReportGenerator(source)

	report, err := gen.Generate(context.Background(), testRequest(models.ReportTypeDailySignUps), models.Study{Identifier: "api"})
	require.NoError(t, err)

	assert.Equal(t, "api", report.StudyID)
	assert.Equal(t, "bridge-reporter-daily-signups-report", report.ReportID)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.May, Day: 1}, report.Date)
	assert.Equal(t, map[string]int{"enabled": 2, "disabled": 0, "unverified": 1}, report.Data[SignUpsByStatusKey])
	assert.Equal(t, map[string]int{"no_sharing": 1, "sponsors_and_partners": 0, "all_qualified_researchers": 1}, report.Data[SignUpsBySharingKey])
}

func TestSignUpsReportGeneratorZeroFillsEmptyStudy(t *testing.T) {
	gen := NewSignUpsReportGenerator(&participantSourceStub{})

	report, err := gen.Generate(context.Background(), testRequest(models.ReportTypeDailySignUps), models.Study{Identifier: "empty"})
	require.NoError(t, err)

	byStatus := report.Data[SignUpsByStatusKey].(map[string]int)
	bySharing := report.Data[SignUpsBySharingKey].(map[string]int)
	assert.Len(t, byStatus, len(models.AllAccountStatuses()))
	assert.Len(t, bySharing, len(models.AllSharingScopes()))
	for _, count := range byStatus {
		assert.Zero(t, count)
	}
	for _, count := range bySharing {
		assert.Zero(t, count)
	}
}

func TestSignUpsReportGeneratorPropagatesFetchError(t *testing.T) {
	gen := NewSignUpsReportGenerator(&participantSourceStub{err: errors.New("connection reset")})

	_, err := gen.Generate(context.Background(), testRequest(models.ReportTypeDailySignUps), models.Study{Identifier: "api"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrDataAccess))
	assert.True(t, appErrors.IsRetryable(err))
}

func TestSignUpsReportGeneratorRejectsMissingSharingScope(t *testing.T) {
	source := &participantSourceStub{participants: map[string][]models.StudyParticipant{
		"api": {
			{ID: "p1", Status: models.AccountStatusEnabled, SharingScope: models.SharingScopeNoSharing},
			{ID: "p2", Status: models.AccountStatusEnabled},
		},
	}}
	gen := NewSignUpsReportGenerator(source)

	report, err := gen.Generate(context.Background(), testRequest(models.ReportTypeDailySignUps), models.Study{Identifier: "api"})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, appErrors.ErrGeneration))
	assert.Contains(t, err.Error(), "study api participant p2")
}

func TestSignUpsReportGeneratorRejectsUnknownStatus(t *testing.T) {
	source := &participantSourceStub{participants: map[string][]models.StudyParticipant{
		"api": {{ID: "p1", Status: "locked", SharingScope: models.SharingScopeNoSharing}},
	}}
	gen := NewSignUpsReportGenerator(source)

	_, err := gen.Generate(context.Background(), testRequest(models.ReportTypeDailySignUps), models.Study{Identifier: "api"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrGeneration))
	assert.Contains(t, err.Error(), `unknown account status "locked"`)
}

func TestSignUpsReportGeneratorIgnoresScopeOfDisabledAccounts(t *testing.T) {
	source := &participantSourceStub{participants: map[string][]models.StudyParticipant{
		"api": {{ID: "p1", Status: models.AccountStatusDisabled}},
	}}
	gen := NewSignUpsReportGenerator(source)

	report, err := gen.Generate(context.Background(), testRequest(models.ReportTypeDailySignUps), models.Study{Identifier: "api"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Data[SignUpsByStatusKey].(map[string]int)["disabled"])
	assert.Len(t, report.Data[SignUpsBySharingKey], len(models.AllSharingScopes()))
}

func TestUploadsReportGeneratorCountsObservedStatuses(t *testing.T) {
	source := &uploadSourceStub{uploads: map[string][]models.Upload{
		"api": {
			{ID: "u1", Status: models.UploadStatusSucceeded},
			{ID: "u2", Status: models.UploadStatusSucceeded},
			{ID: "u3", Status: models.UploadStatusValidationFailed},
		},
	}}
	gen := NewUploadsReportGenerator(source)

	report, err := gen.Generate(context.Background(), testRequest(models.ReportTypeDaily), models.Study{Identifier: "api"})
	require.NoError(t, err)

	assert.Equal(t, "bridge-reporter-daily-upload-report", report.ReportID)
	assert.Equal(t, models.ReportData{"succeeded": 2, "validation_failed": 1}, report.Data)
}

func TestUploadsReportGeneratorEmptyStudyHasNoBuckets(t *testing.T) {
	gen := NewUploadsReportGenerator(&uploadSourceStub{})

	report, err := gen.Generate(context.Background(), testRequest(models.ReportTypeWeekly), models.Study{Identifier: "quiet"})
	require.NoError(t, err)
	assert.Equal(t, "bridge-reporter-weekly-upload-report", report.ReportID)
	assert.Empty(t, report.Data)
}

func TestUploadsReportGeneratorPropagatesFetchError(t *testing.T) {
	gen := NewUploadsReportGenerator(&uploadSourceStub{err: errors.New("timeout")})

	_, err := gen.Generate(context.Background(), testRequest(models.ReportTypeDaily), models.Study{Identifier: "api"})
	assert.True(t, errors.Is(err, appErrors.ErrDataAccess))
}

func TestGeneratorRegistryDefaults(t *testing.T) {
	registry := NewDefaultGeneratorRegistry(&participantSourceStub{}, &uploadSourceStub{})

	gen, err := registry.Lookup("any-scheduler", models.ReportTypeDailySignUps)
	require.NoError(t, err)
	assert.IsType(t, &SignUpsReportGenerator{}, gen)

	for _, rt := range []models.ReportType{models.ReportTypeDaily, models.ReportTypeWeekly} {
		gen, err := registry.Lookup("any-scheduler", rt)
		require.NoError(t, err)
		assert.IsType(t, &UploadsReportGenerator{}, gen)
	}
}

func TestGeneratorRegistryPrefersSchedulerSpecificEntry(t *testing.T) {
	registry := NewDefaultGeneratorRegistry(&participantSourceStub{}, &uploadSourceStub{})
	custom := NewSignUpsReportGenerator(&participantSourceStub{})
	registry.Register("special", models.ReportTypeDaily, custom)

	gen, err := registry.Lookup("special", models.ReportTypeDaily)
	require.NoError(t, err)
	assert.Same(t, custom, gen)

	gen, err = registry.Lookup("other", models.ReportTypeDaily)
	require.NoError(t, err)
	assert.IsType(t, &UploadsReportGenerator{}, gen)
}

func TestGeneratorRegistryMissingEntryIsParseError(t *testing.T) {
	registry := NewGeneratorRegistry()

	_, err := registry.Lookup("bridge-reporter", models.ReportTypeDaily)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrParse))
	assert.False(t, appErrors.IsRetryable(err))
}
