package models

import (
	"fmt"
	"time"

	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

// ReportType enumerates the schedule kinds a request can carry.
type ReportType string

const (
	ReportTypeDaily        ReportType = "DAILY"
	ReportTypeWeekly       ReportType = "WEEKLY"
	ReportTypeDailySignUps ReportType = "DAILY_SIGNUPS"
)

var reportTypeSuffixes = map[ReportType]string{
	ReportTypeDaily:        "-daily-upload-report",
	ReportTypeWeekly:       "-weekly-upload-report",
	ReportTypeDailySignUps: "-daily-signups-report",
}

// ReportTypes lists every valid ReportType.
func ReportTypes() []ReportType {
	return []ReportType{ReportTypeDaily, ReportTypeWeekly, ReportTypeDailySignUps}
}

// ParseReportType maps an exact type name to its value.
func ParseReportType(name string) (ReportType, error) {
	t := ReportType(name)
	if _, ok := reportTypeSuffixes[t]; !ok {
		return "", appErrors.Clone(appErrors.ErrParse, fmt.Sprintf("unknown schedule type %q", name))
	}
	return t, nil
}

// Valid reports whether t is one of the declared types.
func (t ReportType) Valid() bool {
	_, ok := reportTypeSuffixes[t]
	return ok
}

// Suffix returns the id suffix appended to the scheduler name.
func (t ReportType) Suffix() string {
	return reportTypeSuffixes[t]
}

func (t ReportType) String() string {
	return string(t)
}

// UnmarshalText rejects unknown names so JSON decoding never yields an invalid type.
func (t *ReportType) UnmarshalText(text []byte) error {
	parsed, err := ParseReportType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// BridgeReporterRequest is one parsed "generate a report" request.
type BridgeReporterRequest struct {
	Scheduler      string
	ScheduleType   ReportType
	StartDateTime  time.Time
	EndDateTime    time.Time
	StudyWhitelist []string
}

// ReportID is the identifier every report generated for this request is stored under.
func (r BridgeReporterRequest) ReportID() string {
	return r.Scheduler + r.ScheduleType.Suffix()
}

// HasWhitelist reports whether the request is restricted to specific studies.
func (r BridgeReporterRequest) HasWhitelist() bool {
	return r.StudyWhitelist != nil
}
