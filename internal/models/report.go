package models

import (
	"time"

	"cloud.google.com/go/civil"
)

// ReportData maps keys to either an int count or a map[string]int histogram.
type ReportData map[string]interface{}

// Report is the aggregate document produced for one study, schedule and date.
type Report struct {
	StudyID  string     `json:"studyId"`
	ReportID string     `json:"reportId"`
	Date     civil.Date `json:"date"`
	Data     ReportData `json:"data"`
}

// NewReport builds a report dated on the calendar day of start, in start's own offset.
func NewReport(req BridgeReporterRequest, studyID string, data ReportData) *Report {
	return &Report{
		StudyID:  studyID,
		ReportID: req.ReportID(),
		Date:     ReportDate(req.StartDateTime),
		Data:     data,
	}
}

// ReportDate returns the local calendar date of t.
func ReportDate(t time.Time) civil.Date {
	return civil.DateOf(t)
}
