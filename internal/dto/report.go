package dto

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DwayneJengSage/Bridge-Reporter/internal/models"
	appErrors "github.com/DwayneJengSage/Bridge-Reporter/pkg/errors"
)

// ReportRequestMessage is the JSON body of a report request queue message.
type ReportRequestMessage struct {
	Scheduler      string     `json:"scheduler" validate:"required"`
	ScheduleType   string     `json:"scheduleType" validate:"required,report_type"`
	StartDateTime  *time.Time `json:"startDateTime" validate:"required"`
	EndDateTime    *time.Time `json:"endDateTime" validate:"required"`
	StudyWhitelist []string   `json:"studyWhitelist,omitempty" validate:"omitempty,dive,required"`
}

// NewValidator returns a validator that understands the report_type tag.
func NewValidator() *validator.Validate {
	validate := validator.New()
	if err := validate.RegisterValidation("report_type", func(fl validator.FieldLevel) bool {
		return models.ReportType(fl.Field().String()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("register report_type validation: %v", err))
	}
	return validate
}

// Validate checks the struct tags, reporting failures as ErrParse.
func (m ReportRequestMessage) Validate(validate *validator.Validate) error {
	if err := validate.Struct(m); err != nil {
		return appErrors.Wrap(err, appErrors.ErrParse, "invalid report request")
	}
	return nil
}

// ToRequest converts a validated message into the immutable request model.
func (m ReportRequestMessage) ToRequest() (models.BridgeReporterRequest, error) {
	scheduleType, err := models.ParseReportType(m.ScheduleType)
	if err != nil {
		return models.BridgeReporterRequest{}, err
	}
	if m.StartDateTime == nil || m.EndDateTime == nil {
		return models.BridgeReporterRequest{}, appErrors.Clone(appErrors.ErrParse, "startDateTime and endDateTime are required")
	}
	if m.StartDateTime.After(*m.EndDateTime) {
		return models.BridgeReporterRequest{}, appErrors.Clone(appErrors.ErrParse,
			fmt.Sprintf("startDateTime %s is after endDateTime %s", m.StartDateTime.Format(time.RFC3339), m.EndDateTime.Format(time.RFC3339)))
	}

	var whitelist []string
	if m.StudyWhitelist != nil {
		whitelist = make([]string, len(m.StudyWhitelist))
		copy(whitelist, m.StudyWhitelist)
	}

	return models.BridgeReporterRequest{
		Scheduler:      m.Scheduler,
		ScheduleType:   scheduleType,
		StartDateTime:  *m.StartDateTime,
		EndDateTime:    *m.EndDateTime,
		StudyWhitelist: whitelist,
	}, nil
}
