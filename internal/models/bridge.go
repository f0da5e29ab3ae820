package models

// Study is the subset of a Bridge study summary the reporter needs.
type Study struct {
	Identifier string `json:"identifier"`
}

// AccountStatus is a participant's enrollment state.
type AccountStatus string

const (
	AccountStatusEnabled    AccountStatus = "enabled"
	AccountStatusDisabled   AccountStatus = "disabled"
	AccountStatusUnverified AccountStatus = "unverified"
)

// AllAccountStatuses lists every status in declaration order.
func AllAccountStatuses() []AccountStatus {
	return []AccountStatus{AccountStatusEnabled, AccountStatusDisabled, AccountStatusUnverified}
}

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	for _, known := range AllAccountStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// SharingScope is a participant's data-sharing consent level.
type SharingScope string

const (
	SharingScopeNoSharing               SharingScope = "no_sharing"
	SharingScopeSponsorsAndPartners     SharingScope = "sponsors_and_partners"
	SharingScopeAllQualifiedResearchers SharingScope = "all_qualified_researchers"
)

// AllSharingScopes lists every scope in declaration order.
func AllSharingScopes() []SharingScope {
	return []SharingScope{SharingScopeNoSharing, SharingScopeSponsorsAndPartners, SharingScopeAllQualifiedResearchers}
}

// Valid reports whether s is a known scope.
func (s SharingScope) Valid() bool {
	for _, known := range AllSharingScopes() {
		if s == known {
			return true
		}
	}
	return false
}

// StudyParticipant carries the fields the signups report aggregates over.
type StudyParticipant struct {
	ID           string        `json:"id"`
	Status       AccountStatus `json:"status"`
	SharingScope SharingScope  `json:"sharingScope"`
}

// UploadStatus is the processing outcome of one upload. The set is open-ended;
// the constants are the values Bridge is known to return.
type UploadStatus string

const (
	UploadStatusUnknown              UploadStatus = "unknown"
	UploadStatusRequested            UploadStatus = "requested"
	UploadStatusValidationInProgress UploadStatus = "validation_in_progress"
	UploadStatusValidationFailed     UploadStatus = "validation_failed"
	UploadStatusSucceeded            UploadStatus = "succeeded"
	UploadStatusDuplicate            UploadStatus = "duplicate"
)

// Upload is the subset of a Bridge upload record the uploads report needs.
type Upload struct {
	ID     string       `json:"uploadId"`
	Status UploadStatus `json:"status"`
}
