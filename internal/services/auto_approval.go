package services

import "time"

// AutoApprovalExpiry returns the instant at which an unreviewed submission
// becomes auto-approved.
func AutoApprovalExpiry(submittedAt time.Time, windowHours int) time.Time {
	return submittedAt.Add(time.Duration(windowHours) * time.Hour)
}
