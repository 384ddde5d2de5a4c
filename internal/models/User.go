package models

import "gorm.io/gorm"

// Roles assigned to a user. Signups from the identity provider start as
// customers; the very first account in the system becomes the admin.
const (
	RoleCustomer = "customer"
	RoleDriver   = "driver"
	RoleAdmin    = "admin"
)

// KYC verification states carried on the user for quick lookup. The
// KycApplication row is the authoritative copy once one exists.
const (
	KycNotSubmitted = "not_submitted"
	KycPending      = "pending"
	KycApproved     = "approved"
	KycRejected     = "rejected"
)

type User struct {
	gorm.Model
	SubjectID string `json:"subject_id" gorm:"uniqueIndex"` // external identity provider subject
	Email     string `json:"email" gorm:"uniqueIndex"`
	Role      string `json:"role" gorm:"default:customer"`
	KycStatus string `json:"kyc_status" gorm:"default:not_submitted"`

	KycApplicationID *uint           `json:"kyc_application_id"`
	KycApplication   *KycApplication `gorm:"foreignKey:KycApplicationID" json:"kyc_application,omitempty"`

	// Last known position as a WKB-encoded point; GeoJSON on the wire.
	Location    []byte `gorm:"type:bytea" json:"-"`
	IsAvailable bool   `json:"is_available" gorm:"default:false"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

func ValidKycStatus(status string) bool {
	switch status {
	case KycNotSubmitted, KycPending, KycApproved, KycRejected:
		return true
	}
	return false
}
