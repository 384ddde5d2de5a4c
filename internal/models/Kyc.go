package models

import "gorm.io/gorm"

// KycApplication holds a driver applicant's identity and vehicle documents.
// Exactly one application exists per user; resubmission after rejection
// updates the row in place rather than creating a second one.
type KycApplication struct {
	gorm.Model
	UserID    uint   `json:"user_id" gorm:"uniqueIndex"`
	SubjectID string `json:"subject_id" gorm:"uniqueIndex"`

	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`

	DriverLicenseNumber       string `json:"driver_license_number"`
	VehicleRegistrationNumber string `json:"vehicle_registration_number"`
	IDProofNumber             string `json:"id_proof_number"`

	DriverLicenseURL       string `json:"driver_license_url"`
	VehicleRegistrationURL string `json:"vehicle_registration_url"`
	IDProofURL             string `json:"id_proof_url"`

	Status string `json:"status" gorm:"default:pending"` // pending, approved, rejected

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
