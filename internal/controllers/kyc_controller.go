package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"rideeasy/internal/config"
	"rideeasy/internal/media"
	"rideeasy/internal/middleware"
	"rideeasy/internal/models"
)

var kycFileFields = []string{"driverLicenseFile", "vehicleRegistrationFile", "idProofFile"}

// SubmitKycDetails files (or refiles) the caller's KYC application.
// The three documents upload to the media store concurrently; if any
// upload fails nothing is persisted. A resubmission after rejection
// updates the existing application in place and resets it to pending.
func SubmitKycDetails(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if user.KycStatus == models.KycApproved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Your KYC application is already approved. Cannot resubmit."})
		return
	}

	fields := map[string]string{
		"fullName":                  c.PostForm("fullName"),
		"phoneNumber":               c.PostForm("phoneNumber"),
		"driverLicenseNumber":       c.PostForm("driverLicenseNumber"),
		"vehicleRegistrationNumber": c.PostForm("vehicleRegistrationNumber"),
		"idProofNumber":             c.PostForm("idProofNumber"),
	}
	var missing []string
	for _, name := range []string{"fullName", "phoneNumber", "driverLicenseNumber", "vehicleRegistrationNumber", "idProofNumber"} {
		if strings.TrimSpace(fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: " + strings.Join(missing, ", ")})
		return
	}

	files := make(map[string]*multipart.FileHeader, len(kycFileFields))
	var missingFiles []string
	for _, name := range kycFileFields {
		fh, err := c.FormFile(name)
		if err != nil {
			missingFiles = append(missingFiles, name)
			continue
		}
		files[name] = fh
	}
	if len(missingFiles) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required files: " + strings.Join(missingFiles, ", ")})
		return
	}

	// All three uploads run in parallel and must all succeed before any
	// database write happens.
	folder := "rideeasy/kyc_documents/" + user.SubjectID
	uploaded := make([]string, len(kycFileFields))
	g, ctx := errgroup.WithContext(c.Request.Context())
	for i, name := range kycFileFields {
		i, name := i, name
		fh := files[name]
		g.Go(func() error {
			f, err := fh.Open()
			if err != nil {
				return err
			}
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				return err
			}
			url, err := media.Active.Upload(ctx, data, name, folder)
			if err != nil {
				return err
			}
			uploaded[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logrus.WithError(err).WithField("subject_id", user.SubjectID).Error("SubmitKycDetails: document upload failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to upload documents"})
		return
	}

	tx := config.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start transaction"})
		return
	}

	var kyc models.KycApplication
	err := tx.Where("user_id = ?", user.ID).First(&kyc).Error
	created := false
	switch {
	case err == nil:
		// resubmission: update in place, back to pending
	case errors.Is(err, gorm.ErrRecordNotFound):
		kyc = models.KycApplication{UserID: user.ID, SubjectID: user.SubjectID}
		created = true
	default:
		tx.Rollback()
		logrus.WithError(err).Error("SubmitKycDetails: application lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during KYC submission"})
		return
	}

	kyc.FullName = fields["fullName"]
	kyc.PhoneNumber = fields["phoneNumber"]
	kyc.Email = user.Email
	kyc.DriverLicenseNumber = fields["driverLicenseNumber"]
	kyc.VehicleRegistrationNumber = fields["vehicleRegistrationNumber"]
	kyc.IDProofNumber = fields["idProofNumber"]
	kyc.DriverLicenseURL = uploaded[0]
	kyc.VehicleRegistrationURL = uploaded[1]
	kyc.IDProofURL = uploaded[2]
	kyc.Status = models.KycPending

	if err := tx.Save(&kyc).Error; err != nil {
		tx.Rollback()
		logrus.WithError(err).Error("SubmitKycDetails: save application failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during KYC submission"})
		return
	}

	user.KycApplicationID = &kyc.ID
	user.KycStatus = models.KycPending
	if err := tx.Save(user).Error; err != nil {
		tx.Rollback()
		logrus.WithError(err).Error("SubmitKycDetails: save user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during KYC submission"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not commit transaction"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"message": "KYC details and documents submitted successfully for review.",
		"kyc":     kyc,
	})
}

// GetMyKyc returns the caller's own application.
func GetMyKyc(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var kyc models.KycApplication
	if err := config.DB.Where("user_id = ?", user.ID).First(&kyc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "KYC application not found for this user"})
		} else {
			logrus.WithError(err).Error("GetMyKyc: lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"kyc": kyc})
}

// ListPendingKyc returns all applications awaiting review, applicant
// attached. Admin only.
func ListPendingKyc(c *gin.Context) {
	var pending []models.KycApplication
	if err := config.DB.Preload("User").
		Where("status = ?", models.KycPending).
		Find(&pending).Error; err != nil {
		logrus.WithError(err).Error("ListPendingKyc: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": pending})
}

// ReviewKyc approves or rejects an application and propagates the
// decision to the owning user: approval promotes to driver, rejection
// reverts to customer. Application status and user status move together
// in one transaction.
func ReviewKyc(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid application ID"})
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if input.Status != models.KycApproved && input.Status != models.KycRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be \"approved\" or \"rejected\""})
		return
	}

	var kyc models.KycApplication
	if err := config.DB.First(&kyc, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "KYC application not found"})
		} else {
			logrus.WithError(err).Error("ReviewKyc: lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	tx := config.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start transaction"})
		return
	}

	kyc.Status = input.Status
	if err := tx.Save(&kyc).Error; err != nil {
		tx.Rollback()
		logrus.WithError(err).Error("ReviewKyc: save application failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	var owner models.User
	if err := tx.First(&owner, kyc.UserID).Error; err != nil {
		tx.Rollback()
		logrus.WithError(err).Error("ReviewKyc: owner lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	owner.KycStatus = input.Status
	if input.Status == models.KycApproved {
		owner.Role = models.RoleDriver
	} else {
		owner.Role = models.RoleCustomer
	}
	if err := tx.Save(&owner).Error; err != nil {
		tx.Rollback()
		logrus.WithError(err).Error("ReviewKyc: save owner failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not commit transaction"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "KYC application " + input.Status + " successfully.", "kyc": kyc})
}
