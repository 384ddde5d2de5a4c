package controllers

import (
	"encoding/binary"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/twpayne/go-geom"
	gjson "github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"gorm.io/gorm"

	"rideeasy/internal/config"
	"rideeasy/internal/middleware"
	"rideeasy/internal/models"
)

// SyncUser creates or updates the local account from the identity
// provider's claims. The first account ever created becomes the admin;
// the count check runs inside the insert transaction. Two simultaneous
// first signups can still race to the admin seat — there is no global
// lock here, matching the behaviour this service replaces.
func SyncUser(c *gin.Context) {
	subjectID := c.GetString("subject_id")
	email := c.GetString("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identity token carried no email claim"})
		return
	}

	var user models.User
	err := config.DB.Where("subject_id = ?", subjectID).First(&user).Error
	switch {
	case err == nil:
		if user.Email != email {
			user.Email = email
			if err := config.DB.Save(&user).Error; err != nil {
				if isDuplicateErr(err) {
					c.JSON(http.StatusConflict, gin.H{"error": "A user with this email already exists"})
					return
				}
				logrus.WithError(err).Error("SyncUser: email update failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during user sync"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"user": user})

	case errors.Is(err, gorm.ErrRecordNotFound):
		tx := config.DB.Begin()
		if tx.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start transaction"})
			return
		}

		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			tx.Rollback()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during user sync"})
			return
		}

		role := models.RoleCustomer
		if count == 0 {
			role = models.RoleAdmin
			logrus.WithField("subject_id", subjectID).Info("SyncUser: first signup, assigning admin role")
		}

		user = models.User{
			SubjectID: subjectID,
			Email:     email,
			Role:      role,
			KycStatus: models.KycNotSubmitted,
		}
		if err := tx.Create(&user).Error; err != nil {
			tx.Rollback()
			if isDuplicateErr(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "A user with this email or subject already exists"})
				return
			}
			logrus.WithError(err).Error("SyncUser: create failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during user sync"})
			return
		}
		if err := tx.Commit().Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not commit transaction"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user})

	default:
		logrus.WithError(err).Error("SyncUser: lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during user sync"})
	}
}

// GetProfile returns the caller's account with its KYC application.
func GetProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var withKyc models.User
	if err := config.DB.Preload("KycApplication").First(&withKyc, user.ID).Error; err != nil {
		logrus.WithError(err).Error("GetProfile: reload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching profile"})
		return
	}

	resp := gin.H{"user": withKyc}
	if geoJSON, err := locationToGeoJSON(withKyc.Location); err == nil && geoJSON != "" {
		resp["location"] = geoJSON
	}
	c.JSON(http.StatusOK, resp)
}

// ApplyAsDriver starts a driver application: the role flips to driver
// immediately (a driver-in-waiting) and the KYC status becomes pending.
// Ride creation stays gated on KYC approval regardless.
func ApplyAsDriver(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if user.Role != models.RoleCustomer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only customers can apply to become drivers"})
		return
	}
	if user.KycStatus == models.KycPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You already have a pending KYC application. Please await review."})
		return
	}
	if user.KycStatus == models.KycApproved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Your KYC is already approved. You are a driver."})
		return
	}

	user.Role = models.RoleDriver
	user.KycStatus = models.KycPending
	if err := config.DB.Save(user).Error; err != nil {
		logrus.WithError(err).Error("ApplyAsDriver: save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during driver application"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Application to become driver initiated. Please submit your KYC details.",
		"user":    user,
	})
}

// UpdateLocation stores the caller's last known position (GeoJSON Point
// in, WKB in the database) and optionally flips the availability flag.
func UpdateLocation(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var input struct {
		Location    string `json:"location" binding:"required"` // GeoJSON Point
		IsAvailable *bool  `json:"is_available"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var g geom.T
	if err := gjson.Unmarshal([]byte(input.Location), &g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid GeoJSON: " + err.Error()})
		return
	}
	point, ok := g.(*geom.Point)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Location must be a GeoJSON Point"})
		return
	}

	wkbBytes, err := wkb.Marshal(point, binary.LittleEndian)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid geometry: " + err.Error()})
		return
	}

	user.Location = wkbBytes
	if input.IsAvailable != nil {
		user.IsAvailable = *input.IsAvailable
	}
	if err := config.DB.Save(user).Error; err != nil {
		logrus.WithError(err).Error("UpdateLocation: save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error saving location"})
		return
	}

	geoJSON, _ := locationToGeoJSON(user.Location)
	c.JSON(http.StatusOK, gin.H{
		"location":     geoJSON,
		"is_available": user.IsAvailable,
	})
}

// UpdateUserByAdmin lets an admin override a user's role and/or KYC
// status. A KYC override propagates to the linked application, and a
// rejection reverts the role to customer — the same rule the review
// endpoint applies.
func UpdateUserByAdmin(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input struct {
		Role      *string `json:"role"`
		KycStatus *string `json:"kyc_status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if input.Role != nil && !models.ValidRole(*input.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role specified"})
		return
	}
	if input.KycStatus != nil && !models.ValidKycStatus(*input.KycStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid KYC status specified"})
		return
	}

	var target models.User
	if err := config.DB.Preload("KycApplication").First(&target, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User to update not found"})
		} else {
			logrus.WithError(err).Error("UpdateUserByAdmin: lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	tx := config.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start transaction"})
		return
	}

	if input.Role != nil {
		target.Role = *input.Role
	}
	if input.KycStatus != nil {
		target.KycStatus = *input.KycStatus
		if target.KycApplication != nil {
			if err := tx.Model(target.KycApplication).Update("status", *input.KycStatus).Error; err != nil {
				tx.Rollback()
				logrus.WithError(err).Error("UpdateUserByAdmin: application update failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
				return
			}
		}
		if *input.KycStatus == models.KycRejected {
			target.Role = models.RoleCustomer
		}
	}

	if err := tx.Save(&target).Error; err != nil {
		tx.Rollback()
		logrus.WithError(err).Error("UpdateUserByAdmin: save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not commit transaction"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": target})
}

// ListUsersWithKyc returns every user that has filed a KYC application.
func ListUsersWithKyc(c *gin.Context) {
	var users []models.User
	if err := config.DB.Preload("KycApplication").
		Where("kyc_application_id IS NOT NULL").
		Find(&users).Error; err != nil {
		logrus.WithError(err).Error("ListUsersWithKyc: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error fetching users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

func locationToGeoJSON(wkbBytes []byte) (string, error) {
	if len(wkbBytes) == 0 {
		return "", nil
	}
	g, err := wkb.Unmarshal(wkbBytes)
	if err != nil {
		return "", err
	}
	b, err := gjson.Marshal(g)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// isDuplicateErr detects a unique-constraint violation from Postgres
// (class 23505) or from the SQLite driver the tests run on.
func isDuplicateErr(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "duplicate key value")
}
