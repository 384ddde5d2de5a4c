package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"rideeasy/internal/config"
	"rideeasy/internal/middleware"
	"rideeasy/internal/models"
)

// distanceToleranceKm is how far the client-supplied distance may drift
// from the server-side great-circle figure before we log a warning.
const distanceToleranceKm = 0.1

type coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CreateRide publishes a new ride offer. Only a driver with an approved
// KYC may create one. The submitted distance is checked against a
// server-side haversine computation; a mismatch is logged but does not
// block creation.
func CreateRide(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user.Role != models.RoleDriver || user.KycStatus != models.KycApproved {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied. Only approved drivers can create rides."})
		return
	}

	var input struct {
		Origin            string       `json:"origin"`
		OriginCoords      *coordinates `json:"originCoords"`
		Destination       string       `json:"destination"`
		DestinationCoords *coordinates `json:"destinationCoords"`
		VehicleType       string       `json:"vehicleType"`
		AvailableSpace    *int         `json:"availableSpace"`
		Price             *float64     `json:"price"`
		DistanceKm        *float64     `json:"distanceKm"`
		DepartureTime     *time.Time   `json:"departureTime"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var bad []string
	if strings.TrimSpace(input.Origin) == "" {
		bad = append(bad, "origin")
	}
	if input.OriginCoords == nil {
		bad = append(bad, "originCoords")
	}
	if strings.TrimSpace(input.Destination) == "" {
		bad = append(bad, "destination")
	}
	if input.DestinationCoords == nil {
		bad = append(bad, "destinationCoords")
	}
	if !models.ValidVehicleType(input.VehicleType) {
		bad = append(bad, "vehicleType")
	}
	if input.AvailableSpace == nil || *input.AvailableSpace < 1 {
		bad = append(bad, "availableSpace")
	}
	if input.Price == nil || *input.Price < 0 {
		bad = append(bad, "price")
	}
	if input.DistanceKm == nil || *input.DistanceKm <= 0 {
		bad = append(bad, "distanceKm")
	}
	if len(bad) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or missing fields: " + strings.Join(bad, ", ")})
		return
	}

	computed := haversineKm(input.OriginCoords.Lat, input.OriginCoords.Lon,
		input.DestinationCoords.Lat, input.DestinationCoords.Lon)
	if math.Abs(computed-*input.DistanceKm) > distanceToleranceKm {
		logrus.WithFields(logrus.Fields{
			"driver_id":   user.ID,
			"supplied_km": *input.DistanceKm,
			"computed_km": computed,
		}).Warn("CreateRide: distance mismatch between client and server computation")
	}

	ride := models.Ride{
		DriverID:       user.ID,
		Origin:         input.Origin,
		OriginLat:      input.OriginCoords.Lat,
		OriginLon:      input.OriginCoords.Lon,
		Destination:    input.Destination,
		DestLat:        input.DestinationCoords.Lat,
		DestLon:        input.DestinationCoords.Lon,
		VehicleType:    input.VehicleType,
		AvailableSpace: *input.AvailableSpace,
		Price:          *input.Price,
		DistanceKm:     *input.DistanceKm,
		Status:         models.RideActive,
		DepartureTime:  input.DepartureTime,
	}
	if err := config.DB.Create(&ride).Error; err != nil {
		logrus.WithError(err).Error("CreateRide: insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error during ride creation"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Ride created successfully!", "ride": ride})
}

// ListAvailableRides returns every ride still open for join requests.
// Public: no auth required.
func ListAvailableRides(c *gin.Context) {
	var rides []models.Ride
	if err := config.DB.Preload("Driver").
		Where("status = ?", models.RideActive).
		Find(&rides).Error; err != nil {
		logrus.WithError(err).Error("ListAvailableRides: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rides})
}

// GetRide returns one ride with driver and passenger details.
func GetRide(c *gin.Context) {
	ride, ok := loadRide(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ride": ride})
}

// EditRide applies a sparse update to an owned ride. Every supplied
// field is validated up front; one bad field rejects the whole update.
func EditRide(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ride, ok := loadOwnedRide(c, user)
	if !ok {
		return
	}

	var input struct {
		Origin            *string      `json:"origin"`
		OriginCoords      *coordinates `json:"originCoords"`
		Destination       *string      `json:"destination"`
		DestinationCoords *coordinates `json:"destinationCoords"`
		VehicleType       *string      `json:"vehicleType"`
		AvailableSpace    *int         `json:"availableSpace"`
		Price             *float64     `json:"price"`
		DistanceKm        *float64     `json:"distanceKm"`
		Status            *string      `json:"status"`
		DepartureTime     *time.Time   `json:"departureTime"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var bad []string
	if input.Origin != nil && strings.TrimSpace(*input.Origin) == "" {
		bad = append(bad, "origin")
	}
	if input.Destination != nil && strings.TrimSpace(*input.Destination) == "" {
		bad = append(bad, "destination")
	}
	if input.VehicleType != nil && !models.ValidVehicleType(*input.VehicleType) {
		bad = append(bad, "vehicleType")
	}
	if input.AvailableSpace != nil && *input.AvailableSpace < 0 {
		bad = append(bad, "availableSpace")
	}
	if input.Price != nil && *input.Price < 0 {
		bad = append(bad, "price")
	}
	if input.DistanceKm != nil && *input.DistanceKm < 0 {
		bad = append(bad, "distanceKm")
	}
	if input.Status != nil && !models.ValidRideStatus(*input.Status) {
		bad = append(bad, "status")
	}
	if len(bad) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid fields: " + strings.Join(bad, ", ")})
		return
	}

	if input.Origin != nil {
		ride.Origin = *input.Origin
	}
	if input.OriginCoords != nil {
		ride.OriginLat = input.OriginCoords.Lat
		ride.OriginLon = input.OriginCoords.Lon
	}
	if input.Destination != nil {
		ride.Destination = *input.Destination
	}
	if input.DestinationCoords != nil {
		ride.DestLat = input.DestinationCoords.Lat
		ride.DestLon = input.DestinationCoords.Lon
	}
	if input.VehicleType != nil {
		ride.VehicleType = *input.VehicleType
	}
	if input.AvailableSpace != nil {
		ride.AvailableSpace = *input.AvailableSpace
	}
	if input.Price != nil {
		ride.Price = *input.Price
	}
	if input.DistanceKm != nil {
		ride.DistanceKm = *input.DistanceKm
	}
	if input.Status != nil {
		ride.Status = *input.Status
	}
	if input.DepartureTime != nil {
		ride.DepartureTime = input.DepartureTime
	}

	if err := config.DB.Save(ride).Error; err != nil {
		logrus.WithError(err).Error("EditRide: save failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ride updated successfully", "ride": ride})
}

// DeleteRide removes an owned ride and its passenger entries outright.
func DeleteRide(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ride, ok := loadOwnedRide(c, user)
	if !ok {
		return
	}

	tx := config.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start transaction"})
		return
	}
	if err := tx.Where("ride_id = ?", ride.ID).Delete(&models.RidePassenger{}).Error; err != nil {
		tx.Rollback()
		logrus.WithError(err).Error("DeleteRide: passenger cleanup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if err := tx.Delete(&models.Ride{}, ride.ID).Error; err != nil {
		tx.Rollback()
		logrus.WithError(err).Error("DeleteRide: delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not commit transaction"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Ride deleted successfully"})
}

// JoinRide files a customer's request for a seat. The seat itself is
// only consumed when the driver accepts, so a flood of requests can
// never overbook the ride.
func JoinRide(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ride, ok := loadRide(c, c.Param("id"))
	if !ok {
		return
	}

	if ride.Status != models.RideActive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This ride is not active and cannot be joined."})
		return
	}

	var existing models.RidePassenger
	err := config.DB.Where("ride_id = ? AND user_id = ?", ride.ID, user.ID).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "You have already sent a request or joined this ride."})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithError(err).Error("JoinRide: entry lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	if ride.AvailableSpace <= 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "No more space available on this ride."})
		return
	}

	entry := models.RidePassenger{RideID: ride.ID, UserID: user.ID, Status: models.PassengerPending}
	if err := config.DB.Create(&entry).Error; err != nil {
		if isDuplicateErr(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "You have already sent a request or joined this ride."})
			return
		}
		logrus.WithError(err).Error("JoinRide: insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	reloaded, ok := loadRide(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully requested to join the ride! Awaiting driver approval.",
		"ride":    reloaded,
	})
}

// ReviewPassengerRequest lets the owning driver accept or reject a
// pending request. Acceptance consumes a seat through a single
// conditional decrement, so two drivers' sessions racing on the last
// seat cannot drive the count negative.
func ReviewPassengerRequest(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ride, ok := loadOwnedRide(c, user)
	if !ok {
		return
	}

	passengerID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid passenger ID"})
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if input.Status != models.PassengerAccepted && input.Status != models.PassengerRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be 'accepted' or 'rejected'."})
		return
	}

	var entry models.RidePassenger
	if err := config.DB.Where("ride_id = ? AND user_id = ?", ride.ID, uint(passengerID)).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Passenger not found in this ride's requests."})
		} else {
			logrus.WithError(err).Error("ReviewPassengerRequest: entry lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}
	if entry.Status != models.PassengerPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Passenger request is already " + entry.Status + "."})
		return
	}

	if input.Status == models.PassengerAccepted {
		// Seat check and decrement as one conditional UPDATE; zero rows
		// affected means the ride is full and the entry stays pending.
		res := config.DB.Model(&models.Ride{}).
			Where("id = ? AND available_space > 0", ride.ID).
			UpdateColumn("available_space", gorm.Expr("available_space - 1"))
		if res.Error != nil {
			logrus.WithError(res.Error).Error("ReviewPassengerRequest: seat decrement failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "No more available space on this ride to accept more passengers."})
			return
		}
	}

	entry.Status = input.Status
	if err := config.DB.Save(&entry).Error; err != nil {
		logrus.WithError(err).Error("ReviewPassengerRequest: save entry failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	reloaded, ok := loadRide(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Passenger request " + input.Status + " successfully.",
		"ride":    reloaded,
	})
}

// CancelJoinRequest removes the caller's entry from a ride. An accepted
// entry returns its seat to the pool first.
func CancelJoinRequest(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ride, ok := loadRide(c, c.Param("id"))
	if !ok {
		return
	}

	var entry models.RidePassenger
	if err := config.DB.Where("ride_id = ? AND user_id = ?", ride.ID, user.ID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You have not joined this ride."})
		} else {
			logrus.WithError(err).Error("CancelJoinRequest: entry lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return
	}

	tx := config.DB.Begin()
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start transaction"})
		return
	}
	if entry.Status == models.PassengerAccepted {
		if err := tx.Model(&models.Ride{}).
			Where("id = ?", ride.ID).
			UpdateColumn("available_space", gorm.Expr("available_space + 1")).Error; err != nil {
			tx.Rollback()
			logrus.WithError(err).Error("CancelJoinRequest: seat return failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
			return
		}
	}
	if err := tx.Delete(&entry).Error; err != nil {
		tx.Rollback()
		logrus.WithError(err).Error("CancelJoinRequest: delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if err := tx.Commit().Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not commit transaction"})
		return
	}

	reloaded, ok := loadRide(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Successfully cancelled ride request/booking.", "ride": reloaded})
}

// GetDriverRides lists the authenticated driver's own rides with their
// passenger requests.
func GetDriverRides(c *gin.Context) {
	user := middleware.CurrentUser(c)
	var rides []models.Ride
	if err := config.DB.Preload("Passengers.User").
		Where("driver_id = ?", user.ID).
		Find(&rides).Error; err != nil {
		logrus.WithError(err).Error("GetDriverRides: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rides})
}

// GetCustomerJoinedRides lists every ride the authenticated customer has
// an entry on, whatever its state.
func GetCustomerJoinedRides(c *gin.Context) {
	user := middleware.CurrentUser(c)
	var rides []models.Ride
	if err := config.DB.Preload("Driver").Preload("Passengers.User").
		Joins("JOIN ride_passengers ON ride_passengers.ride_id = rides.id").
		Where("ride_passengers.user_id = ?", user.ID).
		Find(&rides).Error; err != nil {
		logrus.WithError(err).Error("GetCustomerJoinedRides: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rides})
}

// loadRide fetches a ride with driver and passengers, writing the error
// response itself when the ride is missing.
func loadRide(c *gin.Context, idParam string) (*models.Ride, bool) {
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ride ID"})
		return nil, false
	}
	var ride models.Ride
	if err := config.DB.Preload("Driver").Preload("Passengers.User").First(&ride, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ride not found"})
		} else {
			logrus.WithError(err).Error("loadRide: lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		}
		return nil, false
	}
	return &ride, true
}

// loadOwnedRide is loadRide plus an ownership check against the caller.
func loadOwnedRide(c *gin.Context, user *models.User) (*models.Ride, bool) {
	ride, ok := loadRide(c, c.Param("id"))
	if !ok {
		return nil, false
	}
	if ride.DriverID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized. You can only manage your own rides."})
		return nil, false
	}
	return ride, true
}

// haversineKm returns the great-circle distance between two points in
// kilometres.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
