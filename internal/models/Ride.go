package models

import "time"

// Ride lifecycle. A ride accepts join requests only while active;
// completed and cancelled are terminal, reached by explicit driver edits.
const (
	RideActive    = "active"
	RideCompleted = "completed"
	RideCancelled = "cancelled"
)

const (
	VehicleTwoWheeler = "two-wheeler"
	VehicleCar        = "car"
	VehicleTruck      = "truck"
)

// Passenger request states within a ride. A seat is consumed only on the
// pending -> accepted transition, never when the request is filed.
const (
	PassengerPending  = "pending"
	PassengerAccepted = "accepted"
	PassengerRejected = "rejected"
)

// Ride is a driver-published trip offer with a finite seat count.
// No DeletedAt: driver deletion removes the row and its passenger
// entries outright.
type Ride struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DriverID uint `json:"driver_id" gorm:"index"`
	Driver   User `gorm:"foreignKey:DriverID" json:"driver,omitempty"`

	Origin    string  `json:"origin"`
	OriginLat float64 `json:"origin_lat"`
	OriginLon float64 `json:"origin_lon"`

	Destination string  `json:"destination"`
	DestLat     float64 `json:"dest_lat"`
	DestLon     float64 `json:"dest_lon"`

	VehicleType    string  `json:"vehicle_type"`
	AvailableSpace int     `json:"available_space"`
	Price          float64 `json:"price"`
	DistanceKm     float64 `json:"distance_km"`

	Status        string     `json:"status" gorm:"default:active"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`

	Passengers []RidePassenger `gorm:"foreignKey:RideID" json:"passengers"`
}

// RidePassenger is a customer's request for a seat on a ride. At most one
// entry per (ride, user) pair; cancellation deletes the row so the pair
// may request again later.
type RidePassenger struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RideID uint `json:"ride_id" gorm:"uniqueIndex:idx_ride_passenger"`
	UserID uint `json:"user_id" gorm:"uniqueIndex:idx_ride_passenger"`
	User   User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Status string `json:"status" gorm:"default:pending"`
}

func ValidVehicleType(t string) bool {
	switch t {
	case VehicleTwoWheeler, VehicleCar, VehicleTruck:
		return true
	}
	return false
}

func ValidRideStatus(s string) bool {
	switch s {
	case RideActive, RideCompleted, RideCancelled:
		return true
	}
	return false
}
