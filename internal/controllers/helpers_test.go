package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"rideeasy/internal/config"
	"rideeasy/internal/media"
	"rideeasy/internal/middleware"
	"rideeasy/internal/models"
	"rideeasy/internal/routes"
)

var dbSeq atomic.Int64

// setupServer wires a fresh in-memory database and a fake media store
// behind the real router.
func setupServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logrus.SetOutput(io.Discard)

	dsn := fmt.Sprintf("file:controllers%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.DB = db
	media.Active = &fakeMediaStore{}

	return routes.SetupRouter()
}

type fakeMediaStore struct {
	fail bool

	mu       sync.Mutex
	uploaded []string
}

func (f *fakeMediaStore) Upload(_ context.Context, _ []byte, filename, folder string) (string, error) {
	if f.fail {
		return "", errors.New("upstream unavailable")
	}
	f.mu.Lock()
	f.uploaded = append(f.uploaded, filename)
	f.mu.Unlock()
	return "https://media.test/" + folder + "/" + filename, nil
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// syncUser mints an identity token for the subject and syncs the
// account. Remember: the very first synced account becomes the admin.
func syncUser(t *testing.T, r *gin.Engine, subject, email string) string {
	t.Helper()
	token, err := middleware.MintIdentityToken(subject, email)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	w := doJSON(t, r, http.MethodPost, "/user/sync", token, nil)
	if w.Code != http.StatusOK && w.Code != http.StatusCreated {
		t.Fatalf("sync %s: status %d body %s", subject, w.Code, w.Body.String())
	}
	return token
}

// syncCustomer syncs and pins the account to the customer role,
// regardless of the first-user-is-admin rule.
func syncCustomer(t *testing.T, r *gin.Engine, subject, email string) string {
	t.Helper()
	token := syncUser(t, r, subject, email)
	setUser(t, subject, map[string]any{"role": models.RoleCustomer})
	return token
}

// syncApprovedDriver syncs and pins the account to an approved driver.
func syncApprovedDriver(t *testing.T, r *gin.Engine, subject, email string) string {
	t.Helper()
	token := syncUser(t, r, subject, email)
	setUser(t, subject, map[string]any{"role": models.RoleDriver, "kyc_status": models.KycApproved})
	return token
}

func setUser(t *testing.T, subject string, updates map[string]any) {
	t.Helper()
	if err := config.DB.Model(&models.User{}).Where("subject_id = ?", subject).Updates(updates).Error; err != nil {
		t.Fatalf("update user %s: %v", subject, err)
	}
}

func userBySubject(t *testing.T, subject string) models.User {
	t.Helper()
	var u models.User
	if err := config.DB.Where("subject_id = ?", subject).First(&u).Error; err != nil {
		t.Fatalf("load user %s: %v", subject, err)
	}
	return u
}

func rideByID(t *testing.T, id uint) models.Ride {
	t.Helper()
	var ride models.Ride
	if err := config.DB.Preload("Passengers").First(&ride, id).Error; err != nil {
		t.Fatalf("load ride %d: %v", id, err)
	}
	return ride
}

func validRideBody(space int) map[string]any {
	return map[string]any{
		"origin":            "Nairobi CBD",
		"originCoords":      map[string]float64{"lat": -1.2921, "lon": 36.8219},
		"destination":       "Thika Town",
		"destinationCoords": map[string]float64{"lat": -1.0333, "lon": 37.0693},
		"vehicleType":       models.VehicleCar,
		"availableSpace":    space,
		"price":             350.0,
		"distanceKm":        40.2,
	}
}

// createRide publishes a ride through the API and returns its id.
func createRide(t *testing.T, r *gin.Engine, driverToken string, space int) uint {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/rides", driverToken, validRideBody(space))
	if w.Code != http.StatusCreated {
		t.Fatalf("create ride: status %d body %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	ride, ok := resp["ride"].(map[string]any)
	if !ok {
		t.Fatalf("create ride: no ride in response %v", resp)
	}
	return uint(ride["id"].(float64))
}

var kycTextFields = map[string]string{
	"fullName":                  "Jomo Mwangi",
	"phoneNumber":               "+254700111222",
	"driverLicenseNumber":       "DL-448291",
	"vehicleRegistrationNumber": "KDA 123X",
	"idProofNumber":             "ID-90127733",
}

// submitKyc posts a multipart KYC submission with the given text fields
// and file parts.
func submitKyc(t *testing.T, r *gin.Engine, token string, fields map[string]string, fileNames []string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for _, name := range fileNames {
		fw, err := mw.CreateFormFile(name, name+".jpg")
		if err != nil {
			t.Fatalf("create file part %s: %v", name, err)
		}
		if _, err := fw.Write([]byte("binary document payload")); err != nil {
			t.Fatalf("write file part %s: %v", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/user/kyc", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var allKycFiles = []string{"driverLicenseFile", "vehicleRegistrationFile", "idProofFile"}

// mustToken mints an identity token without syncing an account.
func mustToken(t *testing.T, subject, email string) string {
	t.Helper()
	token, err := middleware.MintIdentityToken(subject, email)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func itoa(id uint) string {
	return fmt.Sprintf("%d", id)
}
