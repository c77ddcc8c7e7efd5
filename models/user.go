package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;size:120;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	FullName     string `gorm:"size:120;not null"`
	IsActive     bool   `gorm:"default:true;index"`

	Profile
}

// Profile holds the optional health and preference fields of a user.
// A nil field was never provided.
type Profile struct {
	Age                      *int       `json:"age"`
	Gender                   *string    `gorm:"size:20" json:"gender"`
	StreetAddress            *string    `gorm:"size:200" json:"street_address"`
	City                     *string    `gorm:"size:100" json:"city"`
	State                    *string    `gorm:"size:100" json:"state"`
	Country                  *string    `gorm:"size:100" json:"country"`
	Zip                      *string    `gorm:"size:20" json:"zip"`
	DiagnoseDate             *time.Time `json:"diagnose_date"`
	BloodGlucoseLevel        *float64   `json:"blood_glucose_level"`
	BloodGlucoseFastingLevel *float64   `json:"blood_glucose_fasting_level"`
	Medications              *string    `gorm:"type:text" json:"medications"`
	MedicalConditions        *string    `gorm:"type:text" json:"medical_conditions"`
	DietaryPref              *string    `gorm:"size:200" json:"dietary_pref"`
	PhysicalActivity         *string    `gorm:"size:200" json:"physical_activity"`
	Weight                   *float64   `json:"weight"`
	Height                   *float64   `json:"height"`
	ManagementGoals          *string    `gorm:"type:text" json:"management_goals"`
	LearningPreference       *string    `gorm:"size:200" json:"learning_preference"`
}

// LoginHistory records one successful login.
type LoginHistory struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	Timestamp time.Time `gorm:"not null"`
}

func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// HashPassword returns the salted bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
