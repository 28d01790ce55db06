package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleUser    = "user"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	TokenVersion int    `gorm:"default:0" json:"-"`

	// Profile information
	Name     *string `json:"name,omitempty"`
	Timezone string  `gorm:"default:'UTC'" json:"timezone"`
	Language string  `gorm:"default:'en'" json:"language"`

	// Account status
	IsActive bool   `gorm:"default:true" json:"is_active"`
	Role     string `gorm:"default:'user'" json:"role"` // user, teacher, admin

	// Credit balance. Mutated only through services.CreditService so that it
	// always equals the sum of the user's credit_transactions rows.
	CreditsBalance int `gorm:"not null;default:0" json:"credits_balance"`

	// Subscription
	IsPremium        bool       `gorm:"default:false" json:"is_premium"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`

	// Study goals
	TargetBandScore *float64   `json:"target_band_score,omitempty"`
	ExamDate        *time.Time `json:"exam_date,omitempty"`

	// Relations
	Attempts     []Attempt           `gorm:"foreignKey:UserID" json:"attempts,omitempty"`
	Transactions []CreditTransaction `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
}

// IsStaff reports whether the user may manage exercises and students.
func (u *User) IsStaff() bool {
	return u.Role == RoleTeacher || u.Role == RoleAdmin
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
