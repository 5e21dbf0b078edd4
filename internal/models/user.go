package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	FullName  string    `json:"fullName" gorm:"not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"` // stored lowercased
	Password  string    `json:"-" gorm:"not null"`                 // bcrypt hash, never plaintext
	ImagePath *string   `json:"imagePath" gorm:"default:null"`     // nil until first upload
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}
