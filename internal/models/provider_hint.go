package models

import "time"

// ProviderHint is the locally persisted last-known connection flag for one
// provider. It is a fast hint only and is always re-verified against the
// backend on load; each row is written only by its own provider's handling.
type ProviderHint struct {
	ID          uint   `gorm:"primaryKey"`
	ProviderKey string `gorm:"size:64;not null;uniqueIndex"`
	Connected   bool   `gorm:"not null;default:false"`
	UpdatedAt   time.Time
}
