package repositories

import (
	"errors"
	"fmt"

	"promptdesk/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProviderHintRepository interface {
	List() ([]models.ProviderHint, error)
	Get(providerKey string) (*models.ProviderHint, error)
	Upsert(providerKey string, connected bool) (*models.ProviderHint, error)
	Delete(providerKey string) error
}

type providerHintRepository struct {
	db *gorm.DB
}

func NewProviderHintRepository(db *gorm.DB) ProviderHintRepository {
	return &providerHintRepository{db: db}
}

func (r *providerHintRepository) List() ([]models.ProviderHint, error) {
	var hints []models.ProviderHint
	res := r.db.Order("provider_key asc").Find(&hints)
	if res.Error != nil {
		return nil, res.Error
	}
	return hints, nil
}

func (r *providerHintRepository) Get(providerKey string) (*models.ProviderHint, error) {
	var hint models.ProviderHint
	res := r.db.Where("provider_key = ?", providerKey).Take(&hint)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return &hint, nil
}

func (r *providerHintRepository) Upsert(providerKey string, connected bool) (*models.ProviderHint, error) {
	if providerKey == "" {
		return nil, fmt.Errorf("providerKey is required")
	}
	hint := models.ProviderHint{
		ProviderKey: providerKey,
		Connected:   connected,
	}
	// Upsert on the provider key unique index
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"connected", "updated_at"}),
	}).Create(&hint).Error; err != nil {
		return nil, err
	}
	return &hint, nil
}

func (r *providerHintRepository) Delete(providerKey string) error {
	return r.db.Where("provider_key = ?", providerKey).Delete(&models.ProviderHint{}).Error
}
