package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// UsageLedgerModel is the GORM model for usage ledger entries
type UsageLedgerModel struct {
	ID                        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID                 uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	PagesUsed                 int64     `gorm:"column:pages_used;not null;default:0"`
	TranslationsUsed          int64     `gorm:"column:translations_used;not null;default:0"`
	DailyFreeTranslationsUsed int64     `gorm:"column:daily_free_translations_used;not null;default:0"`
	PeriodStart               time.Time `gorm:"column:period_start;not null"`
	DayStart                  time.Time `gorm:"column:day_start;not null"`
	Version                   int       `gorm:"not null;default:1"`
	CreatedAt                 time.Time `gorm:"autoCreateTime"`
	UpdatedAt                 time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (UsageLedgerModel) TableName() string {
	return "usage_ledgers"
}

// ToEntity converts the model to a domain entity.
// Window starts are normalized back to UTC; drivers may hand them back in a
// different location and window comparisons are UTC-based.
func (m *UsageLedgerModel) ToEntity() *metering.UsageLedgerEntry {
	return &metering.UsageLedgerEntry{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		AccountID:                  m.AccountID,
		PagesUsedThisPeriod:        m.PagesUsed,
		TranslationsUsedThisPeriod: m.TranslationsUsed,
		DailyFreeTranslationsUsed:  m.DailyFreeTranslationsUsed,
		PeriodStart:                m.PeriodStart.UTC(),
		DayStart:                   m.DayStart.UTC(),
	}
}

// UsageLedgerModelFromEntity creates a model from a domain entity
func UsageLedgerModelFromEntity(e *metering.UsageLedgerEntry) *UsageLedgerModel {
	return &UsageLedgerModel{
		ID:                        e.ID,
		AccountID:                 e.AccountID,
		PagesUsed:                 e.PagesUsedThisPeriod,
		TranslationsUsed:          e.TranslationsUsedThisPeriod,
		DailyFreeTranslationsUsed: e.DailyFreeTranslationsUsed,
		PeriodStart:               e.PeriodStart,
		DayStart:                  e.DayStart,
		Version:                   e.Version,
		CreatedAt:                 e.CreatedAt,
		UpdatedAt:                 e.UpdatedAt,
	}
}

// GormUsageLedgerRepository implements the metering.UsageLedgerRepository interface
type GormUsageLedgerRepository struct {
	db *gorm.DB
}

// NewUsageLedgerRepository creates a new usage ledger repository
func NewUsageLedgerRepository(db *gorm.DB) *GormUsageLedgerRepository {
	return &GormUsageLedgerRepository{db: db}
}

// FindByAccount retrieves the ledger entry for an account
func (r *GormUsageLedgerRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) (*metering.UsageLedgerEntry, error) {
	var model UsageLedgerModel
	if err := r.db.WithContext(ctx).First(&model, "account_id = ?", accountID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Save persists a new ledger entry
func (r *GormUsageLedgerRepository) Save(ctx context.Context, entry *metering.UsageLedgerEntry) error {
	model := UsageLedgerModelFromEntity(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists counters and window starts with a version check.
// This is what makes lazy rollover safe: two writers racing on the same entry
// cannot both win, so a period reset is observed exactly once.
func (r *GormUsageLedgerRepository) Update(ctx context.Context, entry *metering.UsageLedgerEntry) error {
	expectedVersion := entry.Version
	result := r.db.WithContext(ctx).
		Model(&UsageLedgerModel{}).
		Where("id = ? AND version = ?", entry.ID, expectedVersion).
		Updates(map[string]interface{}{
			"pages_used":                   entry.PagesUsedThisPeriod,
			"translations_used":            entry.TranslationsUsedThisPeriod,
			"daily_free_translations_used": entry.DailyFreeTranslationsUsed,
			"period_start":                 entry.PeriodStart,
			"day_start":                    entry.DayStart,
			"version":                      expectedVersion + 1,
			"updated_at":                   time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	entry.Version = expectedVersion + 1
	return nil
}

// Ensure GormUsageLedgerRepository implements the interface
var _ metering.UsageLedgerRepository = (*GormUsageLedgerRepository)(nil)
