package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/identity"
	"github.com/metering/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// AccountModel is the GORM model for accounts
type AccountModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Plan           string     `gorm:"type:varchar(20);not null;default:'free'"`
	PlanUpgradedAt *time.Time `gorm:"column:plan_upgraded_at"`
	Version        int        `gorm:"not null;default:1"`
	CreatedAt      time.Time  `gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (AccountModel) TableName() string {
	return "accounts"
}

// ToEntity converts the model to a domain entity
func (m *AccountModel) ToEntity() *identity.Account {
	return &identity.Account{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Plan:           identity.AccountPlan(m.Plan),
		PlanUpgradedAt: m.PlanUpgradedAt,
	}
}

// AccountModelFromEntity creates a model from a domain entity
func AccountModelFromEntity(e *identity.Account) *AccountModel {
	return &AccountModel{
		ID:             e.ID,
		Plan:           e.Plan.String(),
		PlanUpgradedAt: e.PlanUpgradedAt,
		Version:        e.Version,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// GormAccountRepository implements the identity.AccountRepository interface
type GormAccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByID retrieves an account by its ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Account, error) {
	var model AccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Save persists a new account
func (r *GormAccountRepository) Save(ctx context.Context, account *identity.Account) error {
	model := AccountModelFromEntity(account)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes with a version check. A concurrent writer that got
// there first leaves zero rows affected and the caller sees
// CONCURRENCY_CONFLICT.
func (r *GormAccountRepository) Update(ctx context.Context, account *identity.Account) error {
	expectedVersion := account.Version
	result := r.db.WithContext(ctx).
		Model(&AccountModel{}).
		Where("id = ? AND version = ?", account.ID, expectedVersion).
		Updates(map[string]interface{}{
			"plan":             account.Plan.String(),
			"plan_upgraded_at": account.PlanUpgradedAt,
			"version":          expectedVersion + 1,
			"updated_at":       time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	account.Version = expectedVersion + 1
	return nil
}

// Ensure GormAccountRepository implements the interface
var _ identity.AccountRepository = (*GormAccountRepository)(nil)
