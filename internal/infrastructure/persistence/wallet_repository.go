package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared"
	"github.com/metering/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// WalletModel is the GORM model for wallets
type WalletModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	BalanceMinorUnits int64     `gorm:"column:balance_minor_units;not null;default:0"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'USD'"`
	Version           int       `gorm:"not null;default:1"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (WalletModel) TableName() string {
	return "wallets"
}

// ToEntity converts the model to a domain entity
func (m *WalletModel) ToEntity() *metering.Wallet {
	balance, _ := valueobject.NewMoney(m.BalanceMinorUnits, valueobject.Currency(m.Currency))
	return &metering.Wallet{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		AccountID: m.AccountID,
		Balance:   balance,
	}
}

// WalletModelFromEntity creates a model from a domain entity
func WalletModelFromEntity(e *metering.Wallet) *WalletModel {
	return &WalletModel{
		ID:                e.ID,
		AccountID:         e.AccountID,
		BalanceMinorUnits: e.Balance.MinorUnits(),
		Currency:          string(e.Balance.Currency()),
		Version:           e.Version,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

// GormWalletRepository implements the metering.WalletRepository interface
type GormWalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// FindByAccount retrieves the wallet for an account
func (r *GormWalletRepository) FindByAccount(ctx context.Context, accountID uuid.UUID) (*metering.Wallet, error) {
	var model WalletModel
	if err := r.db.WithContext(ctx).First(&model, "account_id = ?", accountID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToEntity(), nil
}

// Save persists a new wallet
func (r *GormWalletRepository) Save(ctx context.Context, wallet *metering.Wallet) error {
	model := WalletModelFromEntity(wallet)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists the balance with a version check
func (r *GormWalletRepository) Update(ctx context.Context, wallet *metering.Wallet) error {
	expectedVersion := wallet.Version
	result := r.db.WithContext(ctx).
		Model(&WalletModel{}).
		Where("id = ? AND version = ?", wallet.ID, expectedVersion).
		Updates(map[string]interface{}{
			"balance_minor_units": wallet.Balance.MinorUnits(),
			"currency":            string(wallet.Balance.Currency()),
			"version":             expectedVersion + 1,
			"updated_at":          time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	wallet.Version = expectedVersion + 1
	return nil
}

// Ensure GormWalletRepository implements the interface
var _ metering.WalletRepository = (*GormWalletRepository)(nil)
