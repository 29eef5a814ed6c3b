package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared"
	"github.com/metering/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// WalletTransactionModel is the GORM model for wallet transactions
type WalletTransactionModel struct {
	ID                      uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID               uuid.UUID `gorm:"type:uuid;not null;index"`
	TransactionType         string    `gorm:"type:varchar(20);not null"`
	AmountMinorUnits        int64     `gorm:"column:amount_minor_units;not null"`
	Currency                string    `gorm:"type:varchar(3);not null;default:'USD'"`
	BalanceBeforeMinorUnits int64     `gorm:"column:balance_before_minor_units;not null"`
	BalanceAfterMinorUnits  int64     `gorm:"column:balance_after_minor_units;not null"`
	Reference               string    `gorm:"type:varchar(255)"`
	TransactionDate         time.Time `gorm:"column:transaction_date;not null;index"`
	CreatedAt               time.Time `gorm:"autoCreateTime"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for the model
func (WalletTransactionModel) TableName() string {
	return "wallet_transactions"
}

// ToEntity converts the model to a domain entity
func (m *WalletTransactionModel) ToEntity() *metering.WalletTransaction {
	currency := valueobject.Currency(m.Currency)
	amount, _ := valueobject.NewMoney(m.AmountMinorUnits, currency)
	before, _ := valueobject.NewMoney(m.BalanceBeforeMinorUnits, currency)
	after, _ := valueobject.NewMoney(m.BalanceAfterMinorUnits, currency)

	return &metering.WalletTransaction{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		AccountID:       m.AccountID,
		TransactionType: metering.WalletTransactionType(m.TransactionType),
		Amount:          amount,
		BalanceBefore:   before,
		BalanceAfter:    after,
		Reference:       m.Reference,
		TransactionDate: m.TransactionDate,
	}
}

// WalletTransactionModelFromEntity creates a model from a domain entity
func WalletTransactionModelFromEntity(e *metering.WalletTransaction) *WalletTransactionModel {
	return &WalletTransactionModel{
		ID:                      e.ID,
		AccountID:               e.AccountID,
		TransactionType:         e.TransactionType.String(),
		AmountMinorUnits:        e.Amount.MinorUnits(),
		Currency:                string(e.Amount.Currency()),
		BalanceBeforeMinorUnits: e.BalanceBefore.MinorUnits(),
		BalanceAfterMinorUnits:  e.BalanceAfter.MinorUnits(),
		Reference:               e.Reference,
		TransactionDate:         e.TransactionDate,
		CreatedAt:               e.CreatedAt,
		UpdatedAt:               e.UpdatedAt,
	}
}

// GormWalletTransactionRepository implements the metering.WalletTransactionRepository interface
type GormWalletTransactionRepository struct {
	db *gorm.DB
}

// NewWalletTransactionRepository creates a new wallet transaction repository
func NewWalletTransactionRepository(db *gorm.DB) *GormWalletTransactionRepository {
	return &GormWalletTransactionRepository{db: db}
}

// Save appends an immutable transaction record
func (r *GormWalletTransactionRepository) Save(ctx context.Context, tx *metering.WalletTransaction) error {
	model := WalletTransactionModelFromEntity(tx)
	return r.db.WithContext(ctx).Create(model).Error
}

// transactionSortColumns are the columns callers are allowed to order by
var transactionSortColumns = map[string]bool{
	"transaction_date": true,
	"created_at":       true,
	"amount_minor_units": true,
}

// FindByAccount lists transactions for an account with pagination
func (r *GormWalletTransactionRepository) FindByAccount(ctx context.Context, accountID uuid.UUID, filter shared.Filter) ([]*metering.WalletTransaction, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&WalletTransactionModel{}).
		Where("account_id = ?", accountID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := filter.OrderBy
	if !transactionSortColumns[orderBy] {
		orderBy = "transaction_date"
	}
	orderDir := "DESC"
	if strings.EqualFold(filter.OrderDir, "asc") {
		orderDir = "ASC"
	}

	var models []WalletTransactionModel
	err := query.
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	transactions := make([]*metering.WalletTransaction, len(models))
	for i, model := range models {
		transactions[i] = model.ToEntity()
	}
	return transactions, total, nil
}

// Ensure GormWalletTransactionRepository implements the interface
var _ metering.WalletTransactionRepository = (*GormWalletTransactionRepository)(nil)
