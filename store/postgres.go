package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/crushlink/crushpay/types"
)

// linkRow maps to the "requests" table.
type linkRow struct {
	ID            string    `gorm:"column:id;primaryKey"`
	CrushHandle   string    `gorm:"column:crush_x_handle"`
	Message       string    `gorm:"column:ai_message"`
	Status        string    `gorm:"column:status"`
	PaymentTxHash *string   `gorm:"column:payment_tx_hash"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (linkRow) TableName() string { return "requests" }

// PostgresStore is the production Store backed by Postgres via GORM.
type PostgresStore struct {
	db *gorm.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects with the given DSN and migrates the
// requests table.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&linkRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate requests table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Create(ctx context.Context, link *types.CrushLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.Status == "" {
		link.Status = types.StatusPending
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}

	row := toRow(link)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, linkID string) (*types.CrushLink, error) {
	var row linkRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", linkID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load link: %w", err)
	}
	return fromRow(&row), nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, linkID string, status types.LinkStatus, txHash string) error {
	updates := map[string]any{"status": string(status)}
	if txHash != "" {
		updates["payment_tx_hash"] = txHash
	}

	res := s.db.WithContext(ctx).Model(&linkRow{}).Where("id = ?", linkID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func toRow(link *types.CrushLink) linkRow {
	row := linkRow{
		ID:          link.ID,
		CrushHandle: link.CrushHandle,
		Message:     link.Message,
		Status:      string(link.Status),
		CreatedAt:   link.CreatedAt,
	}
	if link.PaymentTxHash != "" {
		hash := link.PaymentTxHash
		row.PaymentTxHash = &hash
	}
	return row
}

func fromRow(row *linkRow) *types.CrushLink {
	link := &types.CrushLink{
		ID:          row.ID,
		CrushHandle: row.CrushHandle,
		Message:     row.Message,
		Status:      types.LinkStatus(row.Status),
		CreatedAt:   row.CreatedAt,
	}
	if row.PaymentTxHash != nil {
		link.PaymentTxHash = *row.PaymentTxHash
	}
	return link
}
