// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/memetrader/internal/storage/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a unique constraint rejects a write.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	// Реестр активов
	GetAsset(ctx context.Context, chain, address string) (*models.AssetRegistry, error)
	// GetOrCreateAsset inserts the registry row or refreshes symbol and
	// last_updated of an existing one.
	GetOrCreateAsset(ctx context.Context, chain, address, symbol string) (*models.AssetRegistry, error)

	// Сделки
	CreateTrade(ctx context.Context, trade *models.TradeRecord) error
	GetTradeByHandle(ctx context.Context, handle string) (*models.TradeRecord, error)
	HasPendingTrade(ctx context.Context, assetID uint) (bool, error)
	// ListPendingTrades returns PENDING records in id order.
	ListPendingTrades(ctx context.Context) ([]*models.TradeRecord, error)
	// UpdateTradeStatus moves a PENDING record to a terminal status. It
	// reports false when the record was not PENDING anymore.
	UpdateTradeStatus(ctx context.Context, id uint, status models.Status) (bool, error)

	// DeleteStaleAssets removes registry rows not updated since cutoff along
	// with their trade records. Assets with a PENDING trade are kept.
	DeleteStaleAssets(ctx context.Context, cutoff time.Time) (assets int64, trades int64, err error)

	RunMigrations(ctx context.Context) error
	Close() error
}
