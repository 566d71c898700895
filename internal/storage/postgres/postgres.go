// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/memetrader/internal/storage"
	"github.com/rovshanmuradov/memetrader/internal/storage/models"
)

const (
	migrationLockID = 101

	pgErrUniqueViolation = "23505"
)

// At most one PENDING trade per asset, enforced by the database.
const onePendingIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_trade_records_one_pending
ON trade_records (asset_id) WHERE status = 'PENDING'`

var _ storage.Storage = (*postgresStorage)(nil)

// postgresStorage реализует интерфейс Storage
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger.Named("storage"),
	}, nil
}

// RunMigrations creates the schema under an advisory lock so that several
// instances starting together do not race.
func (p *postgresStorage) RunMigrations(ctx context.Context) error {
	// advisory locks are per session, keep both calls on one connection
	return p.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var lockObtained bool
		if err := conn.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return errors.New("another migration is in progress")
		}
		defer conn.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)

		if err := conn.AutoMigrate(&models.AssetRegistry{}, &models.TradeRecord{}); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if err := conn.Exec(onePendingIndex).Error; err != nil {
			return fmt.Errorf("failed to create pending index: %w", err)
		}
		p.logger.Info("migrations applied")
		return nil
	})
}

func (p *postgresStorage) GetAsset(ctx context.Context, chain, address string) (*models.AssetRegistry, error) {
	var asset models.AssetRegistry
	err := p.db.WithContext(ctx).
		Where("chain = ? AND asset_address = ?", chain, address).
		First(&asset).Error
	if err != nil {
		return nil, translate(err)
	}
	return &asset, nil
}

func (p *postgresStorage) GetOrCreateAsset(ctx context.Context, chain, address, symbol string) (*models.AssetRegistry, error) {
	asset := models.AssetRegistry{
		Chain:        chain,
		AssetAddress: address,
		Symbol:       symbol,
		LastUpdated:  time.Now().UTC(),
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain"}, {Name: "asset_address"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_updated": gorm.Expr("EXCLUDED.last_updated"),
			"symbol":       gorm.Expr("COALESCE(NULLIF(EXCLUDED.symbol, ''), asset_registry.symbol)"),
		}),
	}).Create(&asset).Error
	if err != nil {
		return nil, fmt.Errorf("upsert asset %s: %w", address, translate(err))
	}
	return p.GetAsset(ctx, chain, address)
}

func (p *postgresStorage) CreateTrade(ctx context.Context, trade *models.TradeRecord) error {
	if err := p.db.WithContext(ctx).Omit(clause.Associations).Create(trade).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (p *postgresStorage) GetTradeByHandle(ctx context.Context, handle string) (*models.TradeRecord, error) {
	var trade models.TradeRecord
	if err := p.db.WithContext(ctx).Where("settlement_handle = ?", handle).First(&trade).Error; err != nil {
		return nil, translate(err)
	}
	return &trade, nil
}

func (p *postgresStorage) HasPendingTrade(ctx context.Context, assetID uint) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&models.TradeRecord{}).
		Where("asset_id = ? AND status = ?", assetID, models.StatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *postgresStorage) ListPendingTrades(ctx context.Context) ([]*models.TradeRecord, error) {
	var trades []*models.TradeRecord
	err := p.db.WithContext(ctx).
		Where("status = ?", models.StatusPending).
		Order("id asc").
		Find(&trades).Error
	return trades, err
}

func (p *postgresStorage) UpdateTradeStatus(ctx context.Context, id uint, status models.Status) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("status %s is not terminal", status)
	}
	res := p.db.WithContext(ctx).Model(&models.TradeRecord{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := p.db.WithContext(ctx).Model(&models.TradeRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, storage.ErrNotFound
	}
	return false, nil
}

func (p *postgresStorage) DeleteStaleAssets(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	var assets, trades int64
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		// row locks stop new trades from referencing the assets being removed
		err := tx.Model(&models.AssetRegistry{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("last_updated < ?", cutoff).
			Where("NOT EXISTS (SELECT 1 FROM trade_records t WHERE t.asset_id = asset_registry.id AND t.status = ?)", models.StatusPending).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		res := tx.Where("asset_id IN ?", ids).Delete(&models.TradeRecord{})
		if res.Error != nil {
			return res.Error
		}
		trades = res.RowsAffected

		res = tx.Where("id IN ?", ids).Delete(&models.AssetRegistry{})
		if res.Error != nil {
			return res.Error
		}
		assets = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("delete stale assets: %w", err)
	}
	return assets, trades, nil
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case isDuplicateKeyError(err):
		return storage.ErrDuplicateKey
	default:
		return err
	}
}

func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
