// internal/storage/models/trade.go
package models

import (
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TradeRecord is one submitted swap. Amounts are in smallest units.
type TradeRecord struct {
	BaseModel
	AssetID          uint            `gorm:"not null;index"`
	Asset            *AssetRegistry  `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
	SettlementHandle string          `gorm:"not null;type:varchar(128);uniqueIndex"`
	ExpiryMarker     uint64          `gorm:"not null"`
	WalletAddress    string          `gorm:"not null;type:varchar(64);index"`
	Side             Side            `gorm:"not null;type:varchar(8)"`
	InAsset          string          `gorm:"not null;type:varchar(64)"`
	OutAsset         string          `gorm:"not null;type:varchar(64)"`
	InDecimals       uint8           `gorm:"not null"`
	OutDecimals      uint8           `gorm:"not null"`
	InAmount         decimal.Decimal `gorm:"type:numeric(40,12);not null"`
	OutAmount        decimal.Decimal `gorm:"type:numeric(40,12)"`
	Status           Status          `gorm:"not null;type:varchar(16);index"`
	PriorityFee      decimal.Decimal `gorm:"type:numeric(20,9)"`
	Price            decimal.Decimal `gorm:"type:numeric(30,12)"`
	GasFee           decimal.Decimal `gorm:"type:numeric(20,9)"`
}

func (TradeRecord) TableName() string { return "trade_records" }

// TradedAsset is the non-base side of the trade.
func (t *TradeRecord) TradedAsset() string {
	if t.Side == SideBuy {
		return t.OutAsset
	}
	return t.InAsset
}
