// internal/storage/models/asset.go
package models

import "time"

// AssetRegistry marks an asset as already evaluated. A row excludes the asset
// from future buys until retention cleanup removes it.
type AssetRegistry struct {
	BaseModel
	Chain        string    `gorm:"not null;type:varchar(16);uniqueIndex:idx_asset_chain_address"`
	AssetAddress string    `gorm:"not null;type:varchar(64);uniqueIndex:idx_asset_chain_address"`
	Symbol       string    `gorm:"type:varchar(64)"`
	LastUpdated  time.Time `gorm:"not null;index"`
}

func (AssetRegistry) TableName() string { return "asset_registry" }
