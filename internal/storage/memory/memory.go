// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rovshanmuradov/memetrader/internal/storage"
	"github.com/rovshanmuradov/memetrader/internal/storage/models"
)

var _ storage.Storage = (*Store)(nil)

// Store is an in-process Storage with the same uniqueness rules as the
// postgres schema. Used by tests and local dry runs.
type Store struct {
	mu      sync.RWMutex
	assets  map[uint]*models.AssetRegistry
	trades  map[uint]*models.TradeRecord
	nextID  uint
	now     func() time.Time
	history map[uint][]models.Status
}

func New() *Store {
	return &Store{
		assets:  make(map[uint]*models.AssetRegistry),
		trades:  make(map[uint]*models.TradeRecord),
		history: make(map[uint][]models.Status),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *Store) findAsset(chain, address string) *models.AssetRegistry {
	for _, a := range s.assets {
		if a.Chain == chain && a.AssetAddress == address {
			return a
		}
	}
	return nil
}

func (s *Store) GetAsset(_ context.Context, chain, address string) (*models.AssetRegistry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.findAsset(chain, address)
	if a == nil {
		return nil, storage.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetOrCreateAsset(_ context.Context, chain, address, symbol string) (*models.AssetRegistry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if a := s.findAsset(chain, address); a != nil {
		if symbol != "" {
			a.Symbol = symbol
		}
		a.LastUpdated = now
		cp := *a
		return &cp, nil
	}
	a := &models.AssetRegistry{
		BaseModel:    models.BaseModel{ID: s.id(), CreatedAt: now},
		Chain:        chain,
		AssetAddress: address,
		Symbol:       symbol,
		LastUpdated:  now,
	}
	s.assets[a.ID] = a
	cp := *a
	return &cp, nil
}

func (s *Store) CreateTrade(_ context.Context, trade *models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[trade.AssetID]; !ok {
		return fmt.Errorf("asset %d: %w", trade.AssetID, storage.ErrNotFound)
	}
	for _, t := range s.trades {
		if t.SettlementHandle == trade.SettlementHandle {
			return storage.ErrDuplicateKey
		}
		if trade.Status == models.StatusPending && t.AssetID == trade.AssetID && t.Status == models.StatusPending {
			return storage.ErrDuplicateKey
		}
	}

	trade.ID = s.id()
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = s.now()
	}
	cp := *trade
	s.trades[cp.ID] = &cp
	s.history[cp.ID] = []models.Status{cp.Status}
	return nil
}

func (s *Store) GetTradeByHandle(_ context.Context, handle string) (*models.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.trades {
		if t.SettlementHandle == handle {
			cp := *t
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) HasPendingTrade(_ context.Context, assetID uint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.trades {
		if t.AssetID == assetID && t.Status == models.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListPendingTrades(_ context.Context) ([]*models.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TradeRecord
	for _, t := range s.trades {
		if t.Status == models.StatusPending {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateTradeStatus(_ context.Context, id uint, status models.Status) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("status %s is not terminal", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trades[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	if t.Status != models.StatusPending {
		return false, nil
	}
	t.Status = status
	s.history[id] = append(s.history[id], status)
	return true, nil
}

func (s *Store) DeleteStaleAssets(_ context.Context, cutoff time.Time) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var assets, trades int64
	for id, a := range s.assets {
		if !a.LastUpdated.Before(cutoff) || s.hasPendingLocked(id) {
			continue
		}
		for tid, t := range s.trades {
			if t.AssetID == id {
				delete(s.trades, tid)
				trades++
			}
		}
		delete(s.assets, id)
		assets++
	}
	return assets, trades, nil
}

func (s *Store) hasPendingLocked(assetID uint) bool {
	for _, t := range s.trades {
		if t.AssetID == assetID && t.Status == models.StatusPending {
			return true
		}
	}
	return false
}

// StatusHistory returns every status a trade has been in, oldest first.
func (s *Store) StatusHistory(id uint) []models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Status(nil), s.history[id]...)
}

// Trades returns a snapshot of all trade records in id order.
func (s *Store) Trades() []*models.TradeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.TradeRecord, 0, len(s.trades))
	for _, t := range s.trades {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Assets returns a snapshot of the registry.
func (s *Store) Assets() []*models.AssetRegistry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AssetRegistry, 0, len(s.assets))
	for _, a := range s.assets {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) RunMigrations(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
