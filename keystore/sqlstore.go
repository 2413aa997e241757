package keystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SQLStore is the origin of record backed by a relational database. It is
// deliberately dumb: no caching, no retries; the CachedStore in front of it
// absorbs the read load.
type SQLStore struct {
	db *gorm.DB
}

type keyModel struct {
	ID        string `gorm:"primaryKey"`
	OwnerID   string `gorm:"index"`
	APIID     string `gorm:"index"`
	KeyHash   string `gorm:"uniqueIndex"`
	Name      string
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (keyModel) TableName() string { return "api_keys" }

type apiModel struct {
	ID        string `gorm:"primaryKey"`
	OwnerID   string `gorm:"index"`
	Name      string
	CreatedAt time.Time
}

func (apiModel) TableName() string { return "apis" }

// grantModel holds one role or permission attached to a key.
type grantModel struct {
	ID    uint   `gorm:"primaryKey"`
	KeyID string `gorm:"index"`
	Kind  string // "role" or "permission"
	Value string
}

func (grantModel) TableName() string { return "key_grants" }

type usageModel struct {
	KeyID       string `gorm:"primaryKey"`
	WindowStart time.Time
	Requests    int64
}

func (usageModel) TableName() string { return "key_usage" }

// NewSQLStore creates a SQL-backed origin store.
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("keystore: db is nil")
	}
	return &SQLStore{db: db}, nil
}

// AutoMigrate creates or updates the schema.
func (s *SQLStore) AutoMigrate() error {
	return s.db.AutoMigrate(&apiModel{}, &keyModel{}, &grantModel{}, &usageModel{})
}

// GetKeyBundle implements Store.
func (s *SQLStore) GetKeyBundle(ctx context.Context, id string) (*KeyBundle, error) {
	var key keyModel
	if err := s.db.WithContext(ctx).First(&key, "id = ?", id).Error; err != nil {
		return nil, mapErr(err, "key %s", id)
	}

	var api apiModel
	if err := s.db.WithContext(ctx).First(&api, "id = ?", key.APIID).Error; err != nil {
		return nil, mapErr(err, "api %s for key %s", key.APIID, id)
	}

	var grants []grantModel
	if err := s.db.WithContext(ctx).Where("key_id = ?", id).Order("id").Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("keystore: grants for key %s: %w", id, err)
	}

	bundle := &KeyBundle{
		Key: APIKey{
			ID:        key.ID,
			OwnerID:   key.OwnerID,
			APIID:     key.APIID,
			KeyHash:   key.KeyHash,
			Name:      key.Name,
			Disabled:  key.Disabled,
			CreatedAt: key.CreatedAt,
			UpdatedAt: key.UpdatedAt,
		},
		API: API{
			ID:        api.ID,
			OwnerID:   api.OwnerID,
			Name:      api.Name,
			CreatedAt: api.CreatedAt,
		},
		Roles:       []string{},
		Permissions: []string{},
	}
	for _, g := range grants {
		switch g.Kind {
		case "role":
			bundle.Roles = append(bundle.Roles, g.Value)
		case "permission":
			bundle.Permissions = append(bundle.Permissions, g.Value)
		}
	}
	return bundle, nil
}

// ListKeysByOwner implements Store.
func (s *SQLStore) ListKeysByOwner(ctx context.Context, ownerID string) ([]KeySummary, error) {
	var keys []keyModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at").
		Find(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("keystore: keys for owner %s: %w", ownerID, err)
	}

	out := make([]KeySummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeySummary{ID: k.ID, APIID: k.APIID, Name: k.Name})
	}
	return out, nil
}

// GetAPI implements Store.
func (s *SQLStore) GetAPI(ctx context.Context, id string) (*API, error) {
	var api apiModel
	if err := s.db.WithContext(ctx).First(&api, "id = ?", id).Error; err != nil {
		return nil, mapErr(err, "api %s", id)
	}
	return &API{ID: api.ID, OwnerID: api.OwnerID, Name: api.Name, CreatedAt: api.CreatedAt}, nil
}

// GetUsage implements Store.
func (s *SQLStore) GetUsage(ctx context.Context, keyID string) (*Usage, error) {
	var usage usageModel
	if err := s.db.WithContext(ctx).First(&usage, "key_id = ?", keyID).Error; err != nil {
		return nil, mapErr(err, "usage for key %s", keyID)
	}
	return &Usage{KeyID: usage.KeyID, WindowStart: usage.WindowStart, Requests: usage.Requests}, nil
}

// SaveAPI inserts or updates an API record.
func (s *SQLStore) SaveAPI(ctx context.Context, api *API) error {
	model := apiModel{ID: api.ID, OwnerID: api.OwnerID, Name: api.Name, CreatedAt: api.CreatedAt}
	return s.db.WithContext(ctx).Save(&model).Error
}

// SaveKey inserts or updates a key with its grants. Existing grants for the
// key are replaced.
func (s *SQLStore) SaveKey(ctx context.Context, key *APIKey, roles, permissions []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := keyModel{
			ID:        key.ID,
			OwnerID:   key.OwnerID,
			APIID:     key.APIID,
			KeyHash:   key.KeyHash,
			Name:      key.Name,
			Disabled:  key.Disabled,
			CreatedAt: key.CreatedAt,
			UpdatedAt: key.UpdatedAt,
		}
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		if err := tx.Where("key_id = ?", key.ID).Delete(&grantModel{}).Error; err != nil {
			return err
		}
		for _, r := range roles {
			if err := tx.Create(&grantModel{KeyID: key.ID, Kind: "role", Value: r}).Error; err != nil {
				return err
			}
		}
		for _, p := range permissions {
			if err := tx.Create(&grantModel{KeyID: key.ID, Kind: "permission", Value: p}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveUsage inserts or updates a key's usage window.
func (s *SQLStore) SaveUsage(ctx context.Context, usage *Usage) error {
	model := usageModel{KeyID: usage.KeyID, WindowStart: usage.WindowStart, Requests: usage.Requests}
	return s.db.WithContext(ctx).Save(&model).Error
}

// DeleteKey removes a key and its grants.
func (s *SQLStore) DeleteKey(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("key_id = ?", id).Delete(&grantModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("key_id = ?", id).Delete(&usageModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&keyModel{}, "id = ?", id).Error
	})
}

func mapErr(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("keystore: "+format+": %w", append(args, err)...)
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
