package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// documentRow is the single table backing every collection: a composite key
// of (collection, id), the JSON body, and the optimistic version counter.
type documentRow struct {
	Collection string         `gorm:"primaryKey;size:64"`
	ID         string         `gorm:"primaryKey;size:36"`
	Doc        datatypes.JSON `gorm:"not null"`
	Version    int64          `gorm:"not null"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

func (documentRow) TableName() string { return "documents" }

// GormStore implements Store on a relational database through GORM, storing
// documents as JSON rows. Transactions map to database transactions;
// version-guarded updates turn lost-update races into ErrWriteConflict.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a Postgres-backed store and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return NewGormStoreFromDB(db)
}

// NewGormStoreFromDB wraps an already-open GORM handle. Tests use this with
// the sqlite driver.
func NewGormStoreFromDB(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// WithTransaction runs fn inside one database transaction. GORM rolls back
// on error or panic from fn.
func (s *GormStore) WithTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&gormTx{db: gtx, reads: make(map[docKey]int64)})
	})
}

// View returns a Tx whose operations commit individually.
func (s *GormStore) View() Tx {
	return &gormTx{db: s.db, reads: make(map[docKey]int64)}
}

type gormTx struct {
	db    *gorm.DB
	reads map[docKey]int64
}

func (t *gormTx) Get(ctx context.Context, collection, id string) (Doc, error) {
	var row documentRow
	err := t.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Doc{}, ErrNotFound
		}
		return Doc{}, err
	}
	t.noteRead(docKey{collection, id}, row.Version)
	return Doc{ID: row.ID, Version: row.Version, Data: []byte(row.Doc)}, nil
}

func (t *gormTx) Find(ctx context.Context, collection, field string, value any) ([]Doc, error) {
	var rows []documentRow
	err := t.db.WithContext(ctx).
		Where("collection = ?", collection).
		Where(datatypes.JSONQuery("doc").Equals(value, field)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return t.toDocs(collection, rows), nil
}

func (t *gormTx) List(ctx context.Context, collection string) ([]Doc, error) {
	var rows []documentRow
	err := t.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return t.toDocs(collection, rows), nil
}

func (t *gormTx) Insert(ctx context.Context, collection string, data []byte) (string, error) {
	row := documentRow{
		Collection: collection,
		ID:         uuid.NewString(),
		Doc:        datatypes.JSON(data),
		Version:    1,
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}
	t.noteRead(docKey{collection, row.ID}, 1)
	return row.ID, nil
}

func (t *gormTx) Replace(ctx context.Context, collection, id string, data []byte) error {
	expected, err := t.expectedVersion(ctx, collection, id)
	if err != nil {
		return err
	}
	res := t.db.WithContext(ctx).Model(&documentRow{}).
		Where("collection = ? AND id = ? AND version = ?", collection, id, expected).
		Updates(map[string]any{
			"doc":        datatypes.JSON(data),
			"version":    expected + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return t.classifyMiss(ctx, collection, id)
	}
	t.reads[docKey{collection, id}] = expected + 1
	return nil
}

func (t *gormTx) Delete(ctx context.Context, collection, id string) error {
	expected, err := t.expectedVersion(ctx, collection, id)
	if err != nil {
		return err
	}
	res := t.db.WithContext(ctx).
		Where("collection = ? AND id = ? AND version = ?", collection, id, expected).
		Delete(&documentRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return t.classifyMiss(ctx, collection, id)
	}
	delete(t.reads, docKey{collection, id})
	return nil
}

// expectedVersion returns the version this Tx previously observed for the
// document, reading it first when the caller skipped the read.
func (t *gormTx) expectedVersion(ctx context.Context, collection, id string) (int64, error) {
	if v, ok := t.reads[docKey{collection, id}]; ok {
		return v, nil
	}
	doc, err := t.Get(ctx, collection, id)
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

// classifyMiss distinguishes a vanished document from a version mismatch
// after a guarded write matched zero rows.
func (t *gormTx) classifyMiss(ctx context.Context, collection, id string) error {
	var count int64
	err := t.db.WithContext(ctx).Model(&documentRow{}).
		Where("collection = ? AND id = ?", collection, id).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrWriteConflict
}

func (t *gormTx) noteRead(k docKey, version int64) {
	if _, seen := t.reads[k]; !seen {
		t.reads[k] = version
	}
}

func (t *gormTx) toDocs(collection string, rows []documentRow) []Doc {
	docs := make([]Doc, 0, len(rows))
	for _, row := range rows {
		t.noteRead(docKey{collection, row.ID}, row.Version)
		docs = append(docs, Doc{ID: row.ID, Version: row.Version, Data: []byte(row.Doc)})
	}
	return docs
}
