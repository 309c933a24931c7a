package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("DOCUMENT_NOT_FOUND")

// Document 是 documents 表的行，content/version 只被防抖保存写入。
type Document struct {
	ID      string `gorm:"primaryKey;size:64"`
	OwnerID uint64 `gorm:"index"`
	Title   string `gorm:"size:255"`
	Content string `gorm:"type:longtext"`
	Version uint64
}

type DocumentStore struct{ db *gorm.DB }

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) LoadContent(ctx context.Context, docID string) (string, error) {
	var doc Document
	err := s.db.WithContext(ctx).Select("content").First(&doc, "id = ?", docID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrDocumentNotFound
	}
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

func (s *DocumentStore) SaveContent(ctx context.Context, docID, content string, version uint64) error {
	res := s.db.WithContext(ctx).Model(&Document{}).
		Where("id = ?", docID).
		Updates(map[string]any{"content": content, "version": version})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentStore) Create(ctx context.Context, ownerID uint64, docID, title string) error {
	return s.db.WithContext(ctx).Create(&Document{ID: docID, OwnerID: ownerID, Title: title}).Error
}
