package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/cielolabs/costwatch/internal/source/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, source *domain.Source) error {
	return db.WithContext(ctx).Create(source).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, source *domain.Source) error {
	return db.WithContext(ctx).
		Model(&domain.Source{}).
		Where("id = ?", source.ID).
		Updates(map[string]any{
			"name":              source.Name,
			"base_locator":      source.BaseLocator,
			"active":            source.Active,
			"last_attempted_at": source.LastAttemptedAt,
			"last_imported_at":  source.LastImportedAt,
			"status":            source.Status,
			"updated_at":        source.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Source, error) {
	var source domain.Source
	err := db.WithContext(ctx).First(&source, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &source, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]domain.Source, error) {
	var sources []domain.Source
	stmt := db.WithContext(ctx).Model(&domain.Source{})
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	err := stmt.Order("name asc, id asc").Find(&sources).Error
	if err != nil {
		return nil, err
	}
	return sources, nil
}
