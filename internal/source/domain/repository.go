package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, source *Source) error
	Update(ctx context.Context, db *gorm.DB, source *Source) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Source, error)
	List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]Source, error)
}
