package repository

import (
	"errors"

	"github.com/user/reelist/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Upsert 按外部 ID 插入或整行替换，后写覆盖，不做字段合并
func (r *MovieRepository) Upsert(movie *model.Movie) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(movie).Error
}

// FindByID 根据外部 ID 查找本地缓存的影片，未缓存返回 nil
func (r *MovieRepository) FindByID(id int) (*model.Movie, error) {
	var movie model.Movie
	err := r.db.Preload("Category").First(&movie, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// UpdateTrailerURL 回填预告片地址
func (r *MovieRepository) UpdateTrailerURL(id int, url string) error {
	return r.db.Model(&model.Movie{}).Where("id = ?", id).Update("trailer_url", url).Error
}
