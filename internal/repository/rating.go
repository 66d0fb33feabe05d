package repository

import (
	"errors"
	"time"

	"github.com/user/reelist/internal/model"
	"gorm.io/gorm"
)

type RatingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Upsert 更新或插入评分
// 先按唯一键 (user_id, tmdb_id, media_type) 更新，零行命中再插入，"还没评过分"不是错误。
func (r *RatingRepository) Upsert(userID, tmdbID int, mediaType string, value float64) error {
	tx := r.db.Model(&model.Rating{}).
		Where("user_id = ? AND tmdb_id = ? AND media_type = ?", userID, tmdbID, mediaType).
		Updates(map[string]interface{}{
			"rating_value": value,
			"updated_at":   time.Now(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		return nil
	}

	now := time.Now()
	return r.db.Create(&model.Rating{
		UserID:      userID,
		TMDBID:      tmdbID,
		MediaType:   mediaType,
		RatingValue: value,
		CreatedAt:   now,
		UpdatedAt:   now,
	}).Error
}

// FindUserRating 查找用户对某个条目的评分，未评分返回 nil
func (r *RatingRepository) FindUserRating(userID, tmdbID int, mediaType string) (*model.Rating, error) {
	var rating model.Rating
	err := r.db.Where("user_id = ? AND tmdb_id = ? AND media_type = ?", userID, tmdbID, mediaType).
		First(&rating).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

// Summary 聚合某个条目的平均分和评分人数，无评分时返回 (0, 0)
func (r *RatingRepository) Summary(tmdbID int, mediaType string) (*model.RatingSummary, error) {
	var result model.RatingSummary
	err := r.db.Model(&model.Rating{}).
		Select("COALESCE(AVG(rating_value), 0) AS average, COUNT(*) AS count").
		Where("tmdb_id = ? AND media_type = ?", tmdbID, mediaType).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}
