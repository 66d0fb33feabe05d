package repository

import (
	"time"

	"github.com/user/reelist/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WatchlistRepository struct {
	db *gorm.DB
}

func NewWatchlistRepository(db *gorm.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Add 添加想看条目，返回本次是否真正插入了新行
// 两个并发请求同时插入同一条目时，只有一个生效，另一个命中唯一约束后按"已存在"处理。
func (r *WatchlistRepository) Add(userID, movieID int) (inserted bool, err error) {
	item := &model.WatchlistItem{
		UserID:    userID,
		MovieID:   movieID,
		DateAdded: time.Now(),
	}
	tx := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(item)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Remove 删除想看条目，条目不存在也算成功
func (r *WatchlistRepository) Remove(userID, movieID int) error {
	return r.db.Where("user_id = ? AND movie_id = ?", userID, movieID).Delete(&model.WatchlistItem{}).Error
}

// Exists 检查条目是否已在清单中
func (r *WatchlistRepository) Exists(userID, movieID int) (bool, error) {
	var count int64
	err := r.db.Model(&model.WatchlistItem{}).Where("user_id = ? AND movie_id = ?", userID, movieID).Count(&count).Error
	return count > 0, err
}

// ListByUser 获取用户想看清单，按加入时间倒序
func (r *WatchlistRepository) ListByUser(userID int) ([]*model.WatchlistItem, error) {
	var items []*model.WatchlistItem
	err := r.db.Preload("Movie").Preload("Movie.Category").
		Where("user_id = ?", userID).
		Order("date_added DESC").
		Find(&items).Error
	return items, err
}

// CountByUser 统计用户想看清单数量
func (r *WatchlistRepository) CountByUser(userID int) (int, error) {
	var count int64
	err := r.db.Model(&model.WatchlistItem{}).Where("user_id = ?", userID).Count(&count).Error
	return int(count), err
}
