package model

import (
	"time"
)

// WatchlistItem 想看清单条目，(user_id, movie_id) 唯一
type WatchlistItem struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id" gorm:"uniqueIndex:idx_watchlist_user_movie"`
	MovieID   int       `json:"movie_id" db:"movie_id" gorm:"uniqueIndex:idx_watchlist_user_movie"`
	DateAdded time.Time `json:"date_added" db:"date_added"`
	User      *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Movie     *Movie    `json:"movie,omitempty" gorm:"foreignKey:MovieID;constraint:OnDelete:CASCADE"`
}

// Rating 用户评分，(user_id, tmdb_id, media_type) 唯一
// tmdb_id 故意不是外键：即使本地没有对应 Movie 行，评分也要能落库。
type Rating struct {
	ID          int       `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id" gorm:"uniqueIndex:idx_rating_user_item"`
	TMDBID      int       `json:"tmdb_id" db:"tmdb_id" gorm:"column:tmdb_id;uniqueIndex:idx_rating_user_item"`
	MediaType   string    `json:"media_type" db:"media_type" gorm:"uniqueIndex:idx_rating_user_item"`
	RatingValue float64   `json:"rating_value" db:"rating_value"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// RatingSummary 某个条目的评分聚合结果
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
