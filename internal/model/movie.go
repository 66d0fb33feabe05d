package model

// Category 媒体类型查找表（movie / tv），首次使用时惰性创建
type Category struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name" gorm:"unique"`
}

// Movie 本地缓存的影片元数据
// 主键是 TMDB 的外部 ID，不是本地自增序列：这是一张按外部标识键入的缓存表。
type Movie struct {
	ID          int       `json:"id" db:"id" gorm:"primaryKey;autoIncrement:false"`
	Title       string    `json:"title" db:"title"`
	Overview    string    `json:"overview" db:"overview"`
	Rating      float64   `json:"rating" db:"rating"`
	ReleaseDate string    `json:"release_date" db:"release_date"`
	CategoryID  int       `json:"category_id" db:"category_id"`
	Category    *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	PosterPath  string    `json:"poster_path" db:"poster_path"`
	TrailerURL  *string   `json:"trailer_url" db:"trailer_url"`
}

// MediaItem 外部数据源返回的统一元数据记录
// 适配器负责把 movie/tv 两种响应归一到这一个形状，调用方不再做字段嗅探。
type MediaItem struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  string  `json:"poster_path"`
	Rating      float64 `json:"rating"`
	ReleaseDate string  `json:"release_date"`
	MediaType   string  `json:"media_type"`
	Popularity  float64 `json:"popularity"`
}

// PosterURL 拼接完整海报地址，无海报时返回空串
func (m *MediaItem) PosterURL(imageBaseURL string) string {
	if m.PosterPath == "" {
		return ""
	}
	return imageBaseURL + m.PosterPath
}

// Video 预告片引用（来自外部数据源的视频条目）
type Video struct {
	Key  string `json:"key"`
	Site string `json:"site"`
	Name string `json:"name"`
	Type string `json:"type"`
}
