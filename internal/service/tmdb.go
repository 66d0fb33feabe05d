package service

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/user/reelist/internal/config"
	"github.com/user/reelist/internal/model"
	"github.com/user/reelist/internal/utils"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound 外部数据源没有这个条目
	ErrNotFound = errors.New("条目不存在")
	// ErrSourceUnavailable 外部数据源不可用（网络、状态码或凭证问题）
	// 对调用方来说可以用本地缓存或调用方兜底数据恢复，不直接对用户报错。
	ErrSourceUnavailable = errors.New("外部数据源不可用")
)

// MediaTypeMovie / MediaTypeTV 外部数据源的两种媒体类型
const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// MetadataSource 外部影片元数据源
type MetadataSource interface {
	FetchByID(id int, mediaType string) (*model.MediaItem, error)
	FetchTrailer(id int, mediaType string) (*model.Video, error)
	ListByCategory(category string, page int) ([]*model.MediaItem, int, error)
	Search(query string, page int) ([]*model.MediaItem, int, error)
}

// TMDBService TMDB 数据源适配器，纯 I/O 边界，无本地状态
type TMDBService struct {
	client      *utils.HTTPClient
	apiKey      string
	baseURL     string
	group       singleflight.Group
	searchCache *utils.SearchCache[searchPage]
}

type searchPage struct {
	Items      []*model.MediaItem
	TotalPages int
}

// NewTMDBService 创建 TMDB 适配器，凭证和地址由配置注入
func NewTMDBService(cfg *config.Config) *TMDBService {
	return &TMDBService{
		client:      utils.NewHTTPClient(8 * time.Second),
		apiKey:      cfg.TMDBAPIKey,
		baseURL:     cfg.TMDBBaseURL,
		searchCache: utils.NewSearchCache[searchPage](1000, time.Hour),
	}
}

// tmdbItem movie 和 tv 两种响应的并集，归一化前的原始形状
type tmdbItem struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"` // 电视剧
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"` // 电视剧
	MediaType    string  `json:"media_type"`
	Popularity   float64 `json:"popularity"`
}

// normalize 把原始响应归一成统一的 MediaItem 记录
// 推断规则：带剧集风格日期字段的条目是 tv，其余按 movie 处理。
func (t *tmdbItem) normalize(fallbackType string) *model.MediaItem {
	mediaType := t.MediaType
	if mediaType == "" {
		mediaType = fallbackType
	}
	if mediaType == "" {
		if t.FirstAirDate != "" {
			mediaType = MediaTypeTV
		} else {
			mediaType = MediaTypeMovie
		}
	}

	title := t.Title
	if title == "" {
		title = t.Name
	}
	releaseDate := t.ReleaseDate
	if releaseDate == "" {
		releaseDate = t.FirstAirDate
	}

	return &model.MediaItem{
		ID:          t.ID,
		Title:       title,
		Overview:    t.Overview,
		PosterPath:  t.PosterPath,
		Rating:      t.VoteAverage,
		ReleaseDate: releaseDate,
		MediaType:   mediaType,
		Popularity:  t.Popularity,
	}
}

// getJSON 拼接地址并请求，统一折算错误类别
func (s *TMDBService) getJSON(endpoint string, params url.Values, target interface{}) error {
	if s.apiKey == "" {
		return fmt.Errorf("%w: 未配置 API 凭证", ErrSourceUnavailable)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", s.apiKey)
	params.Set("language", "en-US")

	err := s.client.GetJSON(s.baseURL+endpoint+"?"+params.Encode(), target)
	if err == nil {
		return nil
	}
	if errors.Is(err, utils.ErrStatusNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
}

// FetchByID 按外部 ID 获取单个条目的元数据
func (s *TMDBService) FetchByID(id int, mediaType string) (*model.MediaItem, error) {
	// singleflight 合并同一条目的并发请求
	key := mediaType + ":" + strconv.Itoa(id)
	val, err, _ := s.group.Do(key, func() (interface{}, error) {
		var raw tmdbItem
		if err := s.getJSON(fmt.Sprintf("/%s/%d", mediaType, id), nil, &raw); err != nil {
			return nil, err
		}
		return raw.normalize(mediaType), nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*model.MediaItem), nil
}

type tmdbVideosResponse struct {
	ID      int           `json:"id"`
	Results []model.Video `json:"results"`
}

// FetchTrailer 获取预告片引用，没有预告片时返回 nil 而不是错误
func (s *TMDBService) FetchTrailer(id int, mediaType string) (*model.Video, error) {
	var resp tmdbVideosResponse
	if err := s.getJSON(fmt.Sprintf("/%s/%d/videos", mediaType, id), nil, &resp); err != nil {
		return nil, err
	}

	// 优先 YouTube 上的正式预告片，退而求其次取第一条视频
	for i := range resp.Results {
		v := &resp.Results[i]
		if v.Site == "YouTube" && v.Type == "Trailer" {
			return v, nil
		}
	}
	if len(resp.Results) > 0 {
		return &resp.Results[0], nil
	}
	return nil, nil
}

type tmdbListResponse struct {
	Page       int        `json:"page"`
	Results    []tmdbItem `json:"results"`
	TotalPages int        `json:"total_pages"`
}

// ListByCategory 按分类获取条目列表，返回条目和总页数
func (s *TMDBService) ListByCategory(category string, page int) ([]*model.MediaItem, int, error) {
	cacheKey := fmt.Sprintf("tmdb:list:%s:%d", category, page)
	if cached, ok := utils.CacheGet(cacheKey); ok {
		p := cached.(searchPage)
		return p.Items, p.TotalPages, nil
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(page))

	var endpoint, fallbackType string
	switch category {
	case "Movie":
		endpoint = "/trending/movie/day"
		fallbackType = MediaTypeMovie
	case "Series":
		endpoint = "/trending/tv/day"
		fallbackType = MediaTypeTV
	case "Cartoon":
		endpoint = "/discover/movie"
		fallbackType = MediaTypeMovie
		params.Set("with_genres", "16")
	default:
		endpoint = "/trending/all/day"
	}

	var resp tmdbListResponse
	if err := s.getJSON(endpoint, params, &resp); err != nil {
		return nil, 0, err
	}

	items := make([]*model.MediaItem, 0, len(resp.Results))
	for i := range resp.Results {
		items = append(items, resp.Results[i].normalize(fallbackType))
	}
	totalPages := resp.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}

	utils.CacheSet(cacheKey, searchPage{Items: items, TotalPages: totalPages}, 5*time.Minute)
	return items, totalPages, nil
}

// Search 多类型自由文本搜索
func (s *TMDBService) Search(query string, page int) ([]*model.MediaItem, int, error) {
	cacheKey := fmt.Sprintf("search:%s:%d", query, page)
	if cached, ok := s.searchCache.Get(cacheKey); ok {
		return cached.Items, cached.TotalPages, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))

	var resp tmdbListResponse
	if err := s.getJSON("/search/multi", params, &resp); err != nil {
		return nil, 0, err
	}

	items := make([]*model.MediaItem, 0, len(resp.Results))
	for i := range resp.Results {
		raw := &resp.Results[i]
		// multi 搜索会混入人物条目，只保留影视结果
		if raw.MediaType != "" && raw.MediaType != MediaTypeMovie && raw.MediaType != MediaTypeTV {
			continue
		}
		items = append(items, raw.normalize(""))
	}
	totalPages := resp.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}

	s.searchCache.Set(cacheKey, searchPage{Items: items, TotalPages: totalPages})
	return items, totalPages, nil
}

// LogSourceError 记录数据源错误，不可用和不存在要在日志里区分开
func LogSourceError(op string, id int, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Printf("[TMDB] %s: 条目不存在 (ID: %d)", op, id)
	case errors.Is(err, ErrSourceUnavailable):
		log.Printf("[TMDB] %s: 数据源不可用 (ID: %d): %v", op, id, err)
	default:
		log.Printf("[TMDB] %s: 未知错误 (ID: %d): %v", op, id, err)
	}
}
