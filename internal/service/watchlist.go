package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/user/reelist/internal/model"
	"github.com/user/reelist/internal/repository"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 操作引用了本地不存在的用户
	ErrUserNotFound = errors.New("用户不存在")
	// ErrMovieDataUnavailable 外部数据源、本地缓存、调用方兜底数据全部落空
	ErrMovieDataUnavailable = errors.New("无法获得影片数据")
	// ErrPersistence 本地存储写入失败（非唯一约束冲突）
	ErrPersistence = errors.New("本地存储写入失败")
)

// FallbackFields 调用方提供的兜底元数据
// 外部数据源不可用时用它合成最小影片记录，保证想看功能照常可用。
type FallbackFields struct {
	Title       string
	PosterPath  string
	Rating      float64
	ReleaseDate string
	MediaType   string
}

// IsEmpty 没有任何一个非空字段时不参与兜底，媒体类型也算一个字段
func (f *FallbackFields) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.Title == "" && f.PosterPath == "" && f.Rating == 0 &&
		f.ReleaseDate == "" && f.MediaType == ""
}

// AddResult 添加想看的结果
type AddResult struct {
	AlreadyPresent bool
	Movie          *model.Movie
}

// WatchlistService 想看清单与评分的调和层
// 外部元数据的解析和本地写入都收口在这里。
type WatchlistService struct {
	source MetadataSource
	repos  *repository.Repositories
}

// NewWatchlistService 创建调和层服务
func NewWatchlistService(source MetadataSource, repos *repository.Repositories) *WatchlistService {
	return &WatchlistService{
		source: source,
		repos:  repos,
	}
}

// AddToWatchlist 把条目加入用户想看清单
// 影片记录的解析顺序：外部数据源 → 本地缓存 → 调用方兜底字段，三者全空才失败。
// 重复添加不是错误，返回 AlreadyPresent=true 且不产生重复行。
func (s *WatchlistService) AddToWatchlist(userID, externalID int, mediaTypeHint string, fallback *FallbackFields) (*AddResult, error) {
	user, err := s.repos.User.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	movie, mediaType, err := s.resolveMovie(externalID, mediaTypeHint, fallback)
	if err != nil {
		return nil, err
	}

	result := &AddResult{Movie: movie}

	// 影片行必须先于想看条目落库，链接的完整性依赖它，放在同一事务里
	err = s.repos.DB.Transaction(func(tx *gorm.DB) error {
		categoryID, err := repository.NewCategoryRepository(tx).LookupOrCreate(mediaType)
		if err != nil {
			return err
		}
		movie.CategoryID = categoryID

		if err := repository.NewMovieRepository(tx).Upsert(movie); err != nil {
			return err
		}

		inserted, err := repository.NewWatchlistRepository(tx).Add(userID, movie.ID)
		if err != nil {
			return err
		}
		result.AlreadyPresent = !inserted
		return nil
	})
	if err != nil {
		log.Printf("[Watchlist] 添加失败 (用户: %d, 条目: %d): %v", userID, externalID, err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return result, nil
}

// resolveMovie 三段式解析影片记录，返回记录和它的媒体类型
func (s *WatchlistService) resolveMovie(externalID int, mediaTypeHint string, fallback *FallbackFields) (*model.Movie, string, error) {
	// 1. 外部数据源。tv 提示只查 tv；movie 或无提示先查 movie，
	//    未命中且确实没给提示时再试 tv 做类型消歧。
	var item *model.MediaItem
	var err error
	if mediaTypeHint == MediaTypeTV {
		item, err = s.source.FetchByID(externalID, MediaTypeTV)
	} else {
		item, err = s.source.FetchByID(externalID, MediaTypeMovie)
		if err != nil && mediaTypeHint == "" {
			item, err = s.source.FetchByID(externalID, MediaTypeTV)
		}
	}
	if err != nil {
		LogSourceError("解析影片", externalID, err)
	}
	if item != nil {
		return &model.Movie{
			ID:          item.ID,
			Title:       item.Title,
			Overview:    item.Overview,
			Rating:      item.Rating,
			ReleaseDate: item.ReleaseDate,
			PosterPath:  item.PosterPath,
		}, item.MediaType, nil
	}

	// 2. 本地缓存，之前的操作可能已经缓存过这个条目
	cached, err := s.repos.Movie.FindByID(externalID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if cached != nil {
		mediaType := mediaTypeHint
		if cached.Category != nil && cached.Category.Name != "" {
			mediaType = cached.Category.Name
		}
		if mediaType == "" {
			mediaType = MediaTypeMovie
		}
		cached.Category = nil
		return cached, mediaType, nil
	}

	// 3. 调用方兜底字段，至少要有一个非空字段才算数
	if !fallback.IsEmpty() {
		mediaType := fallback.MediaType
		if mediaType == "" {
			mediaType = mediaTypeHint
		}
		if mediaType == "" {
			mediaType = MediaTypeMovie
		}
		return &model.Movie{
			ID:          externalID,
			Title:       fallback.Title,
			PosterPath:  fallback.PosterPath,
			Rating:      fallback.Rating,
			ReleaseDate: fallback.ReleaseDate,
		}, mediaType, nil
	}

	return nil, "", ErrMovieDataUnavailable
}

// RemoveFromWatchlist 把条目移出想看清单，条目本来不在也算成功
func (s *WatchlistService) RemoveFromWatchlist(userID, externalID int) error {
	user, err := s.repos.User.FindByID(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	if err := s.repos.Watchlist.Remove(userID, externalID); err != nil {
		log.Printf("[Watchlist] 移除失败 (用户: %d, 条目: %d): %v", userID, externalID, err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// ListWatchlist 获取用户想看清单，按加入时间倒序
func (s *WatchlistService) ListWatchlist(userID int) ([]*model.WatchlistItem, error) {
	user, err := s.repos.User.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	items, err := s.repos.Watchlist.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return items, nil
}

// UpsertRating 保存用户评分，返回实际存储的值
// 输入先夹到 [0, 10]，首次评分走插入路径，不算错误。
func (s *WatchlistService) UpsertRating(userID, externalID int, mediaType string, rawValue float64) (float64, error) {
	value := clampRating(rawValue)
	if err := s.repos.Rating.Upsert(userID, externalID, mediaType, value); err != nil {
		log.Printf("[Rating] 保存失败 (用户: %d, 条目: %d, 类型: %s): %v", userID, externalID, mediaType, err)
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return value, nil
}

// GetRatingSummary 获取条目的平均分和评分人数，无人评分返回 (0, 0)
func (s *WatchlistService) GetRatingSummary(externalID int, mediaType string) (*model.RatingSummary, error) {
	summary, err := s.repos.Rating.Summary(externalID, mediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return summary, nil
}

// GetUserRating 获取用户对某个条目的评分，未评分返回 nil
func (s *WatchlistService) GetUserRating(userID, externalID int, mediaType string) (*model.Rating, error) {
	rating, err := s.repos.Rating.FindUserRating(userID, externalID, mediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return rating, nil
}

// clampRating 评分一律夹到闭区间 [0, 10]
func clampRating(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
