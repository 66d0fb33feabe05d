package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/reelist/internal/middleware"
	"github.com/user/reelist/internal/service"
	"github.com/user/reelist/internal/utils"
)

// APIMovies 分类浏览 JSON 接口
func (h *Handler) APIMovies(c *gin.Context) {
	category := c.Query("category")
	page := parsePage(c)

	items, totalPages, err := h.TMDB.ListByCategory(category, page)
	if err != nil {
		service.LogSourceError("API分类浏览", 0, err)
		utils.Error(c, 502, "外部数据源不可用")
		return
	}

	utils.Success(c, gin.H{
		"movies":      items,
		"page":        page,
		"total_pages": totalPages,
		"has_more":    page < totalPages,
	})
}

// APISearch 搜索 JSON 接口
func (h *Handler) APISearch(c *gin.Context) {
	query := c.Query("q")
	page := parsePage(c)
	if query == "" {
		utils.Success(c, gin.H{"movies": []interface{}{}, "page": page, "has_more": false})
		return
	}

	items, totalPages, err := h.TMDB.Search(query, page)
	if err != nil {
		service.LogSourceError("API搜索", 0, err)
		utils.Error(c, 502, "外部数据源不可用")
		return
	}

	utils.Success(c, gin.H{
		"movies":      items,
		"page":        page,
		"total_pages": totalPages,
		"has_more":    page < totalPages,
	})
}

// AddWatchlist 添加想看
// 表单可以带兜底字段（title/poster_path/rating/release_date/media_type），
// 外部数据源挂掉时靠它们合成影片记录。
func (h *Handler) AddWatchlist(c *gin.Context) {
	movieID, err := strconv.Atoi(c.PostForm("movie_id"))
	if err != nil {
		utils.BadRequest(c, "缺少或非法的 movie_id")
		return
	}
	userID := middleware.GetUserIDOrGuest(c)

	mediaType := c.PostForm("media_type")
	if mediaType != "" && mediaType != service.MediaTypeMovie && mediaType != service.MediaTypeTV {
		utils.BadRequest(c, "非法的 media_type")
		return
	}

	fallbackRating, _ := strconv.ParseFloat(c.PostForm("rating"), 64)
	fallback := &service.FallbackFields{
		Title:       c.PostForm("title"),
		PosterPath:  c.PostForm("poster_path"),
		Rating:      fallbackRating,
		ReleaseDate: c.PostForm("release_date"),
		MediaType:   mediaType,
	}

	result, err := h.Watchlist.AddToWatchlist(userID, movieID, mediaType, fallback)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			utils.BadRequest(c, "用户不存在")
		case errors.Is(err, service.ErrMovieDataUnavailable):
			utils.Error(c, 502, "无法获得影片数据")
		default:
			utils.InternalServerError(c, "")
		}
		return
	}

	utils.Success(c, gin.H{
		"movie_id":        result.Movie.ID,
		"already_present": result.AlreadyPresent,
	})
}

// RemoveWatchlist 移除想看，条目本来不在也返回成功
func (h *Handler) RemoveWatchlist(c *gin.Context) {
	movieID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "非法的条目 ID")
		return
	}
	userID := middleware.GetUserIDOrGuest(c)

	if err := h.Watchlist.RemoveFromWatchlist(userID, movieID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			utils.BadRequest(c, "用户不存在")
			return
		}
		utils.InternalServerError(c, "")
		return
	}

	utils.Success(c, gin.H{"movie_id": movieID})
}

// RateMedia 提交评分
// 评分解析失败按 0 处理，存储前夹到 [0, 10]。
func (h *Handler) RateMedia(c *gin.Context) {
	mediaType := c.Param("media_type")
	if mediaType != service.MediaTypeMovie && mediaType != service.MediaTypeTV {
		utils.BadRequest(c, "非法的 media_type")
		return
	}
	tmdbID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "非法的条目 ID")
		return
	}
	userID := middleware.GetUserIDOrGuest(c)

	rawValue, err := strconv.ParseFloat(c.PostForm("rating"), 64)
	if err != nil {
		rawValue = 0
	}

	stored, err := h.Watchlist.UpsertRating(userID, tmdbID, mediaType, rawValue)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}

	summary, err := h.Watchlist.GetRatingSummary(tmdbID, mediaType)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}

	utils.Success(c, gin.H{
		"rating":  stored,
		"average": summary.Average,
		"count":   summary.Count,
	})
}

// RatingSummary 查询条目的评分聚合与我的评分
func (h *Handler) RatingSummary(c *gin.Context) {
	mediaType := c.Param("media_type")
	if mediaType != service.MediaTypeMovie && mediaType != service.MediaTypeTV {
		utils.BadRequest(c, "非法的 media_type")
		return
	}
	tmdbID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "非法的条目 ID")
		return
	}

	summary, err := h.Watchlist.GetRatingSummary(tmdbID, mediaType)
	if err != nil {
		utils.InternalServerError(c, "")
		return
	}

	res := gin.H{
		"average": summary.Average,
		"count":   summary.Count,
	}
	userID := middleware.GetUserIDOrGuest(c)
	if mine, err := h.Watchlist.GetUserRating(userID, tmdbID, mediaType); err == nil && mine != nil {
		res["my_rating"] = mine.RatingValue
	}

	utils.Success(c, res)
}
