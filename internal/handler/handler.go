package handler

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/user/reelist/internal/config"
	"github.com/user/reelist/internal/middleware"
	"github.com/user/reelist/internal/model"
	"github.com/user/reelist/internal/repository"
	"github.com/user/reelist/internal/service"
)

// Handler HTTP 处理器
type Handler struct {
	Repos     *repository.Repositories
	Config    *config.Config
	TMDB      *service.TMDBService
	Watchlist *service.WatchlistService
}

// NewHandler 创建处理器
func NewHandler(repos *repository.Repositories, cfg *config.Config) *Handler {
	tmdb := service.NewTMDBService(cfg)

	return &Handler{
		Repos:     repos,
		Config:    cfg,
		TMDB:      tmdb,
		Watchlist: service.NewWatchlistService(tmdb, repos),
	}
}

// RenderData 统一封装公共渲染数据
func (h *Handler) RenderData(c *gin.Context, data gin.H) gin.H {
	res := gin.H{
		"SiteName":     h.Config.SiteName,
		"SiteUrl":      h.Config.SiteUrl,
		"ImageBaseURL": h.Config.ImageBaseURL,
		"Path":         c.Request.URL.Path,
	}

	// 注入用户信息
	session := sessions.Default(c)
	if userinfo := session.Get("userinfo"); userinfo != nil {
		if su, ok := userinfo.(model.SessionUser); ok {
			res["UserInfo"] = su
		}
	}

	for k, v := range data {
		res[k] = v
	}

	return res
}

// parsePage 防御性解析页码，坏输入回落到第 1 页
func parsePage(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// ==================== 公开页面 ====================

// Home 首页：全类型热门
func (h *Handler) Home(c *gin.Context) {
	items, _, err := h.TMDB.ListByCategory("", 1)
	if err != nil {
		service.LogSourceError("首页热门", 0, err)
		items = nil
	}

	c.HTML(http.StatusOK, "home.html", h.RenderData(c, gin.H{
		"Title":  h.Config.SiteName + " - 发现好电影",
		"Movies": items,
	}))
}

// Movies 分类浏览页，支持分页和排序
func (h *Handler) Movies(c *gin.Context) {
	category := c.Query("category")
	page := parsePage(c)
	sortKey := c.Query("sort")
	order := c.DefaultQuery("order", "desc")

	items, totalPages, err := h.TMDB.ListByCategory(category, page)
	if err != nil {
		service.LogSourceError("分类浏览", 0, err)
		items = nil
		totalPages = 1
	}

	sortItems(items, sortKey, order)

	c.HTML(http.StatusOK, "movies.html", h.RenderData(c, gin.H{
		"Title":       "浏览 - " + h.Config.SiteName,
		"Movies":      items,
		"Category":    category,
		"CurrentPage": page,
		"TotalPages":  totalPages,
		"Sort":        sortKey,
		"Order":       order,
	}))
}

// sortItems 服务端排序，作用在归一化后的记录上
func sortItems(items []*model.MediaItem, sortKey, order string) {
	if sortKey == "" {
		return
	}

	var less func(a, b *model.MediaItem) bool
	switch sortKey {
	case "rating":
		less = func(a, b *model.MediaItem) bool { return a.Rating < b.Rating }
	case "release_date":
		less = func(a, b *model.MediaItem) bool {
			return parseReleaseDate(a.ReleaseDate).Before(parseReleaseDate(b.ReleaseDate))
		}
	case "popularity":
		less = func(a, b *model.MediaItem) bool { return a.Popularity < b.Popularity }
	default:
		return
	}

	sort.SliceStable(items, func(i, j int) bool {
		if order == "desc" {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

// parseReleaseDate 解析失败按最早时间处理，排序时沉底
func parseReleaseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MovieDetails 电影详情页
func (h *Handler) MovieDetails(c *gin.Context) {
	h.details(c, service.MediaTypeMovie)
}

// TVDetails 剧集详情页
func (h *Handler) TVDetails(c *gin.Context) {
	h.details(c, service.MediaTypeTV)
}

func (h *Handler) details(c *gin.Context, mediaType string) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusNotFound, "404.html", h.RenderData(c, gin.H{"Title": "页面不存在"}))
		return
	}

	item, err := h.TMDB.FetchByID(id, mediaType)
	if err != nil {
		service.LogSourceError("详情页", id, err)
		// 数据源不可用时退回本地缓存，还能渲染就不报错
		if cached, _ := h.Repos.Movie.FindByID(id); cached != nil {
			item = mediaItemFromMovie(cached, mediaType)
		}
	}
	if item == nil {
		c.HTML(http.StatusNotFound, "404.html", h.RenderData(c, gin.H{"Title": "页面不存在"}))
		return
	}

	var trailerKey string
	if trailer, err := h.TMDB.FetchTrailer(id, mediaType); err == nil && trailer != nil {
		trailerKey = trailer.Key
		// 本地已缓存该影片时顺手回填预告片地址
		if cached, _ := h.Repos.Movie.FindByID(id); cached != nil {
			url := "https://www.youtube.com/watch?v=" + trailer.Key
			if cached.TrailerURL == nil || *cached.TrailerURL != url {
				if err := h.Repos.Movie.UpdateTrailerURL(id, url); err != nil {
					service.LogSourceError("回填预告片", id, err)
				}
			}
		}
	}

	userID := middleware.GetUserIDOrGuest(c)
	var myRating float64
	var rated bool
	if r, err := h.Watchlist.GetUserRating(userID, id, mediaType); err == nil && r != nil {
		myRating = r.RatingValue
		rated = true
	}
	summary, err := h.Watchlist.GetRatingSummary(id, mediaType)
	if err != nil {
		summary = &model.RatingSummary{}
	}

	inWatchlist, _ := h.Repos.Watchlist.Exists(userID, id)

	c.HTML(http.StatusOK, "movie_details.html", h.RenderData(c, gin.H{
		"Title":        item.Title + " - " + h.Config.SiteName,
		"Item":         item,
		"TrailerKey":   trailerKey,
		"MyRating":     myRating,
		"Rated":        rated,
		"AvgRating":    summary.Average,
		"RatingsCount": summary.Count,
		"InWatchlist":  inWatchlist,
	}))
}

// mediaItemFromMovie 用本地缓存行拼出详情页记录
func mediaItemFromMovie(m *model.Movie, mediaType string) *model.MediaItem {
	if m.Category != nil && m.Category.Name != "" {
		mediaType = m.Category.Name
	}
	return &model.MediaItem{
		ID:          m.ID,
		Title:       m.Title,
		Overview:    m.Overview,
		PosterPath:  m.PosterPath,
		Rating:      m.Rating,
		ReleaseDate: m.ReleaseDate,
		MediaType:   mediaType,
	}
}

// Search 搜索结果页
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}
	page := parsePage(c)

	items, totalPages, err := h.TMDB.Search(query, page)
	if err != nil {
		service.LogSourceError("搜索", 0, err)
		items = nil
		totalPages = 1
	}

	c.HTML(http.StatusOK, "search.html", h.RenderData(c, gin.H{
		"Title":       query + " - 搜索 - " + h.Config.SiteName,
		"Movies":      items,
		"Query":       query,
		"CurrentPage": page,
		"TotalPages":  totalPages,
	}))
}

// WatchlistPage 想看清单页
func (h *Handler) WatchlistPage(c *gin.Context) {
	userID := middleware.GetUserIDOrGuest(c)

	items, err := h.Watchlist.ListWatchlist(userID)
	if err != nil {
		items = nil
	}

	c.HTML(http.StatusOK, "watchlist.html", h.RenderData(c, gin.H{
		"Title": "我的想看 - " + h.Config.SiteName,
		"Items": items,
	}))
}

// ==================== 认证 ====================

// LoginPage 登录页
func (h *Handler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", h.RenderData(c, gin.H{
		"Title": "登录 - " + h.Config.SiteName,
	}))
}

// Login 处理登录
func (h *Handler) Login(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	user, err := h.Repos.User.FindByEmail(email)
	if err != nil || user == nil || !h.Repos.User.CheckPassword(user, password) {
		c.HTML(http.StatusOK, "login.html", h.RenderData(c, gin.H{
			"Title": "登录 - " + h.Config.SiteName,
			"Error": "邮箱或密码错误",
		}))
		return
	}

	h.establishSession(c, user)

	redirect := c.DefaultQuery("redirect", "/")
	c.Redirect(http.StatusFound, redirect)
}

// RegisterPage 注册页
func (h *Handler) RegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", h.RenderData(c, gin.H{
		"Title": "注册 - " + h.Config.SiteName,
	}))
}

// Register 处理注册
func (h *Handler) Register(c *gin.Context) {
	email := c.PostForm("email")
	username := c.PostForm("username")
	password := c.PostForm("password")

	renderError := func(msg string) {
		c.HTML(http.StatusOK, "register.html", h.RenderData(c, gin.H{
			"Title": "注册 - " + h.Config.SiteName,
			"Error": msg,
		}))
	}

	if email == "" || password == "" {
		renderError("邮箱和密码不能为空")
		return
	}
	if username == "" {
		username = email
	}

	existing, err := h.Repos.User.FindByEmail(email)
	if err != nil {
		renderError("注册失败，请稍后重试")
		return
	}
	if existing != nil {
		renderError("该邮箱已注册")
		return
	}

	user, err := h.Repos.User.Create(email, username, password)
	if err != nil {
		renderError("注册失败，请稍后重试")
		return
	}

	h.establishSession(c, user)
	c.Redirect(http.StatusFound, "/")
}

// Logout 退出登录
func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.SetCookie("token", "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

// establishSession 下发 JWT Cookie 并写入 Session 用户信息
func (h *Handler) establishSession(c *gin.Context, user *model.User) {
	token, err := middleware.GenerateToken(user.ID, user.Email, user.Username, h.Config.AppSecret, h.Config.JWTExpiry)
	if err == nil {
		c.SetCookie("token", token, int(h.Config.JWTExpiry.Seconds()), "/", "", false, true)
	}

	session := sessions.Default(c)
	session.Set("userinfo", model.SessionUser{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	_ = session.Save()
}
