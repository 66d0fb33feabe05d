package repository_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/reelist/internal/model"
	"github.com/user/reelist/internal/repository"
	"gorm.io/gorm"
)

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := repository.InitDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("初始化数据库失败: %v", err)
	}
	return repository.NewRepositories(db)
}

func TestMigrateSeedsGuestUser(t *testing.T) {
	repos := newTestRepos(t)

	guest, err := repos.User.FindByID(model.GuestUserID)
	if err != nil {
		t.Fatalf("查找游客用户失败: %v", err)
	}
	if guest == nil {
		t.Fatalf("游客用户未初始化")
	}
	if guest.Username != "guest" {
		t.Fatalf("游客用户名不对: %q", guest.Username)
	}

	// 迁移必须幂等，重复执行不报错也不产生重复数据
	if err := repository.Migrate(repos.DB); err != nil {
		t.Fatalf("重复迁移失败: %v", err)
	}
	count, err := repos.User.Count()
	if err != nil {
		t.Fatalf("统计用户失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("期望 1 个用户，实际 %d", count)
	}
}

func TestForeignKeysOnEveryPooledConnection(t *testing.T) {
	repos := newTestRepos(t)

	sqlDB, err := repos.DB.DB()
	if err != nil {
		t.Fatalf("获取连接池失败: %v", err)
	}

	// SQLite 的 pragma 是逐连接的状态，同时占住多条连接逐一检查，
	// 保证不是只有初始化时用过的那条连接开了外键约束
	ctx := context.Background()
	conns := make([]*sql.Conn, 0, 3)
	for i := 0; i < 3; i++ {
		conn, err := sqlDB.Conn(ctx)
		if err != nil {
			t.Fatalf("取出第 %d 条连接失败: %v", i+1, err)
		}
		conns = append(conns, conn)
	}
	defer func() {
		for _, conn := range conns {
			conn.Close()
		}
	}()

	for i, conn := range conns {
		var on int
		if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
			t.Fatalf("查询第 %d 条连接的外键状态失败: %v", i+1, err)
		}
		if on != 1 {
			t.Fatalf("第 %d 条连接未开启外键约束", i+1)
		}
	}
}

func TestWatchlistCascadeDeletes(t *testing.T) {
	repos := newTestRepos(t)
	seedMovie(t, repos, 100, "Movie A")

	if _, err := repos.Watchlist.Add(model.GuestUserID, 100); err != nil {
		t.Fatalf("添加失败: %v", err)
	}

	// 删除影片，挂在它下面的想看条目应级联删除
	if err := repos.DB.Delete(&model.Movie{}, 100).Error; err != nil {
		t.Fatalf("删除影片失败: %v", err)
	}
	count, err := repos.Watchlist.CountByUser(model.GuestUserID)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if count != 0 {
		t.Fatalf("删除影片后想看条目应级联删除，剩 %d 条", count)
	}

	// 删除用户亦然
	seedMovie(t, repos, 200, "Movie B")
	if _, err := repos.Watchlist.Add(model.GuestUserID, 200); err != nil {
		t.Fatalf("添加失败: %v", err)
	}
	if err := repos.DB.Delete(&model.User{}, model.GuestUserID).Error; err != nil {
		t.Fatalf("删除用户失败: %v", err)
	}
	count, err = repos.Watchlist.CountByUser(model.GuestUserID)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if count != 0 {
		t.Fatalf("删除用户后想看条目应级联删除，剩 %d 条", count)
	}
}

func TestUserCreateAndPassword(t *testing.T) {
	repos := newTestRepos(t)

	user, err := repos.User.Create("alice@example.com", "alice", "secret123")
	if err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	if user.PasswordHash == "secret123" {
		t.Fatalf("密码没有做哈希")
	}

	found, err := repos.User.FindByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("按邮箱查找失败: %v", err)
	}
	if found == nil {
		t.Fatalf("没找到刚创建的用户")
	}
	if !repos.User.CheckPassword(found, "secret123") {
		t.Fatalf("正确密码校验失败")
	}
	if repos.User.CheckPassword(found, "wrong") {
		t.Fatalf("错误密码不应通过校验")
	}

	missing, err := repos.User.FindByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("查找不存在用户返回错误: %v", err)
	}
	if missing != nil {
		t.Fatalf("不存在的用户应返回 nil")
	}
}

func TestCategoryLookupOrCreateReuses(t *testing.T) {
	repos := newTestRepos(t)

	first, err := repos.Category.LookupOrCreate("movie")
	if err != nil {
		t.Fatalf("首次创建类别失败: %v", err)
	}
	second, err := repos.Category.LookupOrCreate("movie")
	if err != nil {
		t.Fatalf("重复查找类别失败: %v", err)
	}
	if first != second {
		t.Fatalf("同名类别返回了不同 ID: %d vs %d", first, second)
	}

	var count int64
	if err := repos.DB.Model(&model.Category{}).Where("name = ?", "movie").Count(&count).Error; err != nil {
		t.Fatalf("统计类别失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("同名类别出现 %d 行", count)
	}

	other, err := repos.Category.LookupOrCreate("tv")
	if err != nil {
		t.Fatalf("创建第二个类别失败: %v", err)
	}
	if other == first {
		t.Fatalf("不同类别不应共享 ID")
	}
}

func TestCategoryLookupOrCreateLosesInsertRace(t *testing.T) {
	repos := newTestRepos(t)

	// 在首查落空之后、插入执行之前，让别的写入者抢先建好同名类别，
	// 验证被唯一约束吞掉的插入会回读已存在的行而不是报错
	raced := false
	err := repos.DB.Callback().Create().Before("gorm:create").Register("race_category", func(tx *gorm.DB) {
		if raced {
			return
		}
		if _, ok := tx.Statement.Dest.(*model.Category); !ok {
			return
		}
		raced = true
		if err := repos.DB.Exec("INSERT INTO categories (name) VALUES (?)", "movie").Error; err != nil {
			t.Errorf("抢先插入失败: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("注册回调失败: %v", err)
	}
	defer repos.DB.Callback().Create().Remove("race_category")

	id, err := repos.Category.LookupOrCreate("movie")
	if err != nil {
		t.Fatalf("竞争下查找类别失败: %v", err)
	}
	if !raced {
		t.Fatalf("竞争写入没有触发")
	}

	var cat model.Category
	if err := repos.DB.Where("name = ?", "movie").First(&cat).Error; err != nil {
		t.Fatalf("回读类别失败: %v", err)
	}
	if id != cat.ID {
		t.Fatalf("应返回已存在行的 ID %d，实际 %d", cat.ID, id)
	}

	var count int64
	if err := repos.DB.Model(&model.Category{}).Where("name = ?", "movie").Count(&count).Error; err != nil {
		t.Fatalf("统计类别失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("竞争后同名类别出现 %d 行", count)
	}
}

func TestMovieUpsertReplacesAllFields(t *testing.T) {
	repos := newTestRepos(t)

	catID, err := repos.Category.LookupOrCreate("movie")
	if err != nil {
		t.Fatalf("创建类别失败: %v", err)
	}

	if err := repos.Movie.Upsert(&model.Movie{
		ID:         603,
		Title:      "旧标题",
		Overview:   "旧简介",
		Rating:     7.0,
		CategoryID: catID,
		PosterPath: "/old.jpg",
	}); err != nil {
		t.Fatalf("首次写入失败: %v", err)
	}

	if err := repos.Movie.Upsert(&model.Movie{
		ID:         603,
		Title:      "The Matrix",
		Rating:     8.7,
		CategoryID: catID,
		PosterPath: "/new.jpg",
	}); err != nil {
		t.Fatalf("整行替换失败: %v", err)
	}

	movie, err := repos.Movie.FindByID(603)
	if err != nil {
		t.Fatalf("查找影片失败: %v", err)
	}
	if movie == nil {
		t.Fatalf("没找到影片")
	}
	if movie.Title != "The Matrix" || movie.PosterPath != "/new.jpg" {
		t.Fatalf("字段未被替换: %+v", movie)
	}
	// 整行替换，不做字段合并：新记录没给的字段也要被覆盖
	if movie.Overview != "" {
		t.Fatalf("期望简介被清空，实际 %q", movie.Overview)
	}

	missing, err := repos.Movie.FindByID(999999)
	if err != nil {
		t.Fatalf("查找未缓存影片返回错误: %v", err)
	}
	if missing != nil {
		t.Fatalf("未缓存影片应返回 nil")
	}
}

func seedMovie(t *testing.T, repos *repository.Repositories, id int, title string) {
	t.Helper()
	catID, err := repos.Category.LookupOrCreate("movie")
	if err != nil {
		t.Fatalf("创建类别失败: %v", err)
	}
	if err := repos.Movie.Upsert(&model.Movie{ID: id, Title: title, CategoryID: catID}); err != nil {
		t.Fatalf("写入影片失败: %v", err)
	}
}

func TestWatchlistAddIsIdempotent(t *testing.T) {
	repos := newTestRepos(t)
	seedMovie(t, repos, 100, "Movie A")

	inserted, err := repos.Watchlist.Add(model.GuestUserID, 100)
	if err != nil {
		t.Fatalf("首次添加失败: %v", err)
	}
	if !inserted {
		t.Fatalf("首次添加应插入新行")
	}

	inserted, err = repos.Watchlist.Add(model.GuestUserID, 100)
	if err != nil {
		t.Fatalf("重复添加报错: %v", err)
	}
	if inserted {
		t.Fatalf("重复添加不应再插入")
	}

	count, err := repos.Watchlist.CountByUser(model.GuestUserID)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("期望 1 条想看记录，实际 %d", count)
	}
}

func TestWatchlistRemoveAbsentIsNoop(t *testing.T) {
	repos := newTestRepos(t)

	if err := repos.Watchlist.Remove(model.GuestUserID, 42); err != nil {
		t.Fatalf("删除不存在的条目不应报错: %v", err)
	}
	count, err := repos.Watchlist.CountByUser(model.GuestUserID)
	if err != nil {
		t.Fatalf("统计失败: %v", err)
	}
	if count != 0 {
		t.Fatalf("期望 0 条记录，实际 %d", count)
	}
}

func TestWatchlistListNewestFirst(t *testing.T) {
	repos := newTestRepos(t)
	seedMovie(t, repos, 1, "Old")
	seedMovie(t, repos, 2, "New")

	base := time.Now().Add(-time.Hour)
	for i, movieID := range []int{1, 2} {
		item := &model.WatchlistItem{
			UserID:    model.GuestUserID,
			MovieID:   movieID,
			DateAdded: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repos.DB.Create(item).Error; err != nil {
			t.Fatalf("写入想看记录失败: %v", err)
		}
	}

	items, err := repos.Watchlist.ListByUser(model.GuestUserID)
	if err != nil {
		t.Fatalf("获取清单失败: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("期望 2 条记录，实际 %d", len(items))
	}
	if items[0].MovieID != 2 {
		t.Fatalf("清单应按加入时间倒序，首条是 %d", items[0].MovieID)
	}
	if items[0].Movie == nil || items[0].Movie.Title != "New" {
		t.Fatalf("关联影片未填充: %+v", items[0].Movie)
	}
}

func TestRatingUpsertUpdatesInPlace(t *testing.T) {
	repos := newTestRepos(t)

	if err := repos.Rating.Upsert(model.GuestUserID, 550, "movie", 7.5); err != nil {
		t.Fatalf("首次评分失败: %v", err)
	}
	// 保证 updated_at 能拉开与 created_at 的差距
	time.Sleep(50 * time.Millisecond)
	if err := repos.Rating.Upsert(model.GuestUserID, 550, "movie", 9.0); err != nil {
		t.Fatalf("更新评分失败: %v", err)
	}

	var count int64
	if err := repos.DB.Model(&model.Rating{}).
		Where("user_id = ? AND tmdb_id = ? AND media_type = ?", model.GuestUserID, 550, "movie").
		Count(&count).Error; err != nil {
		t.Fatalf("统计评分失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("重复评分应更新而不是插入，实际 %d 行", count)
	}

	rating, err := repos.Rating.FindUserRating(model.GuestUserID, 550, "movie")
	if err != nil {
		t.Fatalf("查找评分失败: %v", err)
	}
	if rating == nil {
		t.Fatalf("没找到评分")
	}
	if rating.RatingValue != 9.0 {
		t.Fatalf("期望评分 9.0，实际 %v", rating.RatingValue)
	}
	if !rating.UpdatedAt.After(rating.CreatedAt) {
		t.Fatalf("更新后 updated_at (%v) 应晚于 created_at (%v)", rating.UpdatedAt, rating.CreatedAt)
	}

	// 同一条目不同媒体类型是独立的评分
	if err := repos.Rating.Upsert(model.GuestUserID, 550, "tv", 5.0); err != nil {
		t.Fatalf("tv 评分失败: %v", err)
	}
	tvRating, err := repos.Rating.FindUserRating(model.GuestUserID, 550, "tv")
	if err != nil || tvRating == nil {
		t.Fatalf("tv 评分未独立保存: %v", err)
	}
}

func TestRatingSummary(t *testing.T) {
	repos := newTestRepos(t)

	// 没有任何评分时返回 (0, 0)，而不是空结果
	summary, err := repos.Rating.Summary(777, "movie")
	if err != nil {
		t.Fatalf("空聚合失败: %v", err)
	}
	if summary.Average != 0 || summary.Count != 0 {
		t.Fatalf("期望 (0, 0)，实际 (%v, %d)", summary.Average, summary.Count)
	}

	alice, err := repos.User.Create("alice@example.com", "alice", "pw123456")
	if err != nil {
		t.Fatalf("创建用户失败: %v", err)
	}
	if err := repos.Rating.Upsert(model.GuestUserID, 777, "movie", 6.0); err != nil {
		t.Fatalf("评分失败: %v", err)
	}
	if err := repos.Rating.Upsert(alice.ID, 777, "movie", 8.0); err != nil {
		t.Fatalf("评分失败: %v", err)
	}

	summary, err = repos.Rating.Summary(777, "movie")
	if err != nil {
		t.Fatalf("聚合失败: %v", err)
	}
	if summary.Count != 2 {
		t.Fatalf("期望 2 人评分，实际 %d", summary.Count)
	}
	if summary.Average != 7.0 {
		t.Fatalf("期望平均分 7.0，实际 %v", summary.Average)
	}
}
