package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/user/reelist/internal/model"
	"gorm.io/gorm"
)

// InitDB 初始化数据库连接并完成建表
func InitDB(dbPath string) (*gorm.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	// 外键约束默认关闭且是逐连接的状态，必须放进 DSN
	// 让连接池里的每条新连接都自动打开，WatchlistItem 的级联删除依赖它
	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite 单写者，连接池保持小规模即可
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate 建表并写入引导数据，幂等：每次启动都可以安全调用
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Movie{},
		&model.WatchlistItem{},
		&model.Rating{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	// 引导游客用户（ID=1），未登录浏览时挂在它名下
	guest := &model.User{
		ID:       model.GuestUserID,
		Username: "guest",
		Email:    "guest@example.com",
	}
	if err := db.Where("id = ?", model.GuestUserID).FirstOrCreate(guest).Error; err != nil {
		return fmt.Errorf("初始化游客用户失败: %w", err)
	}

	return nil
}

// Repositories 仓库集合
type Repositories struct {
	DB        *gorm.DB
	User      *UserRepository
	Category  *CategoryRepository
	Movie     *MovieRepository
	Watchlist *WatchlistRepository
	Rating    *RatingRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:        db,
		User:      NewUserRepository(db),
		Category:  NewCategoryRepository(db),
		Movie:     NewMovieRepository(db),
		Watchlist: NewWatchlistRepository(db),
		Rating:    NewRatingRepository(db),
	}
}
