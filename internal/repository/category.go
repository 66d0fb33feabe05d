package repository

import (
	"errors"

	"github.com/user/reelist/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// LookupOrCreate 按名称查找类别，不存在则创建并返回 ID
// 并发创建同名类别时靠唯一约束兜底：插入被吞掉后回读一次，而不是报错。
func (r *CategoryRepository) LookupOrCreate(name string) (int, error) {
	var cat model.Category
	err := r.db.Where("name = ?", name).First(&cat).Error
	if err == nil {
		return cat.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	cat = model.Category{Name: name}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&cat).Error; err != nil {
		return 0, err
	}
	if cat.ID != 0 {
		return cat.ID, nil
	}

	// 插入与别的调用方冲突，重新查一次拿已存在的行
	if err := r.db.Where("name = ?", name).First(&cat).Error; err != nil {
		return 0, err
	}
	return cat.ID, nil
}

// FindByID 根据 ID 查找类别
func (r *CategoryRepository) FindByID(id int) (*model.Category, error) {
	var cat model.Category
	err := r.db.First(&cat, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}
