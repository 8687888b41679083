package repository

import (
	"strings"

	"github.com/threadline/storefront/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 购物用户数据访问接口
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Register(user *models.User) (*models.User, error)
}

// GormUserRepository GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓库
func NewUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// GetByID 根据 ID 获取用户
func (r *GormUserRepository) GetByID(id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	return firstOrNil[models.User](r.db, id)
}

// GetByEmail 根据邮箱获取用户（大小写不敏感）
func (r *GormUserRepository) GetByEmail(email string) (*models.User, error) {
	normalized := normalizeUserEmail(email)
	if normalized == "" {
		return nil, nil
	}
	return firstOrNil[models.User](r.db.Where("email = ?", normalized))
}

// Register 按 ID 幂等登记用户：并发首次访问时只有一方写入，其余读取已存在记录
func (r *GormUserRepository) Register(user *models.User) (*models.User, error) {
	user.Email = normalizeUserEmail(user.Email)
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(user).Error; err != nil {
		return nil, err
	}
	return r.GetByID(user.ID)
}

func normalizeUserEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
