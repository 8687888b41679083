package repository

import (
	"strings"
	"time"

	"github.com/threadline/storefront/internal/models"

	"gorm.io/gorm"
)

// AdminRepository 管理员数据访问接口
type AdminRepository interface {
	GetByUsername(username string) (*models.Admin, error)
	GetByID(id uint) (*models.Admin, error)
	Create(admin *models.Admin) error
	TouchLastLogin(id uint, at time.Time) error
}

// GormAdminRepository GORM 实现
type GormAdminRepository struct {
	db *gorm.DB
}

// NewAdminRepository 创建管理员仓库
func NewAdminRepository(db *gorm.DB) *GormAdminRepository {
	return &GormAdminRepository{db: db}
}

// GetByUsername 根据用户名获取管理员，用户名不区分大小写
func (r *GormAdminRepository) GetByUsername(username string) (*models.Admin, error) {
	normalized := strings.ToLower(strings.TrimSpace(username))
	if normalized == "" {
		return nil, nil
	}
	return firstOrNil[models.Admin](r.db.Where("LOWER(username) = ?", normalized))
}

// GetByID 根据 ID 获取管理员
func (r *GormAdminRepository) GetByID(id uint) (*models.Admin, error) {
	if id == 0 {
		return nil, nil
	}
	return firstOrNil[models.Admin](r.db, id)
}

// Create 创建管理员
func (r *GormAdminRepository) Create(admin *models.Admin) error {
	admin.Username = strings.TrimSpace(admin.Username)
	return r.db.Create(admin).Error
}

// TouchLastLogin 更新最后登录时间（不触碰 updated_at）
func (r *GormAdminRepository) TouchLastLogin(id uint, at time.Time) error {
	return r.db.Model(&models.Admin{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}
