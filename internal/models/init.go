package models

import (
	"errors"
	"strings"

	"github.com/threadline/storefront/internal/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
)

// ErrWeakAdminPassword 默认管理员密码过短
var ErrWeakAdminPassword = errors.New("default admin password must be at least 8 characters")

// InitDefaultAdmin 在全局连接上初始化默认管理员
func InitDefaultAdmin(username, password string) error {
	return EnsureDefaultAdmin(DB, username, password)
}

// EnsureDefaultAdmin 空库时创建超级管理员；已有管理员但无超级管理员时提升最早创建的一个
func EnsureDefaultAdmin(db *gorm.DB, username, password string) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var first Admin
		err := tx.Order("id asc").First(&first).Error
		switch {
		case err == nil:
			return ensureSuperAdmin(tx, &first)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		username = strings.TrimSpace(username)
		if username == "" {
			username = defaultAdminUsername
		}
		usingDefault := password == ""
		if usingDefault {
			password = defaultAdminPassword
		}
		if len(password) < 8 {
			return ErrWeakAdminPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		if err := tx.Create(&Admin{Username: username, PasswordHash: string(hash), IsSuper: true}).Error; err != nil {
			return err
		}
		if usingDefault {
			logger.Warnw("default_admin_created_with_default_password", "username", username)
			return nil
		}
		logger.Infow("default_admin_created", "username", username)
		return nil
	})
}

func ensureSuperAdmin(tx *gorm.DB, oldest *Admin) error {
	var supers int64
	if err := tx.Model(&Admin{}).Where("is_super = ?", true).Count(&supers).Error; err != nil {
		return err
	}
	if supers > 0 {
		return nil
	}
	if err := tx.Model(oldest).UpdateColumn("is_super", true).Error; err != nil {
		return err
	}
	logger.Warnw("super_admin_restored", "admin_id", oldest.ID, "username", oldest.Username)
	return nil
}
