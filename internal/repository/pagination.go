package repository

import (
	"errors"

	"gorm.io/gorm"
)

// applyPagination 应用分页参数，pageSize<=0 时不分页
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

// findPage 统计总数后按页查询；find 用于追加预加载与排序
func findPage[T any](query *gorm.DB, page, pageSize int, find func(*gorm.DB) *gorm.DB) ([]T, int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	items := make([]T, 0)
	if total == 0 {
		return items, 0, nil
	}
	paged := applyPagination(query, page, pageSize)
	if find != nil {
		paged = find(paged)
	}
	if err := paged.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// firstOrNil 查询单条记录，不存在时返回 nil, nil
func firstOrNil[T any](query *gorm.DB, conds ...interface{}) (*T, error) {
	var item T
	if err := query.First(&item, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}
