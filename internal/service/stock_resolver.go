package service

import (
	"strings"

	"github.com/threadline/storefront/internal/constants"
	"github.com/threadline/storefront/internal/models"
)

// stockBucket 商品库存的生效表示
type stockBucket int

const (
	stockBucketFlat stockBucket = iota
	stockBucketSize
	stockBucketColorSize
)

// isMeaningfulSize 空字符串与 "default" 视为未选择尺码
func isMeaningfulSize(size string) bool {
	trimmed := strings.TrimSpace(size)
	return trimmed != "" && !strings.EqualFold(trimmed, constants.SizeDefault)
}

// resolveStockBucket 按 颜色+尺码 → 尺码 → 总库存 的优先级确定生效表示
// 商品配置了对应的库存表 (非空) 即由该表决定，表内缺失的键视为 0
func resolveStockBucket(product *models.Product, size, color string) stockBucket {
	if product == nil {
		return stockBucketFlat
	}
	hasSize := isMeaningfulSize(size)
	if hasSize && strings.TrimSpace(color) != "" && len(product.ColorSizeStockMap()) > 0 {
		return stockBucketColorSize
	}
	if hasSize && len(product.SizeStockMap()) > 0 {
		return stockBucketSize
	}
	return stockBucketFlat
}

// AvailableStock 计算商品在指定尺码/颜色下的可用库存，结果不小于 0
func AvailableStock(product *models.Product, size, color string) int {
	if product == nil {
		return 0
	}
	size = strings.TrimSpace(size)
	color = strings.TrimSpace(color)

	var available int
	switch resolveStockBucket(product, size, color) {
	case stockBucketColorSize:
		available = product.ColorSizeStockMap()[color][size]
	case stockBucketSize:
		available = product.SizeStockMap()[size]
	default:
		available = product.Stock
	}
	if available < 0 {
		return 0
	}
	return available
}

// adjustStock 在生效表示上增减库存（delta 可正可负），扣减不足时返回 ErrInsufficientStock
// 回补使用与扣减完全相同的表示，保证两者互逆
func adjustStock(product *models.Product, size, color string, delta int) error {
	if product == nil {
		return ErrProductNotFound
	}
	if delta == 0 {
		return nil
	}
	size = strings.TrimSpace(size)
	color = strings.TrimSpace(color)
	if delta < 0 && AvailableStock(product, size, color) < -delta {
		return ErrInsufficientStock
	}

	switch resolveStockBucket(product, size, color) {
	case stockBucketColorSize:
		stock := cloneColorSizeStock(product.ColorSizeStockMap())
		if stock[color] == nil {
			stock[color] = map[string]int{}
		}
		stock[color][size] += delta
		product.SetColorSizeStock(stock)
	case stockBucketSize:
		stock := cloneSizeStock(product.SizeStockMap())
		stock[size] += delta
		product.SetSizeStock(stock)
	default:
		product.Stock += delta
	}
	return nil
}

func cloneSizeStock(src models.SizeStock) models.SizeStock {
	dst := make(models.SizeStock, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneColorSizeStock(src models.ColorSizeStock) models.ColorSizeStock {
	dst := make(models.ColorSizeStock, len(src))
	for color, sizes := range src {
		inner := make(map[string]int, len(sizes))
		for k, v := range sizes {
			inner[k] = v
		}
		dst[color] = inner
	}
	return dst
}
