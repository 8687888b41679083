package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/threadline/storefront/internal/models"

	"gorm.io/gorm"
)

func TestUserRegisterIsIdempotent(t *testing.T) {
	db := openRepositoryTestDB(t)
	repo := NewUserRepository(db)

	first, err := repo.Register(&models.User{ID: 42, Email: " Asha@Example.com ", Status: "active"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if first == nil || first.Email != "asha@example.com" {
		t.Fatalf("unexpected user: %+v", first)
	}

	again, err := repo.Register(&models.User{ID: 42, Email: "other@example.com"})
	if err != nil {
		t.Fatalf("second register failed: %v", err)
	}
	if again.Email != "asha@example.com" {
		t.Fatalf("existing user must win, got %s", again.Email)
	}

	byEmail, err := repo.GetByEmail("ASHA@example.com")
	if err != nil || byEmail == nil || byEmail.ID != 42 {
		t.Fatalf("lookup by email failed: %+v err=%v", byEmail, err)
	}
	if missing, err := repo.GetByID(0); err != nil || missing != nil {
		t.Fatalf("zero id should return nil, got %+v err=%v", missing, err)
	}
}

func TestAdminLookupAndTouch(t *testing.T) {
	db := openRepositoryTestDB(t)
	repo := NewAdminRepository(db)
	admin := &models.Admin{Username: " Priya ", PasswordHash: "x"}
	if err := repo.Create(admin); err != nil {
		t.Fatalf("create admin failed: %v", err)
	}

	found, err := repo.GetByUsername("priya")
	if err != nil || found == nil || found.ID != admin.ID {
		t.Fatalf("case-insensitive lookup failed: %+v err=%v", found, err)
	}
	if none, err := repo.GetByUsername("  "); err != nil || none != nil {
		t.Fatalf("blank username should return nil, got %+v err=%v", none, err)
	}

	at := time.Now().Add(-time.Minute).Truncate(time.Second)
	if err := repo.TouchLastLogin(admin.ID, at); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	reloaded, err := repo.GetByID(admin.ID)
	if err != nil || reloaded.LastLoginAt == nil || !reloaded.LastLoginAt.Equal(at) {
		t.Fatalf("last login not stored: %+v err=%v", reloaded, err)
	}
}

func TestCategoryMissingIDs(t *testing.T) {
	db := openRepositoryTestDB(t)
	repo := NewCategoryRepository(db)
	var ids []uint
	for i, slug := range []string{"dresses", "tops"} {
		cat := models.Category{Slug: slug, Name: slug, SortOrder: 2 - i}
		if err := db.Create(&cat).Error; err != nil {
			t.Fatalf("create category failed: %v", err)
		}
		ids = append(ids, cat.ID)
	}

	missing, err := repo.MissingIDs([]uint{ids[0], 999, ids[1], 999, 1000})
	if err != nil {
		t.Fatalf("missing ids failed: %v", err)
	}
	if fmt.Sprint(missing) != "[999 1000]" {
		t.Fatalf("unexpected missing ids: %v", missing)
	}

	list, err := repo.List()
	if err != nil || len(list) != 2 || list[0].Slug != "tops" {
		t.Fatalf("list should order by sort_order asc: %+v err=%v", list, err)
	}
}

func TestFindPageReturnsEmptySlice(t *testing.T) {
	db := openRepositoryTestDB(t)
	items, total, err := findPage[models.Category](db.Model(&models.Category{}), 1, 10, nil)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("empty page should be a non-nil empty slice: %v %d %v", items, total, err)
	}

	for i := 0; i < 5; i++ {
		cat := models.Category{Slug: fmt.Sprintf("c%d", i), Name: "c"}
		if err := db.Create(&cat).Error; err != nil {
			t.Fatalf("create category failed: %v", err)
		}
	}
	items, total, err = findPage[models.Category](db.Model(&models.Category{}), 2, 2, func(q *gorm.DB) *gorm.DB {
		return q.Order("id asc")
	})
	if err != nil || total != 5 || len(items) != 2 || items[0].Slug != "c2" {
		t.Fatalf("unexpected second page: %+v total=%d err=%v", items, total, err)
	}
}
