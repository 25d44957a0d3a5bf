package db

import (
	"context"

	"minishop/internal/domain/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// デモデータ。何度流しても重複しない（名前で判定）。
func SeedDemo(ctx context.Context, gdb *gorm.DB) error {
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cat := model.Category{Name: "Electronics"}
		if err := tx.Where(model.Category{Name: cat.Name}).FirstOrCreate(&cat).Error; err != nil {
			return err
		}

		products := []model.Product{
			{Name: "Mouse", Description: "Wireless mouse", Price: decimal.RequireFromString("10.00"), Stock: 5, CategoryID: cat.ID},
			{Name: "Keyboard", Description: "Mechanical keyboard", Price: decimal.RequireFromString("49.99"), Stock: 20, CategoryID: cat.ID},
			{Name: "Monitor", Description: "27 inch monitor", Price: decimal.RequireFromString("199.90"), Stock: 3, CategoryID: cat.ID},
		}
		for i := range products {
			p := products[i]
			if err := tx.Where(model.Product{Name: p.Name}).Attrs(p).FirstOrCreate(&p).Error; err != nil {
				return err
			}
		}

		users := []model.User{
			{Username: "client", Email: "client@minishop.local"},
			{Username: "admin", Email: "admin@minishop.local"},
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&users).Error
	})
}
