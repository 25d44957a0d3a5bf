package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 在庫と価格を持つ商品。stockは注文確定でのみ減る。
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null;index" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock       int64           `gorm:"not null;check:stock >= 0" json:"stock"`
	CategoryID  int64           `gorm:"not null;index" json:"categoryId"`
	Category    *Category       `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
