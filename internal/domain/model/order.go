package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文ヘッダ。作成後は更新しない。
type Order struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index;uniqueIndex:ux_orders_user_idem" json:"userId"`
	User   *User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	// 明細のquantity*unit_priceの合計
	Total decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	// 二重送信防止キー（無い場合はNULL）
	IdempotencyKey *string     `gorm:"type:varchar(255);uniqueIndex:ux_orders_user_idem" json:"-"`
	Items          []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt      time.Time   `gorm:"not null;index" json:"createdAt"`
}
