package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。unit_priceは注文時点の価格のスナップショット。
type OrderItem struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64           `gorm:"not null;index" json:"orderId"`
	ProductID int64           `gorm:"not null;index" json:"productId"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	CreatedAt time.Time       `gorm:"not null" json:"createdAt"`
}

// 明細の小計
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
}
