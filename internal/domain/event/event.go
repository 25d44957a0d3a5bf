package event

import (
	"encoding/json"
	"time"
)

const (
	TypeOrderPlaced = "OrderPlaced"
)

// Kafkaに流す共通の封筒
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // 注文ID
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedItem struct {
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"` // 小数2桁の文字列
	LineTotal string `json:"line_total"`
}

// 注文確定（commit後）に1回だけ出す
type OrderPlaced struct {
	OrderID    int64             `json:"order_id"`
	UserID     int64             `json:"user_id"`
	Actor      string            `json:"actor"`
	ItemsCount int               `json:"items_count"`
	Total      string            `json:"total"`
	Items      []OrderPlacedItem `json:"items"`
	PlacedAt   time.Time         `json:"placed_at"`
}
