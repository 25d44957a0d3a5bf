package model

import "time"

// 何に対する操作か
type AuditResourceType string

const (
	AuditResourceOrder   AuditResourceType = "order"
	AuditResourceProduct AuditResourceType = "product"
)

// 監査ログ。追記のみで、更新・削除はしない。
// 「誰が」「何をしたか」「どの対象に」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作した人（X-User-Id、無ければ注文ユーザーID）
	Actor string `gorm:"type:varchar(100);not null;index" json:"actor"`

	//自由記述の操作内容
	Action string `gorm:"type:text;not null" json:"action"`

	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resourceType"`
	ResourceID   int64             `gorm:"not null;index" json:"resourceId"`

	CreatedAt time.Time `gorm:"not null;index" json:"timestamp"`
}
