package model

import (
	"encoding/json"

	baseModel "crypto_market/pkg/model"

	"github.com/shopspring/decimal"
)

// OrderItem 订单条目，商品信息在下单时刻快照，后续商品改价不影响已有订单
type OrderItem struct {
	baseModel.BaseModel
	OrderID      string          `gorm:"type:uuid;index;not null" json:"orderId"`
	ProductID    string          `gorm:"type:uuid;index" json:"productId"`
	ProductName  string          `gorm:"not null" json:"productName"`
	ProductPrice decimal.Decimal `gorm:"type:numeric(12,2)" json:"productPrice"`
	Quantity     int             `gorm:"default:1" json:"quantity"`
	BulkOption   json.RawMessage `gorm:"type:jsonb" json:"bulkOption,omitempty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// Units 条目对应的实际件数
// 批发选项形如 {"amount": 10, "price": 50}，表示一份含 10 件
func (i *OrderItem) Units() int {
	if len(i.BulkOption) > 0 {
		var opt struct {
			Amount int `json:"amount"`
		}
		if err := json.Unmarshal(i.BulkOption, &opt); err == nil && opt.Amount > 0 {
			return i.Quantity * opt.Amount
		}
	}
	return i.Quantity
}
