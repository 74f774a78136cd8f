package model

import (
	baseModel "crypto_market/pkg/model"
)

// ReturnAddress 用户留存的提现/收款地址
// 地址管理本身在账号侧完成，这里只读取，用于订单完结后给卖家打款
type ReturnAddress struct {
	baseModel.BaseModel
	UserID   string `gorm:"type:uuid;index;not null" json:"userId"`
	Address  string `gorm:"not null" json:"address"`
	Currency string `gorm:"type:varchar(10);default:'xmr'" json:"currency"`
}

func (ReturnAddress) TableName() string {
	return "return_addresses"
}
