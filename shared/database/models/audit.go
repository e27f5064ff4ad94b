package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SystemUserLogTable = "sys_user_log"
	CustomUserLogTable = "custom_user_log"
)

// AccountLog is the row shape shared by the system user and custom user
// audit tables. The table is chosen with db.Table.
type AccountLog struct {
	ID        int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Biztype   string         `json:"biztype" gorm:"size:100;not null;index"`
	UID       *int64         `json:"uid" gorm:"column:uid;index"`
	Username  string         `json:"username" gorm:"size:50;index"`
	ClientID  string         `json:"client_id" gorm:"column:client_id;size:50"`
	IP        string         `json:"ip" gorm:"column:ip;size:128"`
	Detail    string         `json:"detail" gorm:"type:text"`
	BizDetail string         `json:"biz_detail" gorm:"column:biz_detail;type:text"`
	Error     *string        `json:"error" gorm:"type:text"`
	Locked    bool           `json:"locked" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	DetailJSON map[string]any `json:"detail_json,omitempty" gorm:"-"`
	ErrorJSON  map[string]any `json:"error_json,omitempty" gorm:"-"`
}
