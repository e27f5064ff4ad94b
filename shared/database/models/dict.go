package models

import "gorm.io/datatypes"

// Dict is a named lookup table; its rows are DictItems.
type Dict struct {
	Model
	Name   string `json:"name" gorm:"size:100;not null"`
	Code   string `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Group  string `json:"group" gorm:"column:group_name;size:64"`
	Icon   string `json:"icon" gorm:"size:255"`
	SortNo int    `json:"sortno" gorm:"column:sortno;not null"`
	Status Status `json:"status" gorm:"not null"`
	Remark string `json:"remark" gorm:"size:255"`
}

func (Dict) TableName() string {
	return "sys_dict"
}

type DictItem struct {
	Model
	DictID  int64          `json:"dict_id" gorm:"not null;uniqueIndex:idx_sys_dict_item_value,priority:1"`
	Label   string         `json:"label" gorm:"size:100;not null"`
	Value   string         `json:"value" gorm:"size:100;not null;uniqueIndex:idx_sys_dict_item_value,priority:2"`
	Icon    string         `json:"icon" gorm:"size:255"`
	Actived bool           `json:"actived" gorm:"not null"`
	Extra   datatypes.JSON `json:"extra,omitempty"`
	SortNo  int            `json:"sortno" gorm:"column:sortno;not null"`
	Status  Status         `json:"status" gorm:"not null"`
	Remark  string         `json:"remark" gorm:"size:255"`
}

func (DictItem) TableName() string {
	return "sys_dict_item"
}
