package models

import "gorm.io/datatypes"

type Region struct {
	Model
	PID    int64          `json:"pid" gorm:"column:pid;not null;uniqueIndex:idx_sys_region_pid_code,priority:1"`
	SortNo int            `json:"sortno" gorm:"column:sortno;not null"`
	Name   string         `json:"name" gorm:"size:100;not null"`
	Code   string         `json:"code" gorm:"size:32;not null;uniqueIndex:idx_sys_region_pid_code,priority:2"`
	Value  string         `json:"value" gorm:"size:64"`
	Tag    string         `json:"tag" gorm:"size:64"`
	Status Status         `json:"status" gorm:"not null"`
	Extra  datatypes.JSON `json:"extra,omitempty"`
	Remark string         `json:"remark" gorm:"size:255"`
}

func (Region) TableName() string {
	return "sys_region"
}

func (r *Region) GetPID() int64   { return r.PID }
func (r *Region) GetSortNo() int  { return r.SortNo }
func (r *Region) SetSortNo(v int) { r.SortNo = v }
