package models

import (
	"time"

	"gorm.io/gorm"
)

type Status int

const (
	StatusForbidden Status = 0
	StatusNormal    Status = 1
)

func (s Status) Valid() bool {
	return s == StatusForbidden || s == StatusNormal
}

// Model is embedded by every soft deletable entity.
type Model struct {
	ID        int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (m *Model) GetID() int64 { return m.ID }

// TreeFields holds the parent pointer and sibling order of a tree entity.
type TreeFields struct {
	PID    int64 `json:"pid" gorm:"column:pid;not null;index"`
	SortNo int   `json:"sortno" gorm:"column:sortno;not null"`
}

func (t *TreeFields) GetPID() int64   { return t.PID }
func (t *TreeFields) GetSortNo() int  { return t.SortNo }
func (t *TreeFields) SetSortNo(v int) { t.SortNo = v }
