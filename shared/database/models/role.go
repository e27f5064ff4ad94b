package models

type Role struct {
	Model
	Name        string `json:"name" gorm:"size:64;not null;uniqueIndex"`
	Group       string `json:"group" gorm:"column:group_name;size:64;index"`
	Description string `json:"description" gorm:"type:text"`
	IsDefault   bool   `json:"is_default" gorm:"not null"`
	Status      Status `json:"status" gorm:"not null"`
}

func (Role) TableName() string {
	return "sys_role"
}
