package models

// Menu is a node of the back-office navigation tree.
type Menu struct {
	Model
	TreeFields
	Title     string `json:"title" gorm:"size:100;not null"`
	Code      string `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Path      string `json:"path" gorm:"size:255"`
	Component string `json:"component" gorm:"size:255"`
	Redirect  string `json:"redirect" gorm:"size:255"`
	Icon      string `json:"icon" gorm:"size:255"`
	Status    Status `json:"status" gorm:"not null"`
	MetaJSON  string `json:"metajson,omitempty" gorm:"column:metajson;type:text"`
}

func (Menu) TableName() string {
	return "sys_menu"
}

type AuthGroup struct {
	Model
	PID         int64  `json:"pid" gorm:"column:pid;not null;uniqueIndex:idx_sys_auth_group_name,priority:1"`
	SortNo      int    `json:"sortno" gorm:"column:sortno;not null"`
	Groupname   string `json:"groupname" gorm:"size:64;not null;uniqueIndex:idx_sys_auth_group_name,priority:2"`
	Status      Status `json:"status" gorm:"not null"`
	Description string `json:"description" gorm:"size:255"`
}

func (AuthGroup) TableName() string {
	return "sys_auth_group"
}

func (g *AuthGroup) GetPID() int64   { return g.PID }
func (g *AuthGroup) GetSortNo() int  { return g.SortNo }
func (g *AuthGroup) SetSortNo(v int) { g.SortNo = v }
