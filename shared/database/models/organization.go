package models

const (
	OrgnoPrefix     = "8"
	OrgnoBodyLength = 13
	OrgRootCodeLen  = 3
	OrgCodeLen      = 2
	OrgMaxLevel     = 6
)

type Organization struct {
	Model
	TreeFields
	Name        string `json:"name" gorm:"size:100;not null;uniqueIndex"`
	Orgno       string `json:"orgno" gorm:"size:14;not null;uniqueIndex"`
	Code        string `json:"code" gorm:"size:8;not null"`
	ShortName   string `json:"short_name" gorm:"size:50"`
	Icon        string `json:"icon" gorm:"size:255"`
	Contact     string `json:"contact" gorm:"size:50"`
	Email       string `json:"email" gorm:"size:100"`
	Phone       string `json:"phone" gorm:"size:30"`
	Description string `json:"description" gorm:"size:255"`
	Level       int    `json:"level" gorm:"not null"`
	Status      Status `json:"status" gorm:"not null"`
	Locking     bool   `json:"locking" gorm:"not null"`
}

func (Organization) TableName() string {
	return "sys_organization"
}

// PathBody returns the part of orgno that encodes the codes from the top
// level organization down to this one.
func (o *Organization) PathBody() string {
	n := OrgRootCodeLen + OrgCodeLen*(o.Level-1)
	body := o.Orgno
	if len(body) > 0 {
		body = body[len(OrgnoPrefix):]
	}
	if n > len(body) {
		n = len(body)
	}
	return body[:n]
}
