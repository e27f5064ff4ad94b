package models

type UserStatus int

const (
	UserStatusForbidden UserStatus = 0
	UserStatusGuest     UserStatus = 1
	UserStatusNormal    UserStatus = 9
)

func (s UserStatus) Valid() bool {
	return s == UserStatusForbidden || s == UserStatusGuest || s == UserStatusNormal
}

// SystemUser is a back-office staff account. Username, phone and email are
// unique within an organization.
type SystemUser struct {
	Model
	Userno   string     `json:"userno" gorm:"size:16;not null;uniqueIndex"`
	Username string     `json:"username" gorm:"size:64;not null;uniqueIndex:idx_sys_user_org_username,priority:2"`
	Phone    *string    `json:"phone" gorm:"size:20;uniqueIndex:idx_sys_user_org_phone,priority:2"`
	Email    *string    `json:"email" gorm:"size:128;uniqueIndex:idx_sys_user_org_email,priority:2"`
	Password string     `json:"-" gorm:"size:128;not null"`
	Nickname string     `json:"nickname" gorm:"size:64"`
	Avatar   string     `json:"avatar" gorm:"size:512"`
	Status   UserStatus `json:"status" gorm:"not null"`
	IsSuper  bool       `json:"is_super" gorm:"not null"`
	Platform string     `json:"platform" gorm:"size:32"`
	Openid   string     `json:"openid" gorm:"size:64"`
	Unionid  string     `json:"unionid" gorm:"size:64"`
	OrgID    int64      `json:"orgid" gorm:"column:orgid;not null;uniqueIndex:idx_sys_user_org_username,priority:1;uniqueIndex:idx_sys_user_org_phone,priority:1;uniqueIndex:idx_sys_user_org_email,priority:1"`
	Remark   string     `json:"remark" gorm:"size:255"`
}

func (SystemUser) TableName() string {
	return "sys_user"
}

// CustomUser is an end-customer account.
type CustomUser struct {
	Model
	Userno   string     `json:"userno" gorm:"size:16;not null;uniqueIndex"`
	Username string     `json:"username" gorm:"size:64;index"`
	Phone    *string    `json:"phone" gorm:"size:20;uniqueIndex"`
	Email    *string    `json:"email" gorm:"size:128;index"`
	Password *string    `json:"-" gorm:"size:128"`
	Nickname string     `json:"nickname" gorm:"size:64"`
	Avatar   string     `json:"avatar" gorm:"size:512"`
	Openid   *string    `json:"openid" gorm:"size:64;uniqueIndex"`
	Unionid  string     `json:"unionid" gorm:"size:64"`
	Platform string     `json:"platform" gorm:"size:32"`
	Status   UserStatus `json:"status" gorm:"not null"`
	Remark   string     `json:"remark" gorm:"size:255"`
}

func (CustomUser) TableName() string {
	return "custom_user"
}

func (u *CustomUser) PasswordUnset() bool {
	return u.Password == nil || *u.Password == ""
}
