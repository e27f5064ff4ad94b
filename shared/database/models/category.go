package models

const DefaultCategoryUUID = 1000

// Category is a node of the CMS content category tree.
type Category struct {
	Model
	TreeFields
	Cateno      string `json:"cateno" gorm:"size:32;not null;uniqueIndex"`
	Title       string `json:"title" gorm:"size:128;not null"`
	RefUUID     int    `json:"uuid" gorm:"column:uuid;not null"`
	Icon        string `json:"icon" gorm:"size:255"`
	Image       string `json:"image" gorm:"size:512"`
	Group       string `json:"group" gorm:"column:group_name;size:64;index"`
	Tag         string `json:"tag" gorm:"size:64"`
	Path        string `json:"path" gorm:"size:255"`
	URL         string `json:"url" gorm:"column:url;size:512"`
	RichContent string `json:"richcontent" gorm:"column:richcontent;type:text"`
	Remark      string `json:"remark" gorm:"size:255"`
	Status      Status `json:"status" gorm:"not null"`
}

func (Category) TableName() string {
	return "cms_category"
}
