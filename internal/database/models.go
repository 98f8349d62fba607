package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Template 表示管理员上传的 CV 模板。
// BaseHTML 保存清洗后的原始 HTML，CompiledFilePath 指向对象存储中的编译产物（相对 Key）。
// 不变量：模板可用于渲染时 CompiledFilePath 非空；Version 只增不减。
type Template struct {
	gorm.Model
	Name               string         `gorm:"size:255"`
	Category           string         `gorm:"size:64;index"` // IT, Marketing, Design...
	Style              string         `gorm:"size:64"`       // professional, creative, minimal, ats-friendly
	ThumbnailURL       string         `gorm:"size:512"`
	TemplateConfig     datatypes.JSON `gorm:"type:jsonb"` // colors / fonts / layout
	SectionsDefinition datatypes.JSON `gorm:"type:jsonb"` // 模板支持的 section 标识列表
	BaseHTML           string         `gorm:"type:text"`
	CompiledFilePath   string         `gorm:"size:500"`
	Version            int            `gorm:"default:1"`
	IsActive           bool           `gorm:"default:true"`
	IsPremium          bool           `gorm:"default:false"`
	CreatedBy          string         `gorm:"size:128"`
}

// CV 表示用户的一份简历实例。
// 用户体系不在本服务内，这里仅保存渲染所需的属主快照字段。
type CV struct {
	gorm.Model
	Name           string `gorm:"size:255"`
	UserFirstName  string `gorm:"size:128"`
	UserLastName   string `gorm:"size:128"`
	UserEmail      string `gorm:"size:255"`
	UserAvatar     string `gorm:"size:512"`
	TemplateID     *uint  `gorm:"index"`
	Template       *Template
	CVData         datatypes.JSON `gorm:"type:jsonb"`
	Customization  datatypes.JSON `gorm:"type:jsonb"`
	SectionOrder   datatypes.JSON `gorm:"type:jsonb"` // 渲染路径不使用，权威顺序来自 CVSection.OrderIndex
	ShareToken     string         `gorm:"size:36;uniqueIndex"`
	LastAccessedAt *time.Time
	Sections       []CVSection `gorm:"constraint:OnDelete:CASCADE"`
}

// CVSection 是 CV 下的一个内容分块，归属关系随 CV 级联删除。
// OrderIndex 不保证唯一或连续；IsVisible 为 nil 视为隐藏。
type CVSection struct {
	gorm.Model
	CVID        uint           `gorm:"index"`
	SectionType string         `gorm:"size:64"` // experience, education, skills...
	SectionData datatypes.JSON `gorm:"type:jsonb"`
	OrderIndex  *int
	IsVisible   *bool
}
