package db

import "gorm.io/datatypes"

// MediaAsset 记录上传到站点的文件。
type MediaAsset struct {
	Model
	TenantID   uint   `gorm:"not null;index" json:"tenantId"`
	FileName   string `gorm:"size:255;not null" json:"fileName"`
	StoredName string `gorm:"size:255;not null;uniqueIndex" json:"-"`
	URL        string `gorm:"size:500;not null" json:"url"`
	MimeType   string `gorm:"size:100;not null" json:"mimeType"`
	Size       int64  `gorm:"not null" json:"size"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Alt        string `gorm:"size:300" json:"alt"`
}

// Form submission status values.
const (
	SubmissionStatusNew      = "new"
	SubmissionStatusRead     = "read"
	SubmissionStatusArchived = "archived"
)

// FormSubmission 保存公开表单的一次提交。
type FormSubmission struct {
	Model
	TenantID  uint           `gorm:"not null;index:idx_form_submissions_tenant_key" json:"tenantId"`
	FormKey   string         `gorm:"size:64;not null;index:idx_form_submissions_tenant_key" json:"formKey"`
	Locale    string         `gorm:"size:8" json:"locale"`
	PageID    *uint          `json:"pageId,omitempty"`
	Name      string         `gorm:"size:200" json:"name"`
	Email     string         `gorm:"size:255" json:"email"`
	Data      datatypes.JSON `json:"data"`
	Status    string         `gorm:"size:16;not null;default:new;index" json:"status"`
	IP        string         `gorm:"size:64" json:"ip"`
	UserAgent string         `gorm:"size:300" json:"userAgent"`
}
