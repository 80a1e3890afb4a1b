package models

// AuditLog records user and pipeline operations that change persisted state.
type AuditLog struct {
	Base
	UserID       string `gorm:"index" json:"user_id,omitempty"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}
