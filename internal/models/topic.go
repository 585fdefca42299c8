package models

import (
	"gorm.io/gorm"
)

// Topic 表示一個可供辯論的題目
type Topic struct {
	gorm.Model
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	CreatorID   uint   `json:"creator_id"`
}
