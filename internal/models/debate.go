package models

import (
	"gorm.io/gorm"
)

// Debate 表示一場辯論的資料庫紀錄（房間列表項目）
// 即時的房間狀態保存在記憶體中，這裡只記錄列表與最終結果
type Debate struct {
	gorm.Model
	RoomID    string       `gorm:"uniqueIndex;not null" json:"room_id"` // 記憶體房間的識別碼
	TopicID   uint         `json:"topic_id"`
	Topic     Topic        `gorm:"foreignKey:TopicID" json:"topic"`
	CreatorID uint         `json:"creator_id"`
	Status    DebateStatus `gorm:"type:varchar(20);not null" json:"status"`
}

// DebateStatus 定義辯論列表狀態的類型
type DebateStatus string

const (
	DebateStatusOpen     DebateStatus = "open"     // 開放加入
	DebateStatusOngoing  DebateStatus = "ongoing"  // 辯論進行中
	DebateStatusFinished DebateStatus = "finished" // 辯論已結束
)

// DebateParticipant 表示一位用戶在某場辯論中的立場與準備狀態
type DebateParticipant struct {
	gorm.Model
	RoomID  string `gorm:"index:idx_room_user,unique;not null" json:"room_id"`
	UserID  uint   `gorm:"index:idx_room_user,unique;not null" json:"user_id"`
	Side    string `gorm:"type:varchar(10)" json:"side"` // "pro" 或 "con"
	IsReady bool   `json:"is_ready"`
}

// 辯論立場
const (
	SidePro = "pro" // 正方
	SideCon = "con" // 反方
)
