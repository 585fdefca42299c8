package repository

import (
	"debate_live/internal/models"
	"debate_live/internal/storage"

	"gorm.io/gorm/clause"
)

type ParticipantRepository interface {
	FindByRoomID(roomID string) ([]models.DebateParticipant, error)
	UpsertSide(roomID string, userID uint, side string) error
	SetReady(roomID string, userID uint, isReady bool) error
	DeleteByRoomID(roomID string) error
}

type participantRepository struct {
	db *storage.PostgresDB
}

func NewParticipantRepository(db *storage.PostgresDB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) FindByRoomID(roomID string) ([]models.DebateParticipant, error) {
	var participants []models.DebateParticipant
	err := r.db.Where("room_id = ?", roomID).Find(&participants).Error
	return participants, err
}

// UpsertSide 寫入或更新用戶在某房間的立場
func (r *participantRepository) UpsertSide(roomID string, userID uint, side string) error {
	participant := models.DebateParticipant{
		RoomID: roomID,
		UserID: userID,
		Side:   side,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"side"}),
	}).Create(&participant).Error
}

func (r *participantRepository) SetReady(roomID string, userID uint, isReady bool) error {
	return r.db.Model(&models.DebateParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("is_ready", isReady).Error
}

func (r *participantRepository) DeleteByRoomID(roomID string) error {
	return r.db.Where("room_id = ?", roomID).Delete(&models.DebateParticipant{}).Error
}
