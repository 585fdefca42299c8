package repository

import (
	"debate_live/internal/models"
	"debate_live/internal/storage"
)

type DebateRepository interface {
	Create(debate *models.Debate) error
	FindByRoomID(roomID string) (*models.Debate, error)
	FindOpen() ([]models.Debate, error)
	UpdateStatusByRoomID(roomID string, status models.DebateStatus) error
}

type debateRepository struct {
	db *storage.PostgresDB
}

func NewDebateRepository(db *storage.PostgresDB) DebateRepository {
	return &debateRepository{db: db}
}

func (r *debateRepository) Create(debate *models.Debate) error {
	return r.db.Create(debate).Error
}

func (r *debateRepository) FindByRoomID(roomID string) (*models.Debate, error) {
	var debate models.Debate
	err := r.db.Preload("Topic").Where("room_id = ?", roomID).First(&debate).Error
	if err != nil {
		return nil, err
	}
	return &debate, nil
}

// FindOpen 查詢所有開放加入的辯論，最新的排在前面
func (r *debateRepository) FindOpen() ([]models.Debate, error) {
	var debates []models.Debate
	err := r.db.Preload("Topic").
		Where("status = ?", models.DebateStatusOpen).
		Order("created_at DESC").
		Find(&debates).Error
	return debates, err
}

func (r *debateRepository) UpdateStatusByRoomID(roomID string, status models.DebateStatus) error {
	return r.db.Model(&models.Debate{}).
		Where("room_id = ?", roomID).
		Update("status", status).Error
}
