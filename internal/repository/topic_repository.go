package repository

import (
	"debate_live/internal/models"
	"debate_live/internal/storage"
)

type TopicRepository interface {
	Create(topic *models.Topic) error
	FindByID(id uint) (*models.Topic, error)
	FindAll() ([]models.Topic, error) // 簡單的列表查詢
	Delete(id uint) error
}

type topicRepository struct {
	db *storage.PostgresDB
}

func NewTopicRepository(db *storage.PostgresDB) TopicRepository {
	return &topicRepository{db: db}
}

func (r *topicRepository) Create(topic *models.Topic) error {
	return r.db.Create(topic).Error
}

func (r *topicRepository) FindByID(id uint) (*models.Topic, error) {
	var topic models.Topic
	err := r.db.First(&topic, id).Error
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// FindAll 查詢所有題目，最新的排在前面
func (r *topicRepository) FindAll() ([]models.Topic, error) {
	var topics []models.Topic
	err := r.db.Order("created_at DESC").Find(&topics).Error
	return topics, err
}

func (r *topicRepository) Delete(id uint) error {
	return r.db.Delete(&models.Topic{}, id).Error
}
