package service

import (
	"debate_live/internal/models"
	"debate_live/internal/repository"
)

// TopicService 處理辯論題目的增刪查
type TopicService struct {
	topicRepo repository.TopicRepository
}

func NewTopicService(topicRepo repository.TopicRepository) *TopicService {
	return &TopicService{topicRepo: topicRepo}
}

func (s *TopicService) CreateTopic(title, description string, creatorID uint) (*models.Topic, error) {
	topic := &models.Topic{
		Title:       title,
		Description: description,
		CreatorID:   creatorID,
	}
	if err := s.topicRepo.Create(topic); err != nil {
		return nil, err
	}
	return topic, nil
}

func (s *TopicService) GetTopic(topicID uint) (*models.Topic, error) {
	return s.topicRepo.FindByID(topicID)
}

func (s *TopicService) ListTopics() ([]models.Topic, error) {
	return s.topicRepo.FindAll()
}

func (s *TopicService) DeleteTopic(topicID uint) error {
	return s.topicRepo.Delete(topicID)
}
