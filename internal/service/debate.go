package service

import (
	"errors"

	"github.com/google/uuid"

	"debate_live/internal/models"
	"debate_live/internal/repository"
)

var (
	ErrCannotJoinOwnDebate = errors.New("不能加入自己發起的辯論")
	ErrDebateNotOpen       = errors.New("這場辯論不開放加入")
)

// DebateService 處理辯論列表的建立、查詢與報名
// 即時的房間協議由 RoomService 負責，這裡只管資料庫紀錄
type DebateService struct {
	debateRepo      repository.DebateRepository
	participantRepo repository.ParticipantRepository
}

func NewDebateService(debateRepo repository.DebateRepository, participantRepo repository.ParticipantRepository) *DebateService {
	return &DebateService{
		debateRepo:      debateRepo,
		participantRepo: participantRepo,
	}
}

// CreateDebate 發起一場辯論，產生房間 ID 並以開放狀態列出
// 發起人預設站正方
func (s *DebateService) CreateDebate(topicID, creatorID uint, creatorSide string) (*models.Debate, error) {
	if creatorSide != models.SidePro && creatorSide != models.SideCon {
		creatorSide = models.SidePro
	}

	debate := &models.Debate{
		RoomID:    uuid.NewString(),
		TopicID:   topicID,
		CreatorID: creatorID,
		Status:    models.DebateStatusOpen,
	}
	if err := s.debateRepo.Create(debate); err != nil {
		return nil, err
	}

	if err := s.participantRepo.UpsertSide(debate.RoomID, creatorID, creatorSide); err != nil {
		return nil, err
	}
	return debate, nil
}

// ListOpenDebates 列出所有開放加入的辯論
func (s *DebateService) ListOpenDebates() ([]models.Debate, error) {
	return s.debateRepo.FindOpen()
}

// GetDebate 查詢指定房間的辯論紀錄
func (s *DebateService) GetDebate(roomID string) (*models.Debate, error) {
	return s.debateRepo.FindByRoomID(roomID)
}

// JoinDebate 報名加入一場開放中的辯論，站到發起人的對面
// 發起人不能加入自己發起的辯論
func (s *DebateService) JoinDebate(roomID string, userID uint) (*models.Debate, error) {
	debate, err := s.debateRepo.FindByRoomID(roomID)
	if err != nil {
		return nil, err
	}
	if debate.CreatorID == userID {
		return nil, ErrCannotJoinOwnDebate
	}
	if debate.Status != models.DebateStatusOpen {
		return nil, ErrDebateNotOpen
	}

	side := models.SideCon
	records, err := s.participantRepo.FindByRoomID(roomID)
	if err == nil {
		for _, record := range records {
			if record.UserID == debate.CreatorID && record.Side == models.SideCon {
				side = models.SidePro
			}
		}
	}

	if err := s.participantRepo.UpsertSide(roomID, userID, side); err != nil {
		return nil, err
	}
	return debate, nil
}
