package repository

import "debate_live/internal/storage"

type Repositories struct {
	User        UserRepository
	Topic       TopicRepository
	Debate      DebateRepository
	Participant ParticipantRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Topic:       NewTopicRepository(db),
		Debate:      NewDebateRepository(db),
		Participant: NewParticipantRepository(db),
	}
}
