package service

import (
	"debate_live/internal/repository"
)

type Services struct {
	User      *UserService
	Topic     *TopicService
	Debate    *DebateService
	Rooms     *RoomService
	Registry  *RoomRegistry
	WebSocket *WebSocketManager
}

func NewServices(repos *repository.Repositories) *Services {
	registry := NewRoomRegistry()
	gateway := NewWebSocketManager()

	roomService := NewRoomService(registry, gateway, repos.Participant, repos.Debate)
	relay := NewSignalingRelay(registry, gateway)
	gateway.SetHandler(NewEventDispatcher(gateway, roomService, relay))

	return &Services{
		User:      NewUserService(repos.User),
		Topic:     NewTopicService(repos.Topic),
		Debate:    NewDebateService(repos.Debate, repos.Participant),
		Rooms:     roomService,
		Registry:  registry,
		WebSocket: gateway,
	}
}
