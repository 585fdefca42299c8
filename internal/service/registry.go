package service

import (
	"log"
	"sync"
)

// RoomRegistry 擁有房間 ID 到記憶體房間狀態的對應表
// 所有元件都透過註冊表取得房間，不會長期持有超過刪除時機的引用
type RoomRegistry struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate 取得指定房間，不存在時初始化一個等待中的空房間
// 同一個房間 ID 重複呼叫會得到同一個房間
func (r *RoomRegistry) GetOrCreate(roomID string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[roomID]
	if !exists {
		room = newRoom(roomID)
		r.rooms[roomID] = room
		log.Printf("room %s created", roomID)
	}

	// 歷史上出現過 participants 被破壞成非列表的狀況，這裡直接重設修復
	room.mu.Lock()
	if room.Participants == nil {
		log.Printf("room %s has corrupted participants, resetting", roomID)
		room.Participants = make([]*Participant, 0, maxParticipants)
	}
	room.mu.Unlock()

	return room
}

// Get 取得指定房間，不存在時回傳 nil
func (r *RoomRegistry) Get(roomID string) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

// Delete 將房間從註冊表移除
func (r *RoomRegistry) Delete(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rooms[roomID]; exists {
		delete(r.rooms, roomID)
		log.Printf("room %s deleted", roomID)
	}
}

// All 回傳目前所有房間的快照，供斷線時全表掃描使用
func (r *RoomRegistry) All() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}
