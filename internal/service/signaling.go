package service

import "encoding/json"

// SignalingRelay 在房間內的兩位參與者之間轉發 WebRTC 信令
// 內容不做任何解讀，這裡只是純粹的路由
type SignalingRelay struct {
	registry *RoomRegistry
	notifier RoomNotifier
}

func NewSignalingRelay(registry *RoomRegistry, notifier RoomNotifier) *SignalingRelay {
	return &SignalingRelay{
		registry: registry,
		notifier: notifier,
	}
}

// Relay 把 offer/answer/ice_candidate 轉發給發送者以外的所有參與者
// 附上來源連線 ID 讓接收端能對應回覆；房間不存在或沒有對方時靜默丟棄
func (r *SignalingRelay) Relay(eventType string, roomID string, fromConnID string, payload json.RawMessage) {
	room := r.registry.Get(roomID)
	if room == nil {
		return
	}

	room.mu.Lock()
	targets := make([]string, 0, maxParticipants)
	for _, p := range room.Participants {
		if p.ConnectionID != fromConnID {
			targets = append(targets, p.ConnectionID)
		}
	}
	room.mu.Unlock()

	for _, connID := range targets {
		r.notifier.SendToConnection(connID, NewSignalEvent(eventType, payload, fromConnID))
	}
}
