package service

import (
	"errors"
	"log"
)

// EventDispatcher 把閘道收到的事件派發給狀態機或信令轉發器
// 協議錯誤只回傳給出錯的那條連線，不會廣播
type EventDispatcher struct {
	gateway *WebSocketManager
	rooms   *RoomService
	relay   *SignalingRelay
}

func NewEventDispatcher(gateway *WebSocketManager, rooms *RoomService, relay *SignalingRelay) *EventDispatcher {
	return &EventDispatcher{
		gateway: gateway,
		rooms:   rooms,
		relay:   relay,
	}
}

// HandleEvent 處理一條入站事件
func (d *EventDispatcher) HandleEvent(client *Client, event *Event) {
	switch event.Type {
	case EventJoinDebate:
		if event.RoomID == "" || client.UserID == 0 {
			d.sendError(client, NewProtocolError(ErrCodeMissingInfo, "缺少房間或用戶資訊"))
			return
		}
		// 一條連線同時只能在一個房間，要換房間必須先送 leave_debate
		if client.RoomID != "" {
			d.sendError(client, NewProtocolError(ErrCodeUserAlreadyInDebate, "連線已在辯論房間中，請先離開"))
			return
		}
		// 先加入廣播群組，讓加入者也收得到到齊通知；失敗時再退出
		d.gateway.JoinGroup(client, event.RoomID)
		if err := d.rooms.Join(event.RoomID, client.UserID, client.ID); err != nil {
			d.gateway.LeaveGroup(client)
			d.sendError(client, err)
		}

	case EventLeaveDebate:
		roomID := event.RoomID
		if roomID == "" {
			roomID = client.RoomID
		}
		if roomID == "" {
			d.sendError(client, NewProtocolError(ErrCodeMissingInfo, "缺少房間資訊"))
			return
		}
		d.rooms.Leave(roomID, client.ID)
		d.gateway.LeaveGroup(client)

	case EventReady:
		if event.RoomID == "" || event.IsReady == nil {
			d.sendError(client, NewProtocolError(ErrCodeMissingInfo, "缺少房間或準備狀態資訊"))
			return
		}
		if err := d.rooms.SetReady(event.RoomID, client.UserID, *event.IsReady); err != nil {
			d.sendError(client, err)
		}

	case EventTurnComplete:
		if event.RoomID == "" {
			d.sendError(client, NewProtocolError(ErrCodeMissingInfo, "缺少房間資訊"))
			return
		}
		if err := d.rooms.CompleteTurn(event.RoomID, client.UserID); err != nil {
			d.sendError(client, err)
		}

	case EventOffer, EventAnswer, EventICECandidate:
		if event.RoomID == "" {
			d.sendError(client, NewProtocolError(ErrCodeMissingInfo, "缺少房間資訊"))
			return
		}
		d.relay.Relay(event.Type, event.RoomID, client.ID, event.Payload)

	default:
		log.Printf("unknown event type %q from connection %s", event.Type, client.ID)
	}
}

// HandleDisconnect 處理傳輸層斷線，執行與主動離開相同的清理
func (d *EventDispatcher) HandleDisconnect(client *Client) {
	d.rooms.Disconnect(client.ID)
}

// sendError 把錯誤回傳給出錯的連線
func (d *EventDispatcher) sendError(client *Client, err error) {
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) {
		protocolErr = NewProtocolError(ErrCodeServerError, "伺服器內部錯誤")
	}
	d.gateway.SendToConnection(client.ID, NewErrorEvent(protocolErr))
}
