package service

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	ID       string // 連線 ID，升級連線時產生
	Conn     *websocket.Conn
	UserID   uint        // 已驗證的用戶 ID
	RoomID   string      // 加入房間後設置，斷線清理用
	SendChan chan *Event // 事件發送通道，用於異步傳送事件

	// done 關閉後停止投遞，SendChan 本身永遠不關閉
	// 廣播快照與斷線清理之間的交錯因此不會對關閉的通道發送
	done      chan struct{}
	closeOnce sync.Once
}

// shutdown 標記連線結束，可重複呼叫
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// EventHandler 接收閘道派發的入站事件與斷線通知
type EventHandler interface {
	HandleEvent(client *Client, event *Event)
	HandleDisconnect(client *Client)
}

// WebSocketManager 管理所有的 WebSocket 連接和事件傳遞
type WebSocketManager struct {
	groups     map[string]map[string]*Client // 兩層 map: roomID -> connID -> client
	conns      map[string]*Client            // connID -> client，單播與斷線掃描用
	clientsMux sync.RWMutex                  // 用於保護兩個 map 的讀寫鎖
	handler    EventHandler
}

// NewWebSocketManager 創建並初始化新的 WebSocket 閘道
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		groups: make(map[string]map[string]*Client),
		conns:  make(map[string]*Client),
	}
}

// SetHandler 設置入站事件的處理者，必須在接受連線前完成
func (s *WebSocketManager) SetHandler(handler EventHandler) {
	s.handler = handler
}

// HandleConnection 處理新的 WebSocket 連接請求，阻塞到連線結束
func (s *WebSocketManager) HandleConnection(conn *websocket.Conn, userID uint) {
	client := &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		UserID:   userID,
		SendChan: make(chan *Event, 256), // 設置緩衝大小為 256 的事件通道
		done:     make(chan struct{}),
	}

	s.clientsMux.Lock()
	s.conns[client.ID] = client
	s.clientsMux.Unlock()

	// 確保連接關閉時清理資源
	defer func() {
		if s.handler != nil {
			s.handler.HandleDisconnect(client)
		}
		s.removeClient(client)
		client.shutdown()
		conn.Close()
	}()

	// 啟動讀寫處理
	go s.writePump(client)
	s.readPump(client)
}

// readPump 持續監聽並處理從客戶端接收的事件
func (s *WebSocketManager) readPump(client *Client) {
	client.Conn.SetReadLimit(4096) // 設置最大消息大小為 4KB
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket unexpected close error: %v", err)
			}
			break
		}

		// 解析接收到的事件
		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("event parse error: %v", err)
			continue
		}

		if s.handler != nil {
			s.handler.HandleEvent(client, &event)
		}
	}
}

// writePump 處理向客戶端發送事件的邏輯
func (s *WebSocketManager) writePump(client *Client) {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event := <-client.SendChan:
			// 設置寫入超時
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// 獲取寫入器並發送事件
			w, err := client.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			// JSON 編碼
			eventBytes, err := json.Marshal(event)
			if err != nil {
				log.Printf("event encoding error: %v", err)
				continue
			}

			if _, err := w.Write(eventBytes); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-client.done:
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			// 發送心跳包
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// JoinGroup 把客戶端加入房間的廣播群組
// 一條連線同時只屬於一個群組，換群組時先退出舊的
func (s *WebSocketManager) JoinGroup(client *Client, roomID string) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	s.leaveGroupLocked(client)
	if s.groups[roomID] == nil {
		s.groups[roomID] = make(map[string]*Client)
	}
	s.groups[roomID][client.ID] = client
	client.RoomID = roomID
}

// LeaveGroup 把客戶端移出目前的廣播群組
func (s *WebSocketManager) LeaveGroup(client *Client) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()
	s.leaveGroupLocked(client)
}

func (s *WebSocketManager) leaveGroupLocked(client *Client) {
	if client.RoomID == "" {
		return
	}
	if group, ok := s.groups[client.RoomID]; ok {
		delete(group, client.ID)
		// 如果群組空了，刪除群組
		if len(group) == 0 {
			delete(s.groups, client.RoomID)
		}
	}
	client.RoomID = ""
}

// BroadcastToRoom 向房間內的所有客戶端廣播事件
func (s *WebSocketManager) BroadcastToRoom(roomID string, event *Event) {
	s.clientsMux.RLock()
	clients := make([]*Client, 0, len(s.groups[roomID]))
	for _, client := range s.groups[roomID] {
		clients = append(clients, client)
	}
	s.clientsMux.RUnlock()

	for _, client := range clients {
		s.send(client, event)
	}
}

// SendToConnection 向單一連線發送事件，找不到連線時靜默忽略
func (s *WebSocketManager) SendToConnection(connID string, event *Event) {
	s.clientsMux.RLock()
	client := s.conns[connID]
	s.clientsMux.RUnlock()

	if client != nil {
		s.send(client, event)
	}
}

func (s *WebSocketManager) send(client *Client, event *Event) {
	select {
	case <-client.done:
		// 連線已結束，丟棄事件
		return
	default:
	}

	select {
	case client.SendChan <- event:
		// 事件成功加入發送隊列
	default:
		// 客戶端發送隊列已滿，關閉連接
		s.removeClient(client)
		client.shutdown()
		client.Conn.Close()
	}
}

// removeClient 安全地移除客戶端連接
func (s *WebSocketManager) removeClient(client *Client) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	delete(s.conns, client.ID)
	s.leaveGroupLocked(client)
}

// RoomClientCount 獲取指定房間群組的在線客戶端數量
func (s *WebSocketManager) RoomClientCount(roomID string) int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()

	return len(s.groups[roomID])
}
