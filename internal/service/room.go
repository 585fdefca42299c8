package service

import (
	"log"
	"sync"
	"time"

	"debate_live/internal/models"
)

// 一場辯論最多兩位參與者
const maxParticipants = 2

// RoomStatus 定義房間狀態的類型
type RoomStatus string

const (
	StatusWaiting   RoomStatus = "waiting"   // 0-1 位參與者
	StatusReady     RoomStatus = "ready"     // 兩位參與者到齊，尚未全部準備
	StatusCountdown RoomStatus = "countdown" // 開賽倒數中
	StatusDebating  RoomStatus = "debating"  // 輪流發言中
	StatusFinished  RoomStatus = "finished"  // 終態，房間留存到清空為止
)

// Participant 表示用戶在房間內的成員紀錄，綁定一條活躍連線
type Participant struct {
	ConnectionID string `json:"connectionId"`
	UserID       uint   `json:"userId"`
	IsReady      bool   `json:"isReady"`
}

// Room 代表一場辯論的記憶體狀態
// 所有欄位都由 mu 保護，狀態機的內部方法都假設呼叫者已持有鎖
type Room struct {
	ID             string
	Participants   []*Participant
	Roles          map[uint]string // userID -> "pro" | "con"
	Status         RoomStatus
	Turn           string // 目前發言方，非辯論中為空字串
	TurnSequence   []string
	TurnPosition   int
	CompletedTurns map[string]bool
	Countdown      int

	// 倒數開始時的參與者快照，倒數歸零時若名單中途損毀可由此還原
	snapshot []Participant
	// 外部儲存預读到的角色指派，倒數期間在背景填入
	storedRoles map[uint]string

	// 唯一的延遲回呼把手，換新之前一定先取消舊的
	// timerGen 讓已取消但正要執行的回呼自行放棄
	timer    *time.Timer
	timerGen uint64

	// 防止計時器到期與客戶端訊息兩個觸發源交錯推進回合
	turnChanging bool

	mu sync.Mutex
}

func newRoom(roomID string) *Room {
	return &Room{
		ID:           roomID,
		Participants: make([]*Participant, 0, maxParticipants),
		Roles:        make(map[uint]string),
		Status:       StatusWaiting,
	}
}

// setTimer 取消現有計時器並安裝新的，fn 會在持有 r.mu 的情況下被呼叫
// 這是更換計時器唯一合法的途徑，一個房間永遠不會有兩個存活的計時器
func (r *Room) setTimer(d time.Duration, fn func()) {
	r.clearTimer()
	r.timerGen++
	gen := r.timerGen
	r.timer = time.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.timerGen != gen {
			// 已被取消或換新，放棄執行
			return
		}
		r.timer = nil
		fn()
	})
}

// clearTimer 取消任何未到期的計時器，已取消的回呼不會再執行
func (r *Room) clearTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerGen++
}

// reset 把房間清回初始的等待狀態，常駐測試房清空時使用
func (r *Room) reset() {
	r.clearTimer()
	r.Participants = make([]*Participant, 0, maxParticipants)
	r.Roles = make(map[uint]string)
	r.Status = StatusWaiting
	r.Turn = ""
	r.TurnSequence = nil
	r.TurnPosition = 0
	r.CompletedTurns = nil
	r.Countdown = 0
	r.snapshot = nil
	r.storedRoles = nil
	r.turnChanging = false
}

// participantSnapshot 複製目前的參與者名單
func (r *Room) participantSnapshot() []Participant {
	snapshot := make([]Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		snapshot = append(snapshot, *p)
	}
	return snapshot
}

// RoomNotifier 是狀態機對外發送事件的出口，由 WebSocketManager 實作
type RoomNotifier interface {
	BroadcastToRoom(roomID string, event *Event)
	SendToConnection(connID string, event *Event)
}

// ParticipantStore 是外部參與者儲存的介面，所有呼叫都是盡力而為
type ParticipantStore interface {
	FindByRoomID(roomID string) ([]models.DebateParticipant, error)
	UpsertSide(roomID string, userID uint, side string) error
	SetReady(roomID string, userID uint, isReady bool) error
	DeleteByRoomID(roomID string) error
}

// DebateStatusStore 是辯論列表狀態的更新回呼，同樣盡力而為
type DebateStatusStore interface {
	UpdateStatusByRoomID(roomID string, status models.DebateStatus) error
}

// 各事件的附加資料
type userJoinedData struct {
	UserID uint `json:"userId"`
}

type userLeftData struct {
	ConnectionID string `json:"connectionId"`
	UserID       uint   `json:"userId"`
}

type participantsData struct {
	Participants []Participant `json:"participants"`
}

type userReadyData struct {
	UserID  uint `json:"userId"`
	IsReady bool `json:"isReady"`
}

type countdownData struct {
	Count int `json:"count"`
}

type debateStartData struct {
	FirstTurn string          `json:"firstTurn"`
	Roles     map[uint]string `json:"roles"`
}

type speakingTurnData struct {
	Turn          string `json:"turn"`
	TimeRemaining int    `json:"timeRemaining"`
}

type finishedData struct {
	Message string `json:"message"`
}

// RoomService 實作房間生命週期與回合狀態機
type RoomService struct {
	registry     *RoomRegistry
	notifier     RoomNotifier
	participants ParticipantStore
	debates      DebateStatusStore

	countdownFrom int           // 倒數起點，預設 5
	tickInterval  time.Duration // 倒數間隔，預設 1 秒
	turnDuration  time.Duration // 每回合時長，預設 60 秒
	testRoomID    string        // 常駐測試房，清空時重設而不刪除
}

func NewRoomService(registry *RoomRegistry, notifier RoomNotifier, participants ParticipantStore, debates DebateStatusStore) *RoomService {
	return &RoomService{
		registry:      registry,
		notifier:      notifier,
		participants:  participants,
		debates:       debates,
		countdownFrom: 5,
		tickInterval:  time.Second,
		turnDuration:  60 * time.Second,
	}
}

// SetTimings 覆寫倒數與回合時長，給設定檔與測試使用
func (s *RoomService) SetTimings(countdownFrom int, tickInterval, turnDuration time.Duration) {
	s.countdownFrom = countdownFrom
	s.tickInterval = tickInterval
	s.turnDuration = turnDuration
}

// SetTestRoomID 指定不會被刪除的常駐房間
func (s *RoomService) SetTestRoomID(roomID string) {
	s.testRoomID = roomID
}

// Join 讓一位用戶以指定連線加入房間
// 房間不存在時建立；已滿或用戶重複加入時回傳協議錯誤，狀態不變
func (s *RoomService) Join(roomID string, userID uint, connID string) error {
	room := s.registry.GetOrCreate(roomID)

	room.mu.Lock()
	defer room.mu.Unlock()

	for _, p := range room.Participants {
		if p.UserID == userID {
			return NewProtocolError(ErrCodeUserAlreadyInDebate, "用戶已在這場辯論中")
		}
	}
	if len(room.Participants) >= maxParticipants {
		return NewProtocolError(ErrCodeDebateRoomFull, "辯論房間已滿")
	}

	// 上一場已結束的房間等到新對手時退回等待，重新走一次準備流程
	if room.Status == StatusFinished {
		room.Roles = make(map[uint]string)
		room.Turn = ""
		room.TurnSequence = nil
		room.TurnPosition = 0
		room.CompletedTurns = nil
		room.snapshot = nil
		room.storedRoles = nil
		for _, p := range room.Participants {
			p.IsReady = false
		}
		room.Status = StatusWaiting
	}

	participant := &Participant{ConnectionID: connID, UserID: userID}
	room.Participants = append(room.Participants, participant)
	log.Printf("user %d joined room %s (%d/%d)", userID, roomID, len(room.Participants), maxParticipants)

	// 通知其他參與者有人加入
	for _, p := range room.Participants {
		if p.ConnectionID != connID {
			s.notifier.SendToConnection(p.ConnectionID, NewRoomEvent(EventUserJoined, userJoinedData{UserID: userID}))
		}
	}

	if len(room.Participants) == maxParticipants {
		if room.Status == StatusWaiting {
			room.Status = StatusReady
		}
		s.notifier.BroadcastToRoom(roomID, NewRoomEvent(EventParticipantsConnected, participantsData{Participants: room.participantSnapshot()}))
	}
	return nil
}

// SetReady 更新一位參與者的準備狀態，兩位都準備好時進入倒數
func (s *RoomService) SetReady(roomID string, userID uint, isReady bool) error {
	room := s.registry.Get(roomID)
	if room == nil {
		return NewProtocolError(ErrCodeRoomNotFound, "房間不存在")
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if len(room.Participants) < maxParticipants {
		return NewProtocolError(ErrCodeNotEnoughParticipants, "對手尚未加入")
	}

	var participant *Participant
	for _, p := range room.Participants {
		if p.UserID == userID {
			participant = p
			break
		}
	}
	if participant == nil {
		return NewProtocolError(ErrCodeParticipantNotFound, "用戶不是這場辯論的參與者")
	}

	participant.IsReady = isReady
	go func() {
		if err := s.participants.SetReady(roomID, userID, isReady); err != nil {
			log.Printf("failed to persist ready flag for user %d in room %s: %v", userID, roomID, err)
		}
	}()

	s.notifier.BroadcastToRoom(roomID, NewRoomEvent(EventUserReady, userReadyData{UserID: userID, IsReady: isReady}))

	allReady := true
	for _, p := range room.Participants {
		if !p.IsReady {
			allReady = false
			break
		}
	}
	if allReady {
		s.beginCountdown(room)
	}
	return nil
}

// beginCountdown 進入倒數狀態，呼叫者須持有 room.mu
// 已在倒數或辯論中時不重複觸發，密集的 ready 訊息只會產生一次轉換
func (s *RoomService) beginCountdown(room *Room) {
	if room.Status == StatusCountdown || room.Status == StatusDebating || room.Status == StatusFinished {
		return
	}

	room.Status = StatusCountdown
	room.Countdown = s.countdownFrom
	room.snapshot = room.participantSnapshot()
	room.storedRoles = nil

	// 在背景預讀外部儲存的角色指派，倒數歸零時若已就緒就直接採用
	go s.prefetchRoles(room)

	s.notifier.BroadcastToRoom(room.ID, NewRoomEvent(EventDebateReady, participantsData{Participants: room.snapshot}))
	s.notifier.BroadcastToRoom(room.ID, NewRoomEvent(EventDebateCountdown, countdownData{Count: room.Countdown}))

	room.setTimer(s.tickInterval, func() { s.countdownTick(room) })
}

// prefetchRoles 讀取外部儲存既有的角色指派
// 結果只會補充倒數中的房間狀態，讀取失敗不影響辯論開始
func (s *RoomService) prefetchRoles(room *Room) {
	records, err := s.participants.FindByRoomID(room.ID)
	if err != nil {
		log.Printf("failed to read stored roles for room %s: %v", room.ID, err)
		return
	}

	roles := make(map[uint]string)
	sides := make(map[string]bool)
	for _, record := range records {
		if record.Side == "" {
			continue
		}
		roles[record.UserID] = record.Side
		sides[record.Side] = true
	}
	if len(sides) < 2 {
		return
	}

	room.mu.Lock()
	if room.Status == StatusCountdown {
		room.storedRoles = roles
	}
	room.mu.Unlock()
}

// countdownTick 每秒遞減並廣播一次倒數，歸零後指派角色並開始辯論
// 由計時器回呼進入，r.mu 已被持有
func (s *RoomService) countdownTick(room *Room) {
	if room.Status != StatusCountdown {
		return
	}

	room.Countdown--
	s.notifier.BroadcastToRoom(room.ID, NewRoomEvent(EventDebateCountdown, countdownData{Count: room.Countdown}))

	if room.Countdown > 0 {
		room.setTimer(s.tickInterval, func() { s.countdownTick(room) })
		return
	}
	s.startDebate(room)
}

// startDebate 指派角色並進入辯論狀態，呼叫者須持有 room.mu
func (s *RoomService) startDebate(room *Room) {
	room.clearTimer()

	// 中途有參與者紀錄消失時，用倒數開始時的快照還原最後已知名單
	participants := room.participantSnapshot()
	if len(participants) < maxParticipants {
		participants = room.snapshot
	}
	if len(participants) < maxParticipants {
		log.Printf("room %s cannot start debate: participant records lost", room.ID)
		room.Status = StatusWaiting
		s.notifier.BroadcastToRoom(room.ID, NewErrorEvent(NewProtocolError(ErrCodeServerError, "辯論無法開始")))
		return
	}

	// 外部儲存已有完整的雙方指派時照單全收，否則決定式指派：先進房者為正方
	roles := room.storedRoles
	if len(roles) < maxParticipants {
		roles = map[uint]string{
			participants[0].UserID: models.SidePro,
			participants[1].UserID: models.SideCon,
		}
		go s.persistRoles(room.ID, roles)
	}

	room.Roles = roles
	room.TurnSequence = []string{models.SidePro, models.SideCon}
	room.TurnPosition = 0
	room.CompletedTurns = make(map[string]bool)
	room.Turn = room.TurnSequence[0]
	room.Status = StatusDebating

	room.setTimer(s.turnDuration, func() { s.advanceTurn(room) })

	s.notifier.BroadcastToRoom(room.ID, NewRoomEvent(EventDebateStart, debateStartData{
		FirstTurn: room.Turn,
		Roles:     roles,
	}))

	go func() {
		if err := s.debates.UpdateStatusByRoomID(room.ID, models.DebateStatusOngoing); err != nil {
			log.Printf("failed to mark debate %s ongoing: %v", room.ID, err)
		}
	}()
}

// persistRoles 把決定式指派寫回外部儲存，寫入失敗只記錄不阻擋
func (s *RoomService) persistRoles(roomID string, roles map[uint]string) {
	for userID, side := range roles {
		if err := s.participants.UpsertSide(roomID, userID, side); err != nil {
			log.Printf("failed to persist side %s for user %d in room %s: %v", side, userID, roomID, err)
		}
	}
}

// CompleteTurn 處理客戶端主動結束發言
// 只要房間在辯論中就接受，與計時器到期走同一條推進路徑
func (s *RoomService) CompleteTurn(roomID string, userID uint) error {
	room := s.registry.Get(roomID)
	if room == nil {
		return NewProtocolError(ErrCodeRoomNotFound, "房間不存在")
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Status != StatusDebating {
		return NewProtocolError(ErrCodeServerError, "辯論尚未開始")
	}

	s.advanceTurn(room)
	return nil
}

// advanceTurn 推進到下一回合，呼叫者須持有 room.mu
// 計時器到期與客戶端訊息都走這裡；turnChanging 讓推進中的第二次呼叫直接放棄
func (s *RoomService) advanceTurn(room *Room) {
	if room.Status != StatusDebating || room.turnChanging {
		return
	}
	room.turnChanging = true
	room.clearTimer()

	if room.Turn != "" {
		room.CompletedTurns[room.Turn] = true
	}
	room.TurnPosition++

	if room.TurnPosition >= len(room.TurnSequence) {
		// 雙方都發言完畢，辯論結束；終態不再安裝任何計時器
		room.Turn = ""
		room.Status = StatusFinished
		room.turnChanging = false
		log.Printf("debate in room %s finished", room.ID)

		s.notifier.BroadcastToRoom(room.ID, NewRoomEvent(EventDebateFinished, finishedData{Message: "辯論結束"}))
		go func() {
			if err := s.debates.UpdateStatusByRoomID(room.ID, models.DebateStatusFinished); err != nil {
				log.Printf("failed to mark debate %s finished: %v", room.ID, err)
			}
		}()
		return
	}

	room.Turn = room.TurnSequence[room.TurnPosition]
	room.setTimer(s.turnDuration, func() { s.advanceTurn(room) })
	room.turnChanging = false

	s.notifier.BroadcastToRoom(room.ID, NewRoomEvent(EventSpeakingTurn, speakingTurnData{
		Turn:          room.Turn,
		TimeRemaining: int(s.turnDuration.Seconds()),
	}))
}

// Leave 處理客戶端主動離開房間
func (s *RoomService) Leave(roomID string, connID string) {
	room := s.registry.Get(roomID)
	if room == nil {
		return
	}
	s.removeParticipant(room, connID)
}

// Disconnect 處理傳輸層斷線
// 客戶端可能沒送 leave_debate 就消失，必須掃過所有房間找出對應連線
// 每個命中的房間都執行同樣的清理，不在第一個命中後停下
func (s *RoomService) Disconnect(connID string) {
	for _, room := range s.registry.All() {
		s.removeParticipant(room, connID)
	}
}

// removeParticipant 移除指定連線的參與者並執行清空檢查
// 回傳是否確實有移除
func (s *RoomService) removeParticipant(room *Room, connID string) bool {
	room.mu.Lock()

	index := -1
	for i, p := range room.Participants {
		if p.ConnectionID == connID {
			index = i
			break
		}
	}
	if index < 0 {
		room.mu.Unlock()
		return false
	}

	departed := room.Participants[index]
	room.Participants = append(room.Participants[:index], room.Participants[index+1:]...)
	room.clearTimer()

	remaining := len(room.Participants)
	if remaining < maxParticipants && room.Status != StatusFinished {
		room.Status = StatusWaiting
		room.Turn = ""
		room.turnChanging = false
	}

	log.Printf("user %d left room %s (%d remaining)", departed.UserID, room.ID, remaining)
	s.notifier.BroadcastToRoom(room.ID, NewRoomEvent(EventUserLeft, userLeftData{
		ConnectionID: connID,
		UserID:       departed.UserID,
	}))

	if remaining == 0 && room.ID == s.testRoomID {
		// 常駐測試房清空後重設，不從註冊表移除
		room.reset()
	}
	room.mu.Unlock()

	if remaining <= 1 {
		// 請外部協作者把辯論列表狀態退回開放
		roomID := room.ID
		go func() {
			if err := s.debates.UpdateStatusByRoomID(roomID, models.DebateStatusOpen); err != nil {
				log.Printf("failed to reopen debate %s: %v", roomID, err)
			}
		}()
	}
	if remaining == 0 && room.ID != s.testRoomID {
		s.registry.Delete(room.ID)
		// 順手清掉外部儲存的參與者紀錄
		roomID := room.ID
		go func() {
			if err := s.participants.DeleteByRoomID(roomID); err != nil {
				log.Printf("failed to delete participant records for room %s: %v", roomID, err)
			}
		}()
	}
	return true
}
