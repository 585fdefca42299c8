package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"debate_live/internal/models"
)

// fakeNotifier 記錄狀態機發出的所有事件
type fakeNotifier struct {
	mu         sync.Mutex
	broadcasts []*Event
	unicasts   map[string][]*Event // connID -> events
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{unicasts: make(map[string][]*Event)}
}

func (f *fakeNotifier) BroadcastToRoom(roomID string, event *Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, event)
}

func (f *fakeNotifier) SendToConnection(connID string, event *Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unicasts[connID] = append(f.unicasts[connID], event)
}

func (f *fakeNotifier) broadcastsOfType(eventType string) []*Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*Event
	for _, e := range f.broadcasts {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// fakeParticipantStore 模擬外部參與者儲存
type fakeParticipantStore struct {
	mu      sync.Mutex
	records []models.DebateParticipant
	upserts map[uint]string
	failAll bool
}

func newFakeParticipantStore() *fakeParticipantStore {
	return &fakeParticipantStore{upserts: make(map[uint]string)}
}

func (f *fakeParticipantStore) FindByRoomID(roomID string) ([]models.DebateParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("store unavailable")
	}
	return f.records, nil
}

func (f *fakeParticipantStore) UpsertSide(roomID string, userID uint, side string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("store unavailable")
	}
	f.upserts[userID] = side
	return nil
}

func (f *fakeParticipantStore) SetReady(roomID string, userID uint, isReady bool) error {
	if f.failAll {
		return errors.New("store unavailable")
	}
	return nil
}

func (f *fakeParticipantStore) DeleteByRoomID(roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = nil
	return nil
}

// fakeDebateStore 模擬辯論列表狀態更新
type fakeDebateStore struct {
	mu       sync.Mutex
	statuses []models.DebateStatus
}

func (f *fakeDebateStore) UpdateStatusByRoomID(roomID string, status models.DebateStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeDebateStore) lastStatus() models.DebateStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}

func newTestRoomService() (*RoomService, *RoomRegistry, *fakeNotifier, *fakeParticipantStore, *fakeDebateStore) {
	registry := NewRoomRegistry()
	notifier := newFakeNotifier()
	participants := newFakeParticipantStore()
	debates := &fakeDebateStore{}
	svc := NewRoomService(registry, notifier, participants, debates)
	return svc, registry, notifier, participants, debates
}

// waitFor 輪詢直到條件成立或超時
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}

func roomStatus(room *Room) RoomStatus {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.Status
}

func roomTurn(room *Room) string {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.Turn
}

// startDebating 把一個房間從加入一路推進到辯論中
func startDebating(t *testing.T, svc *RoomService, roomID string, turnDuration time.Duration) *Room {
	t.Helper()
	svc.SetTimings(2, time.Millisecond, turnDuration)

	if err := svc.Join(roomID, 1, "conn-1"); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if err := svc.Join(roomID, 2, "conn-2"); err != nil {
		t.Fatalf("second join failed: %v", err)
	}
	if err := svc.SetReady(roomID, 1, true); err != nil {
		t.Fatalf("first ready failed: %v", err)
	}
	if err := svc.SetReady(roomID, 2, true); err != nil {
		t.Fatalf("second ready failed: %v", err)
	}

	room := svc.registry.Get(roomID)
	if room == nil {
		t.Fatal("room not found after joins")
	}
	waitFor(t, time.Second, func() bool { return roomStatus(room) == StatusDebating }, "debate to start")
	return room
}

func TestJoinRejectsThirdParticipant(t *testing.T) {
	svc, registry, _, _, _ := newTestRoomService()

	if err := svc.Join("r1", 1, "conn-1"); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if err := svc.Join("r1", 2, "conn-2"); err != nil {
		t.Fatalf("second join failed: %v", err)
	}

	err := svc.Join("r1", 3, "conn-3")
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) || protocolErr.Code != ErrCodeDebateRoomFull {
		t.Fatalf("expected %s, got %v", ErrCodeDebateRoomFull, err)
	}

	room := registry.Get("r1")
	room.mu.Lock()
	count := len(room.Participants)
	room.mu.Unlock()
	if count != 2 {
		t.Errorf("expected 2 participants after rejected join, got %d", count)
	}
}

func TestJoinRejectsDuplicateUser(t *testing.T) {
	svc, _, _, _, _ := newTestRoomService()

	if err := svc.Join("r1", 1, "conn-1"); err != nil {
		t.Fatalf("first join failed: %v", err)
	}

	err := svc.Join("r1", 1, "conn-9")
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) || protocolErr.Code != ErrCodeUserAlreadyInDebate {
		t.Fatalf("expected %s, got %v", ErrCodeUserAlreadyInDebate, err)
	}
}

func TestJoinNotifiesExistingParticipant(t *testing.T) {
	svc, _, notifier, _, _ := newTestRoomService()

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")

	notifier.mu.Lock()
	joined := notifier.unicasts["conn-1"]
	notifier.mu.Unlock()
	if len(joined) != 1 || joined[0].Type != EventUserJoined {
		t.Fatalf("expected one user_joined unicast to conn-1, got %v", joined)
	}

	connected := notifier.broadcastsOfType(EventParticipantsConnected)
	if len(connected) != 1 {
		t.Fatalf("expected one debate_participants_connected broadcast, got %d", len(connected))
	}
}

func TestReadyRequiresTwoParticipants(t *testing.T) {
	svc, _, _, _, _ := newTestRoomService()

	svc.Join("r1", 1, "conn-1")
	err := svc.SetReady("r1", 1, true)
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) || protocolErr.Code != ErrCodeNotEnoughParticipants {
		t.Fatalf("expected %s, got %v", ErrCodeNotEnoughParticipants, err)
	}
}

func TestReadyRejectsOutsider(t *testing.T) {
	svc, _, _, _, _ := newTestRoomService()

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")

	err := svc.SetReady("r1", 99, true)
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) || protocolErr.Code != ErrCodeParticipantNotFound {
		t.Fatalf("expected %s, got %v", ErrCodeParticipantNotFound, err)
	}
}

func TestReadyUnknownRoom(t *testing.T) {
	svc, _, _, _, _ := newTestRoomService()

	err := svc.SetReady("missing", 1, true)
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) || protocolErr.Code != ErrCodeRoomNotFound {
		t.Fatalf("expected %s, got %v", ErrCodeRoomNotFound, err)
	}
}

// 情境 A：兩人加入、都準備好，倒數結束後以決定式角色開始辯論
func TestCountdownLeadsToDebateStart(t *testing.T) {
	svc, registry, notifier, participants, _ := newTestRoomService()
	svc.SetTimings(5, time.Millisecond, time.Hour)

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")
	svc.SetReady("r1", 1, true)
	svc.SetReady("r1", 2, true)

	room := registry.Get("r1")
	waitFor(t, time.Second, func() bool { return roomStatus(room) == StatusDebating }, "debate to start")

	ticks := notifier.broadcastsOfType(EventDebateCountdown)
	if len(ticks) != 6 {
		t.Fatalf("expected 6 countdown broadcasts (5..0), got %d", len(ticks))
	}
	for i, tick := range ticks {
		data := tick.Data.(countdownData)
		if data.Count != 5-i {
			t.Errorf("countdown broadcast %d: expected count %d, got %d", i, 5-i, data.Count)
		}
	}

	starts := notifier.broadcastsOfType(EventDebateStart)
	if len(starts) != 1 {
		t.Fatalf("expected one debate_start broadcast, got %d", len(starts))
	}
	start := starts[0].Data.(debateStartData)
	if start.FirstTurn != models.SidePro {
		t.Errorf("expected first turn pro, got %s", start.FirstTurn)
	}
	if start.Roles[1] != models.SidePro || start.Roles[2] != models.SideCon {
		t.Errorf("expected deterministic roles u1=pro u2=con, got %v", start.Roles)
	}

	// 決定式指派要寫回外部儲存
	waitFor(t, time.Second, func() bool {
		participants.mu.Lock()
		defer participants.mu.Unlock()
		return len(participants.upserts) == 2
	}, "roles to be persisted")
}

// 外部儲存已有完整的雙方指派時照單全收
func TestStoredRolesAdoptedVerbatim(t *testing.T) {
	svc, registry, notifier, participants, _ := newTestRoomService()
	svc.SetTimings(3, 5*time.Millisecond, time.Hour)
	participants.records = []models.DebateParticipant{
		{RoomID: "r1", UserID: 1, Side: models.SideCon},
		{RoomID: "r1", UserID: 2, Side: models.SidePro},
	}

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")
	svc.SetReady("r1", 1, true)
	svc.SetReady("r1", 2, true)

	room := registry.Get("r1")
	waitFor(t, time.Second, func() bool { return roomStatus(room) == StatusDebating }, "debate to start")

	start := notifier.broadcastsOfType(EventDebateStart)[0].Data.(debateStartData)
	if start.Roles[1] != models.SideCon || start.Roles[2] != models.SidePro {
		t.Errorf("expected stored roles u1=con u2=pro to be adopted, got %v", start.Roles)
	}
}

// 儲存讀取失敗時走決定式退回，辯論照常開始
func TestStoreFailureFallsBackToDeterministicRoles(t *testing.T) {
	svc, registry, notifier, participants, _ := newTestRoomService()
	svc.SetTimings(2, time.Millisecond, time.Hour)
	participants.failAll = true

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")
	svc.SetReady("r1", 1, true)
	svc.SetReady("r1", 2, true)

	room := registry.Get("r1")
	waitFor(t, time.Second, func() bool { return roomStatus(room) == StatusDebating }, "debate to start")

	start := notifier.broadcastsOfType(EventDebateStart)[0].Data.(debateStartData)
	if start.Roles[1] != models.SidePro || start.Roles[2] != models.SideCon {
		t.Errorf("expected deterministic fallback roles, got %v", start.Roles)
	}
}

// 連續多個 ready 事件只觸發一次倒數轉換
func TestRapidReadyTriggersSingleCountdown(t *testing.T) {
	svc, _, notifier, _, _ := newTestRoomService()
	svc.SetTimings(5, time.Hour, time.Hour) // 倒數不會真的走完

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")
	svc.SetReady("r1", 1, true)
	svc.SetReady("r1", 2, true)
	svc.SetReady("r1", 2, true)
	svc.SetReady("r1", 1, true)

	ready := notifier.broadcastsOfType(EventDebateReady)
	if len(ready) != 1 {
		t.Errorf("expected exactly one debate_ready broadcast, got %d", len(ready))
	}
}

// 情境 B：客戶端主動結束發言，pro -> con -> finished
func TestTurnCompleteAdvancesAndFinishes(t *testing.T) {
	svc, _, notifier, _, debates := newTestRoomService()
	room := startDebating(t, svc, "r1", time.Hour)

	if err := svc.CompleteTurn("r1", 1); err != nil {
		t.Fatalf("turn complete failed: %v", err)
	}
	if got := roomTurn(room); got != models.SideCon {
		t.Fatalf("expected turn con after first completion, got %q", got)
	}
	turns := notifier.broadcastsOfType(EventSpeakingTurn)
	if len(turns) != 1 {
		t.Fatalf("expected one speaking_turn broadcast, got %d", len(turns))
	}
	data := turns[0].Data.(speakingTurnData)
	if data.Turn != models.SideCon || data.TimeRemaining != 3600 {
		t.Errorf("unexpected speaking_turn data: %+v", data)
	}

	if err := svc.CompleteTurn("r1", 2); err != nil {
		t.Fatalf("second turn complete failed: %v", err)
	}
	if got := roomStatus(room); got != StatusFinished {
		t.Fatalf("expected finished status, got %s", got)
	}
	if len(notifier.broadcastsOfType(EventDebateFinished)) != 1 {
		t.Error("expected one debate_finished broadcast")
	}

	// 終態不再安裝計時器
	room.mu.Lock()
	timer := room.timer
	room.mu.Unlock()
	if timer != nil {
		t.Error("expected no live timer after finish")
	}

	waitFor(t, time.Second, func() bool { return debates.lastStatus() == models.DebateStatusFinished }, "final status write")
}

// 情境 C：計時器自然到期，結果與客戶端主動結束相同
func TestTurnExpirationAdvances(t *testing.T) {
	svc, registry, notifier, _, _ := newTestRoomService()
	svc.SetTimings(2, time.Millisecond, 10*time.Millisecond)

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")
	svc.SetReady("r1", 1, true)
	svc.SetReady("r1", 2, true)

	room := registry.Get("r1")
	waitFor(t, time.Second, func() bool { return roomStatus(room) == StatusFinished }, "debate to expire through both turns")

	turns := notifier.broadcastsOfType(EventSpeakingTurn)
	if len(turns) != 1 {
		t.Fatalf("expected one speaking_turn broadcast, got %d", len(turns))
	}
	if turns[0].Data.(speakingTurnData).Turn != models.SideCon {
		t.Errorf("expected expiration to hand the turn to con")
	}
	if len(notifier.broadcastsOfType(EventDebateFinished)) != 1 {
		t.Error("expected one debate_finished broadcast")
	}
}

// 已知行為：turn_complete 不驗證發送者是否為目前發言方
func TestTurnCompleteAcceptedFromNonSpeaker(t *testing.T) {
	svc, _, _, _, _ := newTestRoomService()
	room := startDebating(t, svc, "r1", time.Hour)

	// user 2 是 con，此刻輪到 pro 發言，依然被接受
	if err := svc.CompleteTurn("r1", 2); err != nil {
		t.Fatalf("turn complete from non-speaker rejected: %v", err)
	}
	if got := roomTurn(room); got != models.SideCon {
		t.Errorf("expected turn to advance to con, got %q", got)
	}
}

// turnChanging 設置期間的第二次推進是無操作
func TestAdvanceTurnNoOpWhileChanging(t *testing.T) {
	svc, _, _, _, _ := newTestRoomService()
	room := startDebating(t, svc, "r1", time.Hour)

	room.mu.Lock()
	room.turnChanging = true
	positionBefore := room.TurnPosition
	room.mu.Unlock()

	svc.CompleteTurn("r1", 1)

	room.mu.Lock()
	positionAfter := room.TurnPosition
	room.turnChanging = false
	room.mu.Unlock()

	if positionAfter != positionBefore {
		t.Errorf("expected no transition while turnChanging is set, position moved %d -> %d", positionBefore, positionAfter)
	}
}

// 情境 D：一人斷線後房間保留，列表狀態退回開放
func TestLeaveKeepsRoomWithOneRemaining(t *testing.T) {
	svc, registry, notifier, _, debates := newTestRoomService()

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")

	svc.Leave("r1", "conn-2")

	room := registry.Get("r1")
	if room == nil {
		t.Fatal("expected room to be retained with one participant")
	}
	room.mu.Lock()
	count := len(room.Participants)
	room.mu.Unlock()
	if count != 1 {
		t.Fatalf("expected 1 remaining participant, got %d", count)
	}

	left := notifier.broadcastsOfType(EventUserLeft)
	if len(left) != 1 {
		t.Fatalf("expected one user_left broadcast, got %d", len(left))
	}
	data := left[0].Data.(userLeftData)
	if data.ConnectionID != "conn-2" || data.UserID != 2 {
		t.Errorf("unexpected user_left data: %+v", data)
	}

	waitFor(t, time.Second, func() bool { return debates.lastStatus() == models.DebateStatusOpen }, "listing status to reopen")
}

// 情境 E：最後一人離開，房間從註冊表刪除
func TestLastLeaveDeletesRoom(t *testing.T) {
	svc, registry, _, _, _ := newTestRoomService()

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")
	svc.Leave("r1", "conn-1")
	svc.Leave("r1", "conn-2")

	if registry.Get("r1") != nil {
		t.Error("expected empty room to be deleted from registry")
	}
}

// 常駐測試房清空後重設為等待狀態，不會被刪除
func TestAlwaysAliveRoomResetInsteadOfDeleted(t *testing.T) {
	svc, registry, _, _, _ := newTestRoomService()
	svc.SetTestRoomID("demo")

	svc.Join("demo", 1, "conn-1")
	svc.Leave("demo", "conn-1")

	room := registry.Get("demo")
	if room == nil {
		t.Fatal("expected test room to survive emptying")
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.Status != StatusWaiting || len(room.Participants) != 0 {
		t.Errorf("expected reset waiting room, got status=%s participants=%d", room.Status, len(room.Participants))
	}
}

// 斷線走與主動離開相同的清理，包含掃描所有房間
func TestDisconnectScansAllRooms(t *testing.T) {
	svc, registry, _, _, _ := newTestRoomService()

	svc.Join("r1", 1, "conn-1")
	svc.Join("r2", 2, "conn-2")
	svc.Join("r2", 3, "conn-3")

	svc.Disconnect("conn-3")

	room := registry.Get("r2")
	room.mu.Lock()
	count := len(room.Participants)
	room.mu.Unlock()
	if count != 1 {
		t.Errorf("expected disconnect cleanup to remove the participant, got %d remaining", count)
	}

	// 無關房間不受影響
	other := registry.Get("r1")
	other.mu.Lock()
	otherCount := len(other.Participants)
	other.mu.Unlock()
	if otherCount != 1 {
		t.Errorf("expected unrelated room untouched, got %d participants", otherCount)
	}
}

// 同一條連線落在多個房間時，斷線要把每個房間都清理乾淨
func TestDisconnectCleansEveryMatchingRoom(t *testing.T) {
	svc, registry, _, _, _ := newTestRoomService()

	if err := svc.Join("rA", 1, "conn-1"); err != nil {
		t.Fatalf("join rA failed: %v", err)
	}
	if err := svc.Join("rB", 1, "conn-1"); err != nil {
		t.Fatalf("join rB failed: %v", err)
	}

	svc.Disconnect("conn-1")

	if registry.Get("rA") != nil {
		t.Error("expected rA emptied and deleted")
	}
	if registry.Get("rB") != nil {
		t.Error("expected rB emptied and deleted")
	}
}

// 結束後留下的一人等到新對手時，房間要能重新開始新的一場
func TestFinishedRoomRestartsWithNewOpponent(t *testing.T) {
	svc, registry, _, _, _ := newTestRoomService()
	room := startDebating(t, svc, "r1", time.Minute)

	if err := svc.CompleteTurn("r1", 1); err != nil {
		t.Fatalf("first turn complete failed: %v", err)
	}
	if err := svc.CompleteTurn("r1", 2); err != nil {
		t.Fatalf("second turn complete failed: %v", err)
	}
	if roomStatus(room) != StatusFinished {
		t.Fatalf("expected finished, got %s", roomStatus(room))
	}

	// 一人離開，新挑戰者補位
	svc.Leave("r1", "conn-2")
	if err := svc.Join("r1", 3, "conn-3"); err != nil {
		t.Fatalf("new opponent join failed: %v", err)
	}
	if got := roomStatus(room); got != StatusReady {
		t.Fatalf("expected ready after new opponent joined, got %s", got)
	}

	if err := svc.SetReady("r1", 1, true); err != nil {
		t.Fatalf("first ready failed: %v", err)
	}
	if err := svc.SetReady("r1", 3, true); err != nil {
		t.Fatalf("second ready failed: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return roomStatus(room) == StatusDebating
	}, "the rematch to start")

	if registry.Get("r1") != room {
		t.Error("expected the same room instance to host the rematch")
	}
}

// 離開會取消進行中的倒數，已取消的回呼不會再執行
func TestLeaveCancelsCountdown(t *testing.T) {
	svc, registry, notifier, _, _ := newTestRoomService()
	svc.SetTimings(5, 10*time.Millisecond, time.Hour)

	svc.Join("r1", 1, "conn-1")
	svc.Join("r1", 2, "conn-2")
	svc.SetReady("r1", 1, true)
	svc.SetReady("r1", 2, true)

	room := registry.Get("r1")
	if roomStatus(room) != StatusCountdown {
		t.Fatal("expected countdown to be running")
	}

	svc.Leave("r1", "conn-2")
	ticksAtLeave := len(notifier.broadcastsOfType(EventDebateCountdown))

	time.Sleep(50 * time.Millisecond)
	if got := len(notifier.broadcastsOfType(EventDebateCountdown)); got != ticksAtLeave {
		t.Errorf("countdown kept ticking after leave: %d -> %d", ticksAtLeave, got)
	}
	if got := roomStatus(room); got != StatusWaiting {
		t.Errorf("expected room back to waiting, got %s", got)
	}
}

// 同一時間最多只有一個存活的計時器，換新永遠先取消舊的
func TestTimerReplacedBeforeArming(t *testing.T) {
	room := newRoom("r1")

	var fired []int
	var mu sync.Mutex

	room.mu.Lock()
	room.setTimer(5*time.Millisecond, func() {
		mu.Lock()
		fired = append(fired, 1)
		mu.Unlock()
	})
	room.setTimer(5*time.Millisecond, func() {
		mu.Lock()
		fired = append(fired, 2)
		mu.Unlock()
	})
	room.mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 || fired[0] != 2 {
		t.Errorf("expected only the second timer to fire, got %v", fired)
	}
}

func TestClearedTimerNeverFires(t *testing.T) {
	room := newRoom("r1")

	fired := make(chan struct{}, 1)
	room.mu.Lock()
	room.setTimer(5*time.Millisecond, func() { fired <- struct{}{} })
	room.clearTimer()
	room.mu.Unlock()

	select {
	case <-fired:
		t.Error("cleared timer fired its callback")
	case <-time.After(30 * time.Millisecond):
	}
}
