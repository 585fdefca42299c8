package service

import "encoding/json"

// 客戶端送入的事件類型
const (
	EventJoinDebate   = "join_debate"
	EventLeaveDebate  = "leave_debate"
	EventReady        = "ready"
	EventTurnComplete = "turn_complete"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice_candidate"
)

// 伺服器送出的事件類型
const (
	EventUserJoined            = "user_joined"
	EventUserLeft              = "user_left"
	EventParticipantsConnected = "debate_participants_connected"
	EventUserReady             = "user_ready"
	EventDebateReady           = "debate_ready"
	EventDebateCountdown       = "debate_countdown"
	EventDebateStart           = "debate_start"
	EventSpeakingTurn          = "speaking_turn"
	EventDebateFinished        = "debate_finished"
	EventDebateError           = "debate_error"
)

// 協議錯誤代碼，只會單獨傳給出錯的那條連線
const (
	ErrCodeMissingInfo           = "MISSING_INFO"
	ErrCodeUserAlreadyInDebate   = "USER_ALREADY_IN_DEBATE"
	ErrCodeDebateRoomFull        = "DEBATE_ROOM_FULL"
	ErrCodeCannotJoinOwnDebate   = "CANNOT_JOIN_OWN_DEBATE"
	ErrCodeRoomNotFound          = "ROOM_NOT_FOUND"
	ErrCodeNotEnoughParticipants = "NOT_ENOUGH_PARTICIPANTS"
	ErrCodeParticipantNotFound   = "PARTICIPANT_NOT_FOUND"
	ErrCodeServerError           = "SERVER_ERROR"
)

// Event 代表一個統一的即時事件結構，同時滿足收訊解析與送訊序列化需求
type Event struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	UserID  uint            `json:"userId,omitempty"`
	IsReady *bool           `json:"isReady,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"` // WebRTC 信令內容，不做任何解讀
	From    string          `json:"from,omitempty"`    // 轉發信令時附上來源連線 ID
	Data    interface{}     `json:"data,omitempty"`    // 伺服器事件的附加資料
}

// ProtocolError 代表一個會回傳給客戶端的協議錯誤
type ProtocolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ProtocolError) Error() string {
	return e.Code + ": " + e.Message
}

func NewProtocolError(code, message string) *ProtocolError {
	return &ProtocolError{Code: code, Message: message}
}

// NewRoomEvent 創建一個帶附加資料的伺服器事件
func NewRoomEvent(eventType string, data interface{}) *Event {
	return &Event{Type: eventType, Data: data}
}

// NewErrorEvent 創建一個 debate_error 事件
func NewErrorEvent(err *ProtocolError) *Event {
	return &Event{Type: EventDebateError, Data: err}
}

// NewSignalEvent 創建一個轉發用的信令事件，附上來源連線 ID
func NewSignalEvent(eventType string, payload json.RawMessage, from string) *Event {
	return &Event{Type: eventType, Payload: payload, From: from}
}
