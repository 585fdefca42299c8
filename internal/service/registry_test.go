package service

import "testing"

func TestGetOrCreateIsIdempotent(t *testing.T) {
	registry := NewRoomRegistry()

	first := registry.GetOrCreate("r1")
	second := registry.GetOrCreate("r1")
	if first != second {
		t.Error("expected the same room for repeated GetOrCreate")
	}

	if first.Status != StatusWaiting {
		t.Errorf("expected new room in waiting status, got %s", first.Status)
	}
	if first.Participants == nil || len(first.Participants) != 0 {
		t.Error("expected new room with empty participant list")
	}
	if first.Roles == nil || len(first.Roles) != 0 {
		t.Error("expected new room with empty roles map")
	}
}

func TestGetReturnsNilForUnknownRoom(t *testing.T) {
	registry := NewRoomRegistry()
	if registry.Get("missing") != nil {
		t.Error("expected nil for unknown room")
	}
}

func TestDeleteRemovesRoom(t *testing.T) {
	registry := NewRoomRegistry()
	registry.GetOrCreate("r1")
	registry.Delete("r1")
	if registry.Get("r1") != nil {
		t.Error("expected room gone after delete")
	}
}

// 歷史上出現過的名單損毀要在取用時修復
func TestGetOrCreateRepairsCorruptedParticipants(t *testing.T) {
	registry := NewRoomRegistry()

	room := registry.GetOrCreate("r1")
	room.mu.Lock()
	room.Participants = nil
	room.mu.Unlock()

	repaired := registry.GetOrCreate("r1")
	repaired.mu.Lock()
	defer repaired.mu.Unlock()
	if repaired.Participants == nil {
		t.Error("expected corrupted participants to be reset to an empty list")
	}
}

func TestAllReturnsEveryRoom(t *testing.T) {
	registry := NewRoomRegistry()
	registry.GetOrCreate("r1")
	registry.GetOrCreate("r2")

	if got := len(registry.All()); got != 2 {
		t.Errorf("expected 2 rooms, got %d", got)
	}
}
