package absence

// UndoCapacity is the number of edits that remain reversible.
const UndoCapacity = 20

// UndoAction records one edit of one slot. Next is nil when the edit removed
// the slot's entry; Prev is nil when the slot was empty before the edit.
// Both nil means the edit was a no-op.
type UndoAction struct {
	Next *Entry
	Prev *Entry
}

// Slot returns the slot the action touched, if it touched one.
func (a UndoAction) Slot() (Slot, bool) {
	switch {
	case a.Prev != nil:
		return a.Prev.Slot(), true
	case a.Next != nil:
		return a.Next.Slot(), true
	}
	return Slot{}, false
}

// UndoStack is a bounded LIFO. Pushing at capacity drops the oldest action.
// Actions hold copies of entry values, never references into live state.
type UndoStack struct {
	actions  []UndoAction
	capacity int
}

func NewUndoStack(capacity int) *UndoStack {
	if capacity <= 0 {
		capacity = UndoCapacity
	}
	return &UndoStack{actions: make([]UndoAction, 0, capacity), capacity: capacity}
}

func (s *UndoStack) Push(a UndoAction) {
	a = UndoAction{Next: cloneEntry(a.Next), Prev: cloneEntry(a.Prev)}
	if len(s.actions) == s.capacity {
		copy(s.actions, s.actions[1:])
		s.actions = s.actions[:len(s.actions)-1]
	}
	s.actions = append(s.actions, a)
}

func (s *UndoStack) Pop() (UndoAction, bool) {
	if len(s.actions) == 0 {
		return UndoAction{}, false
	}
	a := s.actions[len(s.actions)-1]
	s.actions = s.actions[:len(s.actions)-1]
	return a, true
}

func (s *UndoStack) Len() int { return len(s.actions) }

func (s *UndoStack) Capacity() int { return s.capacity }

func (s *UndoStack) Clear() { s.actions = s.actions[:0] }
