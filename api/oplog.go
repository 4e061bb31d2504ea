package api

// Point is a single 2-D canvas coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Operation is one committed drawing action: a whole stroke with its points,
// color and brush width fixed at stroke-start time, attributed to the user
// that drew it. Operations are immutable once committed.
type Operation struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	BrushSize float64 `json:"brushSize"`
}

// OperationLog holds the ordered committed operations of one room plus a
// cursor into the undo/redo history. The visible state of the room is always
// exactly operations[0..cursor]; entries past the cursor are retained only to
// support redo and are never part of a snapshot.
//
// The log is not safe for concurrent use; callers serialize access through
// the owning room's critical section.
type OperationLog struct {
	operations []Operation
	cursor     int
}

// NewOperationLog returns an empty log with the cursor at -1
func NewOperationLog() *OperationLog {
	return &OperationLog{cursor: -1}
}

// Commit appends op, discarding any redo tail first so that a new edit
// invalidates the redo future, and moves the cursor to the new end.
// It always succeeds and returns the resulting visible prefix.
func (l *OperationLog) Commit(op Operation) []Operation {
	// Truncate and append under one caller-held critical section so no
	// reader can observe the tail gone but the new operation missing.
	l.operations = append(l.operations[:l.cursor+1], op)
	l.cursor = len(l.operations) - 1
	return l.Snapshot()
}

// Undo moves the cursor back one operation. Calling Undo with the cursor at
// -1 is a no-op. Nothing is discarded, so a subsequent Redo restores the
// operation. Returns the new visible prefix and cursor.
func (l *OperationLog) Undo() ([]Operation, int) {
	if l.cursor > -1 {
		l.cursor--
	}
	return l.Snapshot(), l.cursor
}

// Redo moves the cursor forward one operation. Calling Redo with the cursor
// at the end of the log is a no-op. Returns the new visible prefix and cursor.
func (l *OperationLog) Redo() ([]Operation, int) {
	if l.cursor < len(l.operations)-1 {
		l.cursor++
	}
	return l.Snapshot(), l.cursor
}

// Clear empties the log and resets the cursor. Irreversible: there is no
// undo of a clear, and nothing remains to redo into.
func (l *OperationLog) Clear() {
	l.operations = nil
	l.cursor = -1
}

// Snapshot returns a copy of the visible prefix for replay to a newly joined
// connection. The copy keeps later Commit truncation from aliasing a slice
// already handed to a broadcast.
func (l *OperationLog) Snapshot() []Operation {
	visible := l.operations[:l.cursor+1]
	out := make([]Operation, len(visible))
	copy(out, visible)
	return out
}

// Cursor returns the current committed-up-to index
func (l *OperationLog) Cursor() int {
	return l.cursor
}

// Len returns the total number of retained operations, including any redo tail
func (l *OperationLog) Len() int {
	return len(l.operations)
}
