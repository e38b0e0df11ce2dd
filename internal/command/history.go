package command

import (
	"errors"
	"fmt"
	"log/slog"
)

type entry struct {
	cmd     Command
	corrupt bool
}

// History is a linear undo/redo log. Entries before the cursor are applied;
// entries after it were undone and are dropped by the next Execute.
type History struct {
	log       []entry
	cursor    int
	limit     int
	executing bool
}

// NewHistory creates a history keeping at most limit entries. Zero or a
// negative limit keeps everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Execute runs cmd and records it. A failed command is not recorded.
func (h *History) Execute(cmd Command) error {
	if h.executing {
		return ErrBusy
	}
	h.executing = true
	err := cmd.Do()
	h.executing = false
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}

	clear(h.log[h.cursor:])
	h.log = append(h.log[:h.cursor], entry{cmd: cmd})
	h.cursor++

	if h.limit > 0 && len(h.log) > h.limit {
		drop := len(h.log) - h.limit
		clear(h.log[:drop])
		h.log = h.log[drop:]
		h.cursor -= drop
	}
	return nil
}

// Undo reverts the command just before the cursor.
func (h *History) Undo() (Command, error) {
	if h.executing {
		return nil, ErrBusy
	}
	if h.cursor == 0 {
		return nil, ErrNothingToUndo
	}
	e := &h.log[h.cursor-1]
	if e.corrupt {
		return e.cmd, fmt.Errorf("undo %s: %w", e.cmd.Name(), ErrHistoryCorruption)
	}

	h.executing = true
	err := e.cmd.Undo()
	h.executing = false
	if err != nil {
		return e.cmd, h.fail(e, "undo", err)
	}
	h.cursor--
	return e.cmd, nil
}

// Redo re-applies the command at the cursor.
func (h *History) Redo() (Command, error) {
	if h.executing {
		return nil, ErrBusy
	}
	if h.cursor >= len(h.log) {
		return nil, ErrNothingToRedo
	}
	e := &h.log[h.cursor]
	if e.corrupt {
		return e.cmd, fmt.Errorf("redo %s: %w", e.cmd.Name(), ErrHistoryCorruption)
	}

	h.executing = true
	err := e.cmd.Do()
	h.executing = false
	if err != nil {
		return e.cmd, h.fail(e, "redo", err)
	}
	h.cursor++
	return e.cmd, nil
}

// fail latches corruption on e so the entry is never replayed against an
// inconsistent scene.
func (h *History) fail(e *entry, op string, err error) error {
	if errors.Is(err, ErrHistoryCorruption) {
		e.corrupt = true
		slog.Error("command history corrupted", "op", op, "command", e.cmd.Name(), "error", err)
	}
	return fmt.Errorf("%s %s: %w", op, e.cmd.Name(), err)
}

func (h *History) CanUndo() bool { return h.cursor > 0 && !h.log[h.cursor-1].corrupt }

func (h *History) CanRedo() bool { return h.cursor < len(h.log) && !h.log[h.cursor].corrupt }

// Cursor returns the number of applied commands.
func (h *History) Cursor() int { return h.cursor }

func (h *History) Len() int { return len(h.log) }

// Clear forgets every entry, corrupt ones included.
func (h *History) Clear() {
	clear(h.log)
	h.log = h.log[:0]
	h.cursor = 0
}
