package stepper

import (
	"fmt"
	"strings"
	"sync"

	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

const localGotoToken = "goto "

// Submission is one script command handed to the session worker. Epoch ties
// the eventual completion back to the script that produced it.
type Submission struct {
	Epoch   uint64
	Index   int
	Command string
}

// Stepper walks a submitted script one command at a time. It never runs
// anything itself: every transition that needs work returns a Submission.
type Stepper struct {
	mu       sync.Mutex
	commands []string
	cursor   int
	mode     entity.StepMode
	busy     bool
	epoch    uint64
	// jumped marks a goto received while a command was outstanding
	jumped bool

	logger output.LoggerPort
}

func New(logger output.LoggerPort) *Stepper {
	return &Stepper{mode: entity.ModeManual, logger: logger}
}

// Load replaces any current script. Nothing is submitted until Next or a
// switch to auto mode.
func (s *Stepper) Load(text string) entity.ScriptState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.commands = entity.SplitCommands(text)
	s.cursor = 0
	s.mode = entity.ModeManual
	s.busy = false
	s.jumped = false
	s.logger.Info("Script loaded", "commands", len(s.commands), "epoch", s.epoch)
	return s.stateLocked()
}

func (s *Stepper) Next() (*Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy || s.cursor >= len(s.commands) {
		return nil, false
	}
	return s.submitLocked()
}

// Complete reports that the submission of epoch finished. Completions from
// an aborted or replaced script are ignored.
func (s *Stepper) Complete(epoch uint64) (*Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || !s.busy {
		s.logger.Debug("Ignoring stale completion", "epoch", epoch, "current", s.epoch)
		return nil, false
	}
	s.busy = false

	if s.jumped {
		s.jumped = false
		if s.mode == entity.ModeAuto {
			return s.submitLocked()
		}
		return nil, false
	}

	if s.mode == entity.ModeAuto {
		if s.cursor+1 < len(s.commands) {
			s.cursor++
			return s.submitLocked()
		}
		s.clearLocked()
		return nil, false
	}

	s.cursor++
	if s.cursor >= len(s.commands) {
		s.clearLocked()
	}
	return nil, false
}

// Goto moves the cursor to the first command labelled "label.". The jump
// submits nothing on its own. A goto raised by work of an earlier epoch is
// ignored.
func (s *Stepper) Goto(epoch uint64, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return fmt.Errorf("goto %q from epoch %d, current %d: %w", label, epoch, s.epoch, entity.ErrStaleEpoch)
	}
	idx := s.findLocked(label)
	if idx < 0 {
		return fmt.Errorf("goto %q: %w", label, entity.ErrLabelNotFound)
	}
	s.cursor = idx
	if s.busy {
		s.jumped = true
	}
	s.logger.Info("Goto", "label", label, "cursor", idx)
	return nil
}

func (s *Stepper) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.clearLocked()
	s.logger.Info("Script aborted", "epoch", s.epoch)
}

// SetMode switches between manual and auto. Entering auto while idle kicks
// the current command.
func (s *Stepper) SetMode(mode entity.StepMode) (*Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = mode
	if mode != entity.ModeAuto || s.busy || s.cursor >= len(s.commands) {
		return nil, false
	}
	return s.submitLocked()
}

// Edit replaces the current command before it is submitted.
func (s *Stepper) Edit(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy || s.cursor >= len(s.commands) {
		return false
	}
	s.commands[s.cursor] = strings.TrimRight(text, " \t\r\n")
	return true
}

func (s *Stepper) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commands) > 0
}

func (s *Stepper) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Stepper) State() entity.ScriptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// submitLocked hands out commands[cursor], first resolving local goto lines.
func (s *Stepper) submitLocked() (*Submission, bool) {
	for hops := 0; hops <= len(s.commands); hops++ {
		if s.cursor >= len(s.commands) {
			s.clearLocked()
			return nil, false
		}

		command := s.commands[s.cursor]
		idx := -1
		if label, ok := localGoto(command); ok {
			idx = s.findLocked(label)
			if idx < 0 {
				s.logger.Debug("Local goto target missing, dispatching as command", "label", label)
			}
		}
		if idx < 0 {
			s.busy = true
			return &Submission{Epoch: s.epoch, Index: s.cursor, Command: command}, true
		}

		s.logger.Debug("Local goto", "cursor", idx)
		s.cursor = idx
		if s.mode != entity.ModeAuto {
			return nil, false
		}
	}

	s.logger.Warn("Script jumps in a loop without commands, stopping")
	s.clearLocked()
	return nil, false
}

func (s *Stepper) findLocked(label string) int {
	prefix := label + "."
	for i, c := range s.commands {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

func (s *Stepper) clearLocked() {
	s.commands = nil
	s.cursor = 0
	s.mode = entity.ModeManual
	s.busy = false
	s.jumped = false
}

func (s *Stepper) stateLocked() entity.ScriptState {
	commands := make([]string, len(s.commands))
	for i, c := range s.commands {
		commands[i] = entity.MaskAssignment(c)
	}
	return entity.ScriptState{
		Commands: commands,
		Cursor:   s.cursor,
		Mode:     s.mode,
		Busy:     s.busy,
	}
}

func localGoto(command string) (string, bool) {
	i := strings.Index(command, localGotoToken)
	if i < 0 {
		return "", false
	}
	label := strings.TrimSpace(command[i+len(localGotoToken):])
	return label, label != ""
}
