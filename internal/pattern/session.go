package pattern

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/diffkemp/diffpat/internal/ir"
	"github.com/diffkemp/diffpat/internal/metadata"
)

// Session holds the traversal state of one comparison of a function pair.
// Each session sees the patterns registered when it was created; the
// registry's current session also receives patterns registered after
// Initialize. A session is not safe for concurrent use; concurrent
// comparisons use separate sessions.
type Session struct {
	ID     uuid.UUID
	NewFun *ir.Function
	OldFun *ir.Function

	patterns []*Pattern
	cursors  map[string]*Cursor
	index    map[*ir.Function]*Pattern
	active   *Pattern
}

func newSession(newFun, oldFun *ir.Function, patterns []*Pattern) *Session {
	s := &Session{
		ID:       uuid.New(),
		NewFun:   newFun,
		OldFun:   oldFun,
		patterns: make([]*Pattern, 0, len(patterns)),
		cursors:  make(map[string]*Cursor, len(patterns)),
		index:    make(map[*ir.Function]*Pattern, 2*len(patterns)),
	}
	for _, p := range patterns {
		s.add(p)
	}
	return s
}

// add gives p a cursor at its start positions.
func (s *Session) add(p *Pattern) {
	if _, ok := s.cursors[p.name]; ok {
		return
	}
	c := &Cursor{pattern: p}
	c.Reset()
	s.patterns = append(s.patterns, p)
	s.cursors[p.name] = c
	s.index[p.newPattern] = p
	s.index[p.oldPattern] = p
}

// Patterns returns the patterns visible to the session in load order.
func (s *Session) Patterns() []*Pattern {
	out := make([]*Pattern, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// Cursor returns the cursor of p, or nil if p is not part of the session.
func (s *Session) Cursor(p *Pattern) *Cursor {
	if p == nil {
		return nil
	}
	return s.cursors[p.name]
}

// Cursors returns all cursors in pattern load order.
func (s *Session) Cursors() []*Cursor {
	out := make([]*Cursor, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, s.cursors[p.name])
	}
	return out
}

// Activate restricts metadata queries to p.
func (s *Session) Activate(p *Pattern) error {
	if p == nil {
		return fmt.Errorf("cannot activate a nil pattern")
	}
	if s.Cursor(p) == nil {
		return fmt.Errorf("pattern %q is not part of session %s", p.Name(), s.ID)
	}
	s.active = s.cursors[p.name].pattern
	return nil
}

// Deactivate lifts the restriction set by Activate.
func (s *Session) Deactivate() {
	s.active = nil
}

// Active returns the pattern queries are restricted to, or nil.
func (s *Session) Active() *Pattern {
	return s.active
}

// Metadata copies the annotation of inst into out and reports whether one
// was found. The active pattern is searched if set, otherwise the pattern
// owning inst. On a miss out is left untouched.
func (s *Session) Metadata(out *metadata.PatternMetadata, inst *ir.Instruction) bool {
	md, ok := s.Lookup(inst)
	if !ok {
		return false
	}
	if out != nil {
		*out = md
	}
	return true
}

// Lookup returns the annotation of inst.
func (s *Session) Lookup(inst *ir.Instruction) (metadata.PatternMetadata, bool) {
	if inst == nil {
		return metadata.PatternMetadata{}, false
	}
	p := s.active
	if p == nil {
		p = s.index[inst.Function()]
	}
	if p == nil {
		return metadata.PatternMetadata{}, false
	}
	return p.Metadata(inst)
}

// Cursor tracks the current instruction of both halves of one pattern.
// A nil position means the half has been fully traversed.
type Cursor struct {
	pattern     *Pattern
	NewPosition *ir.Instruction
	OldPosition *ir.Instruction
}

// Pattern returns the pattern the cursor walks.
func (c *Cursor) Pattern() *Pattern { return c.pattern }

// Reset moves both positions back to the pattern's start positions.
func (c *Cursor) Reset() {
	c.NewPosition = c.pattern.newStartPosition
	c.OldPosition = c.pattern.oldStartPosition
}

// AdvanceNew moves the new position to the next instruction in layout order.
func (c *Cursor) AdvanceNew() *ir.Instruction {
	if c.NewPosition != nil {
		c.NewPosition = c.NewPosition.Next()
	}
	return c.NewPosition
}

// AdvanceOld moves the old position to the next instruction in layout order.
func (c *Cursor) AdvanceOld() *ir.Instruction {
	if c.OldPosition != nil {
		c.OldPosition = c.OldPosition.Next()
	}
	return c.OldPosition
}

// Advance moves both positions.
func (c *Cursor) Advance() {
	c.AdvanceNew()
	c.AdvanceOld()
}

// Done reports whether both halves are exhausted.
func (c *Cursor) Done() bool {
	return c.NewPosition == nil && c.OldPosition == nil
}

// AtStart reports whether both positions are at the start positions.
func (c *Cursor) AtStart() bool {
	return c.NewPosition == c.pattern.newStartPosition && c.OldPosition == c.pattern.oldStartPosition
}
