// Package pattern loads difference patterns and answers the queries an
// instruction-level function comparator makes while walking an old/new
// function pair.
//
// A pattern file is an IR module holding, for every pattern P, a function
// named OldPrefix+P and one named NewPrefix+P. Instructions of either half
// may carry a MetadataName attachment describing matching tolerances (see
// package metadata).
//
// The Comparator owns every loaded module together with its ir.Context.
// Patterns, functions and instructions handed out by a Comparator are valid
// until Close.
package pattern

import (
	"github.com/diffkemp/diffpat/internal/config"
	"github.com/diffkemp/diffpat/internal/ir"
	"github.com/diffkemp/diffpat/internal/metadata"
)

const (
	// MetadataName is the attachment name of pattern metadata nodes.
	MetadataName = "diffkemp.pattern"
	// NewPrefix prefixes the new half of a pattern.
	NewPrefix = "diffkemp.new."
	// OldPrefix prefixes the old half of a pattern.
	OldPrefix = "diffkemp.old."
)

// Pattern is a named old/new function pair describing one approved
// difference. Patterns are identified by name.
type Pattern struct {
	name       string
	newPattern *ir.Function
	oldPattern *ir.Function
	path       string
	settings   config.Settings

	metadataMap      map[*ir.Instruction]metadata.PatternMetadata
	newStartPosition *ir.Instruction
	oldStartPosition *ir.Instruction
}

func newPattern(name string, newFn, oldFn *ir.Function, path string, settings config.Settings) *Pattern {
	return &Pattern{
		name:        name,
		newPattern:  newFn,
		oldPattern:  oldFn,
		path:        path,
		settings:    settings,
		metadataMap: make(map[*ir.Instruction]metadata.PatternMetadata),
	}
}

// Name returns the pattern name (the function name without its prefix).
func (p *Pattern) Name() string { return p.name }

// NewPattern returns the new half.
func (p *Pattern) NewPattern() *ir.Function { return p.newPattern }

// OldPattern returns the old half.
func (p *Pattern) OldPattern() *ir.Function { return p.oldPattern }

// NewStartPosition returns the first instruction of the new half to align.
func (p *Pattern) NewStartPosition() *ir.Instruction { return p.newStartPosition }

// OldStartPosition returns the first instruction of the old half to align.
func (p *Pattern) OldStartPosition() *ir.Instruction { return p.oldStartPosition }

// Path returns the file the pattern was loaded from.
func (p *Pattern) Path() string { return p.path }

// Settings returns the effective settings the pattern was loaded with.
func (p *Pattern) Settings() config.Settings { return p.settings }

// Metadata returns the annotation of inst. Instructions without one report
// false; callers should treat them as carrying metadata.New().
func (p *Pattern) Metadata(inst *ir.Instruction) (metadata.PatternMetadata, bool) {
	md, ok := p.metadataMap[inst]
	return md, ok
}

// Annotated returns the annotated instructions of one half in layout order.
func (p *Pattern) Annotated(fn *ir.Function) []*ir.Instruction {
	var out []*ir.Instruction
	for _, inst := range fn.Instructions() {
		if _, ok := p.metadataMap[inst]; ok {
			out = append(out, inst)
		}
	}
	return out
}

// NumAnnotated returns the number of annotated instructions in both halves.
func (p *Pattern) NumAnnotated() int {
	return len(p.metadataMap)
}

// Contains reports whether inst belongs to either half.
func (p *Pattern) Contains(inst *ir.Instruction) bool {
	fn := inst.Function()
	return fn != nil && (fn == p.newPattern || fn == p.oldPattern)
}

// Key returns the identity of the pattern.
func (p *Pattern) Key() string { return p.name }

// Equal reports whether both patterns have the same identity.
func (p *Pattern) Equal(other *Pattern) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.name == other.name
}
