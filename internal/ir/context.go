// Package ir models the part of a compiled intermediate representation that
// difference patterns are written in: modules, functions, basic blocks,
// instructions and the metadata nodes attached to them.
//
// Every module is created inside a Context. A Context owns the types and
// metadata of the modules parsed into it, so modules loaded from different
// files never share symbols. Contexts are released with Dispose; after that,
// every Function and Instruction obtained from them must no longer be used.
package ir

import (
	"sync"

	"github.com/google/uuid"
)

// Context is an isolated compilation unit owning interned types and modules.
//
// Thread Safety: a Context may be populated by one goroutine while other
// goroutines populate different Contexts. Type interning is guarded so a
// finished Context may be read concurrently.
type Context struct {
	ID uuid.UUID

	mu       sync.Mutex
	types    map[string]*Type
	modules  []*Module
	disposed bool
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{
		ID:    uuid.New(),
		types: make(map[string]*Type),
	}
}

// Type returns the interned type with the given textual name.
func (c *Context) Type(name string) *Type {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.types[name]; ok {
		return t
	}
	if c.types == nil {
		c.types = make(map[string]*Type)
	}
	t := &Type{Name: name, ctx: c}
	c.types[name] = t
	return t
}

// NewModule creates a module owned by this context.
func (c *Context) NewModule(name, sourcePath string) *Module {
	m := &Module{
		Name:          name,
		SourcePath:    sourcePath,
		ctx:           c,
		funcIndex:     make(map[string]*Function),
		metadata:      make(map[int]*MDNode),
		namedMetadata: make(map[string]*MDNode),
	}

	c.mu.Lock()
	c.modules = append(c.modules, m)
	c.mu.Unlock()

	return m
}

// Modules returns the modules owned by this context.
func (c *Context) Modules() []*Module {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Module, len(c.modules))
	copy(out, c.modules)
	return out
}

// Dispose releases every module owned by the context. Calling Dispose more
// than once is a no-op.
func (c *Context) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	for _, m := range c.modules {
		m.release()
	}
	c.modules = nil
	c.types = nil
	c.disposed = true
}

// Disposed reports whether Dispose has been called.
func (c *Context) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Type is an IR type, interned per Context by its textual form.
type Type struct {
	Name string
	ctx  *Context
}

// String returns the textual form of the type
func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	return t.Name
}

// Context returns the context the type was interned in.
func (t *Type) Context() *Context {
	return t.ctx
}
