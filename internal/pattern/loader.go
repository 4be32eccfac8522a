package pattern

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/diffkemp/diffpat/internal/config"
	"github.com/diffkemp/diffpat/internal/errors"
	"github.com/diffkemp/diffpat/internal/ir"
	"github.com/diffkemp/diffpat/internal/ir/parser"
	"github.com/diffkemp/diffpat/internal/metadata"
)

// parsedFile is a pattern file parsed into its own context, not yet
// registered.
type parsedFile struct {
	path   string
	hash   string
	ctx    *ir.Context
	module *ir.Module
	err    error
}

// release disposes the file's context when nothing from it was registered.
func (pf *parsedFile) release() {
	if pf.ctx != nil {
		pf.ctx.Dispose()
	}
}

// parsePatternFile reads path into a fresh context. It touches no registry
// state and may run concurrently for different files.
func (c *Comparator) parsePatternFile(path string) *parsedFile {
	pf := &parsedFile{path: path}

	source, err := os.ReadFile(path)
	if err != nil {
		pf.err = errors.NewPatternLoadError(errors.ErrPatternParse, path, "", "failed to read pattern file", err)
		return pf
	}
	sum := sha256.Sum256(source)
	pf.hash = hex.EncodeToString(sum[:])

	ctx := ir.NewContext()
	module, err := parser.ParseSource(ctx, path, source)
	if err != nil {
		ctx.Dispose()
		pf.err = errors.NewPatternLoadError(errors.ErrPatternParse, path, "", "failed to parse pattern file", err)
		return pf
	}

	pf.ctx = ctx
	pf.module = module
	return pf
}

// buildPatterns pairs the old and new halves found in module and
// initializes a Pattern for every complete pair. Incomplete or invalid pairs
// are reported in the returned errors.
func (c *Comparator) buildPatterns(module *ir.Module, path string, settings config.Settings) ([]*Pattern, []error) {
	names := patternNames(module)
	if len(names) == 0 {
		return nil, []error{errors.NewPatternLoadError(errors.ErrPatternEmpty, path, "",
			fmt.Sprintf("no functions named %s<name> or %s<name>", OldPrefix, NewPrefix), nil)}
	}

	var patterns []*Pattern
	var errs []error
	for _, name := range names {
		oldFn := module.Function(OldPrefix + name)
		newFn := module.Function(NewPrefix + name)

		switch {
		case oldFn == nil:
			errs = append(errs, errors.NewPatternLoadError(errors.ErrPatternMissingHalf, path, name,
				fmt.Sprintf("missing old half @%s%s", OldPrefix, name), nil))
			continue
		case newFn == nil:
			errs = append(errs, errors.NewPatternLoadError(errors.ErrPatternMissingHalf, path, name,
				fmt.Sprintf("missing new half @%s%s", NewPrefix, name), nil))
			continue
		case oldFn.IsDeclaration() || newFn.IsDeclaration():
			errs = append(errs, errors.NewPatternLoadError(errors.ErrPatternNoBody, path, name,
				"both halves must be defined, not declared", nil))
			continue
		}

		if settings.Bool(config.KeyStrictSignatures, false) && oldFn.Signature() != newFn.Signature() {
			errs = append(errs, errors.NewPatternLoadError(errors.ErrPatternSignature, path, name,
				fmt.Sprintf("signatures differ: old %s, new %s", oldFn.Signature(), newFn.Signature()), nil))
			continue
		}

		p := newPattern(name, newFn, oldFn, path, settings)
		if err := c.initializePattern(p); err != nil {
			errs = append(errs, err)
			continue
		}
		patterns = append(patterns, p)
	}
	return patterns, errs
}

// patternNames collects pattern names from both prefixes in definition order.
func patternNames(module *ir.Module) []string {
	seen := make(map[string]bool)
	var names []string
	for _, fn := range module.Functions() {
		var name string
		switch {
		case strings.HasPrefix(fn.Name, OldPrefix):
			name = strings.TrimPrefix(fn.Name, OldPrefix)
		case strings.HasPrefix(fn.Name, NewPrefix):
			name = strings.TrimPrefix(fn.Name, NewPrefix)
		default:
			continue
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// initializePattern decodes the metadata of both halves and computes the
// start positions. Malformed metadata is handled per the pattern's
// parse-failure policy; under PolicyError the pattern is rejected.
func (c *Comparator) initializePattern(p *Pattern) error {
	policy := p.settings.Policy()

	for _, fn := range []*ir.Function{p.newPattern, p.oldPattern} {
		for _, inst := range fn.Instructions() {
			node := inst.Metadata(MetadataName)
			if node == nil {
				continue
			}

			md, err := metadata.DecodeNode(node)
			if err == nil {
				p.metadataMap[inst] = md
				continue
			}

			var mdErr *errors.MetadataDecodeError
			if errors.As(err, &mdErr) {
				mdErr.Path = p.path
				mdErr.Function = fn.Name
				mdErr.Line = inst.Line
			}
			c.metrics.decodeFailed(policy)

			switch policy {
			case config.PolicyError:
				return errors.NewPatternLoadError(errors.ErrPatternMetadata, p.path, p.name,
					"malformed pattern metadata", err)
			case config.PolicyWarn:
				c.logger.Warn("ignoring malformed pattern metadata",
					zap.String("pattern", p.name),
					zap.String("function", fn.Name),
					zap.Int("line", inst.Line),
					zap.Error(err))
			case config.PolicyIgnore:
			}
		}
	}

	p.newStartPosition = startPosition(p.newPattern, p.metadataMap)
	p.oldStartPosition = startPosition(p.oldPattern, p.metadataMap)
	if p.newStartPosition == nil || p.oldStartPosition == nil {
		return errors.NewPatternLoadError(errors.ErrPatternNoBody, p.path, p.name,
			"pattern half has no instruction to align", nil)
	}
	return nil
}

// startPosition returns the first instruction that is not a structural
// anchor (stack allocation or debug intrinsic). An instruction marked
// first-difference ends the search even if it is structural.
func startPosition(fn *ir.Function, annotations map[*ir.Instruction]metadata.PatternMetadata) *ir.Instruction {
	for _, inst := range fn.Instructions() {
		if md, ok := annotations[inst]; ok && md.FirstDifference {
			return inst
		}
		if inst.IsAlloca() || inst.IsDebugIntrinsic() {
			continue
		}
		return inst
	}
	return nil
}
