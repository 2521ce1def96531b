package loader

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-spade/spade/lang/bincode"
	"github.com/go-spade/spade/lang/frame"
	"github.com/go-spade/spade/lang/heap"
	"github.com/go-spade/spade/lang/sig"
	"github.com/go-spade/spade/lang/spaderr"
	"gopkg.in/yaml.v3"
)

// LoadOptions configures a single Load invocation.
type LoadOptions struct {
	// ManifestDump, if non-nil, receives a YAML list with one entry per
	// module: the top-level module Load returns, then its submodules,
	// depth-first in name order. Each entry holds only the module's
	// qualified name; imported modules and metadata tables are not
	// written. Never required for Load to succeed.
	ManifestDump io.Writer
}

type pendingRef func(types map[string]*heap.Type) error

// Loader walks a program's import DAG and materializes heap objects and
// frame templates bottom-up (§4.3). A Loader is single-use per top-level
// Load call but safe to reuse across independent programs since its cache
// is keyed by absolute path.
type Loader struct {
	mgr *heap.Manager

	mu      sync.Mutex
	modules map[string]*heap.Module // absolute path -> module, the re-entrancy cache (§4.3)
	types   map[string]*heap.Type   // signature -> type, populated as classes are created
	pending []pendingRef
	initOrd []*heap.Module // post-order DAG collection (§4.3 step 8)

	depth int
}

func NewLoader(mgr *heap.Manager) *Loader {
	return &Loader{
		mgr:     mgr,
		modules: make(map[string]*heap.Module),
		types:   make(map[string]*heap.Type),
	}
}

// Load reads, verifies and materializes the program at path, recursively
// loading its imports first. It returns the top-level module and, for an
// executable, the entry method named by the program's entry index.
func (l *Loader) Load(ctx context.Context, path string, opts LoadOptions) (mod *heap.Module, entry *heap.Method, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}

	l.mu.Lock()
	l.depth++
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.depth--
		top := l.depth == 0
		l.mu.Unlock()
		if top && err == nil {
			if rerr := l.resolveAll(); rerr != nil {
				mod, entry, err = nil, nil, rerr
			}
		}
	}()

	mod, err = l.loadPath(ctx, absPath)
	if err != nil {
		return nil, nil, err
	}

	p, err := bincode.ReadFile(absPath)
	if err != nil {
		return nil, nil, err
	}

	if opts.ManifestDump != nil {
		if err := l.dumpManifest(opts.ManifestDump, mod); err != nil {
			return nil, nil, err
		}
	}

	if !p.IsExecutable() || p.EntryIdx == 0 {
		return mod, nil, nil
	}
	entryName, err := resolveString(p.Pool, p.EntryIdx)
	if err != nil {
		return nil, nil, err
	}
	entry, ok := mod.Methods[entryName]
	if !ok {
		return nil, nil, spaderr.NewIllegalAccess("entry method %q not found", entryName)
	}
	return mod, entry, nil
}

// loadPath loads a single file and its imports, without resolving
// pending references — that only happens once, when the outermost Load
// call returns, so a module may legally forward-reference a type defined
// by a sibling it imports later in its own import list.
func (l *Loader) loadPath(ctx context.Context, absPath string) (*heap.Module, error) {
	l.mu.Lock()
	if m, ok := l.modules[absPath]; ok {
		l.mu.Unlock()
		return m, nil
	}
	l.mu.Unlock()

	p, err := bincode.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	if err := Verify(p, absPath); err != nil {
		return nil, err
	}

	// Resolve and load imports first (§4.3 step 1): depth-first over the DAG.
	if p.ImportsIdx != 0 {
		importsConst := p.Pool[p.ImportsIdx]
		if importsConst.Tag == bincode.TagArray {
			for _, ic := range importsConst.Array {
				if ic.Tag != bincode.TagString {
					continue
				}
				importPath := ic.String
				if !filepath.IsAbs(importPath) {
					importPath = filepath.Join(filepath.Dir(absPath), importPath)
				}
				absImport, err := filepath.Abs(importPath)
				if err != nil {
					return nil, err
				}
				if _, err := l.loadPath(ctx, absImport); err != nil {
					return nil, err
				}
			}
		}
	}

	var topMod *heap.Module
	for i := range p.Modules {
		mod, err := l.loadModule(&p.Modules[i], "", absPath)
		if err != nil {
			return nil, err
		}
		if topMod == nil {
			topMod = mod
		}
	}
	if topMod == nil {
		return nil, spaderr.NewCorruptFile(absPath, "file contains no modules")
	}

	l.mu.Lock()
	topMod.AbsPath = absPath
	l.modules[absPath] = topMod
	l.initOrd = append(l.initOrd, topMod)
	l.mu.Unlock()

	return topMod, nil
}

// loadModule materializes one bincode.Module into a heap.Module (§4.3
// steps 2-6), recursing into submodules. Every index field on a Module,
// Class or Method resolves against the enclosing module's Pool, the same
// convention the verifier checks against. parentQualifier is the "::"
// joined path of enclosing modules, empty for a top-level module; the
// resulting heap.Module.Name is always the fully qualified path, matching
// the module-path grammar lang/sig parses.
func (l *Loader) loadModule(bm *bincode.Module, parentQualifier string, path string) (*heap.Module, error) {
	localName, err := resolveString(bm.Pool, bm.NameIdx)
	if err != nil {
		return nil, err
	}
	name := localName
	if parentQualifier != "" {
		name = parentQualifier + "::" + localName
	}

	hm := heap.NewModule(name)
	hm.State = heap.ModuleRead
	if err := l.halloc(hm); err != nil {
		return nil, err
	}

	pool, err := l.materializePool(bm.Pool)
	if err != nil {
		return nil, err
	}
	hm.Pool = pool

	if bm.InitIdx != 0 {
		initName, err := resolveString(bm.Pool, bm.InitIdx)
		if err == nil {
			hm.InitMethod = initName
		}
	}

	for i := range bm.Globals {
		g := &bm.Globals[i]
		gname, err := resolveString(bm.Pool, g.NameIdx)
		if err != nil {
			return nil, err
		}
		hm.Globals[gname] = &heap.Global{Value: heap.NullValue, AccessFlags: g.AccessFlags}
	}

	for i := range bm.Classes {
		typ, err := l.loadClass(&bm.Classes[i], bm.Pool, pool, hm, path)
		if err != nil {
			return nil, err
		}
		hm.Classes[typ.Sig] = typ
	}

	for i := range bm.Methods {
		m, _, err := l.buildMethod(&bm.Methods[i], bm.Pool, pool, hm, nil, path)
		if err != nil {
			return nil, err
		}
		hm.Methods[m.Name] = m
	}

	for i := range bm.Submodules {
		sub, err := l.loadModule(&bm.Submodules[i], name, path)
		if err != nil {
			return nil, err
		}
		localSubName, err := resolveString(bm.Submodules[i].Pool, bm.Submodules[i].NameIdx)
		if err != nil {
			return nil, err
		}
		hm.Submodules[localSubName] = sub
	}

	hm.State = heap.ModuleLoaded
	return hm, nil
}

func (l *Loader) loadClass(bc *bincode.Class, pool []bincode.Const, matPool []heap.Value, owner *heap.Module, path string) (*heap.Type, error) {
	name, err := resolveString(pool, bc.NameIdx)
	if err != nil {
		return nil, err
	}

	var supers []string
	if bc.SupersIdx != 0 {
		superConst := pool[bc.SupersIdx]
		if superConst.Tag == bincode.TagArray {
			for _, sc := range superConst.Array {
				if sc.Tag == bincode.TagString {
					supers = append(supers, sc.String)
				}
			}
		}
	}

	modSig, err := sig.Parse(owner.Name)
	if err != nil {
		return nil, spaderr.NewCorruptFile(path, fmt.Sprintf("module name %q is not a valid signature: %v", owner.Name, err))
	}
	classSig := modSig.Compose(name, nil)
	sign := classSig.String()

	typ := heap.NewType(heap.ClassKind(bc.Kind), sign, nil, supers)
	if err := l.halloc(typ); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.types[sign] = typ
	for idx, superSig := range supers {
		idx, superSig := idx, superSig
		l.pending = append(l.pending, func(types map[string]*heap.Type) error {
			t, ok := types[superSig]
			if !ok {
				return spaderr.NewIllegalAccess("unresolved supertype %q of %q", superSig, sign)
			}
			typ.Resolved[idx] = t
			return nil
		})
	}
	l.mu.Unlock()

	for i := range bc.Fields {
		f := &bc.Fields[i]
		fname, err := resolveString(pool, f.NameIdx)
		if err != nil {
			return nil, err
		}
		typ.Members.Put(fname, heap.Slot{Value: heap.NullValue, AccessFlags: f.AccessFlags})
	}

	for i := range bc.Methods {
		m, _, err := l.buildMethod(&bc.Methods[i], pool, matPool, owner, typ, path)
		if err != nil {
			return nil, err
		}
		typ.Members.Put(m.Name, heap.Slot{Value: m, AccessFlags: m.AccessFlags})
	}

	return typ, nil
}

// buildMethod constructs the heap.Method value and its frame.FrameTemplate
// (§4.3 step 5): arg/local slots get null placeholders and metadata; the
// exception table's type references are resolved lazily via the pending
// reference list.
func (l *Loader) buildMethod(bmethod *bincode.Method, pool []bincode.Const, matPool []heap.Value, owner *heap.Module, ownerType *heap.Type, path string) (*heap.Method, *frame.FrameTemplate, error) {
	name, err := resolveString(pool, bmethod.NameIdx)
	if err != nil {
		return nil, nil, err
	}

	var baseSig sig.Signature
	if ownerType != nil {
		baseSig, err = sig.Parse(ownerType.Sig)
	} else {
		baseSig, err = sig.Parse(owner.Name)
	}
	if err != nil {
		return nil, nil, spaderr.NewCorruptFile(path, fmt.Sprintf("method owner signature is invalid: %v", err))
	}
	baseSig.Method = &sig.MethodRef{Name: name}
	sign := baseSig.String()

	m := heap.NewMethod(name, sign, heap.MethodKind(bmethod.Kind), bmethod.AccessFlags, len(bmethod.Args))
	m.Owner = ownerType
	if err := l.halloc(m); err != nil {
		return nil, nil, err
	}

	args := make([]frame.SlotInfo, len(bmethod.Args))
	for i := range bmethod.Args {
		aname, err := resolveString(pool, bmethod.Args[i].NameIdx)
		if err != nil {
			return nil, nil, err
		}
		args[i] = frame.SlotInfo{Name: aname}
	}
	locals := make([]frame.SlotInfo, len(bmethod.Locals))
	for i := range bmethod.Locals {
		lname, err := resolveString(pool, bmethod.Locals[i].NameIdx)
		if err != nil {
			return nil, nil, err
		}
		locals[i] = frame.SlotInfo{Name: lname}
	}

	excTable := make(frame.ExceptionTable, len(bmethod.Exceptions))
	for i, e := range bmethod.Exceptions {
		entry := &excTable[i]
		entry.FromPC, entry.ToPC, entry.TargetPC = e.StartPC, e.EndPC, e.TargetPC
		if e.ExceptionIdx == 0 {
			continue // catch-all
		}
		excTypeSig, err := resolveString(pool, e.ExceptionIdx)
		if err != nil {
			return nil, nil, err
		}
		entryIdx := i
		l.mu.Lock()
		l.pending = append(l.pending, func(types map[string]*heap.Type) error {
			t, ok := types[excTypeSig]
			if !ok {
				return spaderr.NewIllegalAccess("unresolved exception type %q in method %q", excTypeSig, sign)
			}
			excTable[entryIdx].Type = t
			return nil
		})
		l.mu.Unlock()
	}

	lines := make(frame.LineTable, len(bmethod.Lines))
	for i, ln := range bmethod.Lines {
		lines[i] = frame.LineRun{Times: ln.Times, Line: ln.Line}
	}

	matches := make([]*frame.MatchTable, len(bmethod.Matches))
	for i, mr := range bmethod.Matches {
		cases := make([]frame.MatchCase, len(mr.Cases))
		for ci, c := range mr.Cases {
			v, err := l.constToValue(pool[c.ValueIdx])
			if err != nil {
				return nil, nil, err
			}
			cases[ci] = frame.MatchCase{Value: v, Target: c.Location}
		}
		matches[i] = frame.NewMatchTable(cases, mr.DefaultLocation)
	}

	tmpl := &frame.FrameTemplate{
		Method:       m,
		Module:       owner,
		Pool:         matPool,
		Code:         bmethod.Code,
		StackMax:     int(bmethod.StackMax),
		ClosureStart: int(bmethod.ClosureStart),
		Args:         args,
		Locals:       locals,
		Exceptions:   excTable,
		Lines:        lines,
		Matches:      matches,
	}
	m.Body = tmpl
	return m, tmpl, nil
}

// resolveAll runs the step-7 reference-pool resolution pass and, only once
// it has fully succeeded, the step-8 inherited-member merge: merging
// against a still-nil Resolved slot would silently skip a supertype rather
// than surface the missing symbol, so the merge must never run ahead of a
// clean resolution.
func (l *Loader) resolveAll() error {
	if err := l.ResolveAll(); err != nil {
		return err
	}
	l.mergeInheritedMembers()
	return nil
}

// mergeInheritedMembers flattens each type's resolved supertypes' member
// slots into its own Members table (§9's MRO-order design note), once
// every supertype reference has been patched in by the pending pass. A
// subtype's own declaration always wins over an inherited one of the same
// name; visited guards against a malformed cyclic hierarchy.
func (l *Loader) mergeInheritedMembers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	visited := make(map[*heap.Type]bool, len(l.types))
	var merge func(t *heap.Type)
	merge = func(t *heap.Type) {
		if t == nil || visited[t] {
			return
		}
		visited[t] = true
		for _, s := range t.Resolved {
			merge(s)
		}
		for _, s := range t.Resolved {
			if s == nil {
				continue
			}
			for _, name := range s.Members.Names() {
				if _, ok := t.Members.Get(name); ok {
					continue
				}
				slot, _ := s.Members.Get(name)
				t.Members.Put(name, slot)
			}
		}
	}
	for _, t := range l.types {
		merge(t)
	}
}

// ResolveAll runs the reference-pool resolution pass (§4.3 step 7) and
// returns the first unresolved-symbol error, if any: a program naming a
// missing supertype or exception type fails here rather than loading with
// a silently nil Resolved/Type entry. The outermost Load call always runs
// this (via resolveAll) before returning; exposed separately so tests can
// invoke just the resolution pass without the inherited-member merge.
func (l *Loader) ResolveAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.pending {
		if err := p(l.types); err != nil {
			return err
		}
	}
	return nil
}

// InitOrder returns the loaded modules in DAG post-order (§4.3 step 8):
// the order the VM should run module initializers in before the program
// entry point.
func (l *Loader) InitOrder() []*heap.Module {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*heap.Module, len(l.initOrd))
	copy(out, l.initOrd)
	return out
}

// halloc routes a newly constructed heap value through the loader's
// manager, if one was supplied; a Loader built with a nil manager (as
// tests do when they only care about structural materialization) skips
// allocation bookkeeping entirely.
func (l *Loader) halloc(v heap.Monitored) error {
	if l.mgr == nil {
		return nil
	}
	_, err := l.mgr.Halloc(v)
	return err
}

func (l *Loader) materializePool(pool []bincode.Const) ([]heap.Value, error) {
	out := make([]heap.Value, len(pool))
	for i, c := range pool {
		v, err := l.constToValue(c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (l *Loader) constToValue(c bincode.Const) (heap.Value, error) {
	switch c.Tag {
	case bincode.TagNull:
		return heap.NullValue, nil
	case bincode.TagTrue:
		return heap.Bool(true), nil
	case bincode.TagFalse:
		return heap.Bool(false), nil
	case bincode.TagChar:
		return heap.Char(c.Char), nil
	case bincode.TagInt:
		return heap.Int(c.Int), nil
	case bincode.TagFloat:
		return heap.Float(c.Float), nil
	case bincode.TagString:
		return heap.String(c.String), nil
	case bincode.TagArray:
		elems := make([]heap.Value, len(c.Array))
		for i, e := range c.Array {
			v, err := l.constToValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		arr := heap.NewArray(elems)
		if err := l.halloc(arr); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, spaderr.NewCorruptFile("", fmt.Sprintf("illegal constant tag %d", c.Tag))
}

func resolveString(pool []bincode.Const, idx uint16) (string, error) {
	if int(idx) >= len(pool) {
		return "", spaderr.NewIllegalAccess("name index %d out of range", idx)
	}
	c := pool[idx]
	if c.Tag != bincode.TagString {
		return "", spaderr.NewIllegalAccess("name index %d does not reference a string constant", idx)
	}
	return c.String, nil
}

func (l *Loader) dumpManifest(w io.Writer, mod *heap.Module) error {
	type manifest struct {
		Module string            `yaml:"module"`
		Meta   map[string]string `yaml:"meta,omitempty"`
	}
	var entries []manifest
	var walk func(m *heap.Module)
	walk = func(m *heap.Module) {
		entries = append(entries, manifest{Module: m.Name})
		names := make([]string, 0, len(m.Submodules))
		for n := range m.Submodules {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			walk(m.Submodules[n])
		}
	}
	walk(mod)
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(entries)
}
