// Package scheme implements the declarative bit-level scheme interpreter
// described in spec §4.2: a static, ordered list of directives evaluated
// against a bit reader plus a local (per-NALU) and a global
// (cross-NALU) field map.
//
// A scheme is kept as a []Directive list. If/IfElse and For directives
// carry their own nested []Directive bodies, which Run executes
// recursively, so dispatch goes as deep as the scheme's nesting.
package scheme

import (
	"fmt"

	"github.com/membraneframework-labs/membrane-h264-plugin/bitreader"
)

// Kind names one of the five primitive field reads a scheme can perform.
type Kind struct {
	name  string
	width int // for u/s kinds
}

// U returns the kind for an unsigned n-bit fixed-width field.
func U(n int) Kind { return Kind{name: "u", width: n} }

// S returns the kind for a signed n-bit fixed-width field.
func S(n int) Kind { return Kind{name: "s", width: n} }

// UE is the kind for an unsigned Exp-Golomb field.
var UE = Kind{name: "ue"}

// SE is the kind for a signed Exp-Golomb field.
var SE = Kind{name: "se"}

// Bool is the kind for a single-bit boolean field.
var Bool = Kind{name: "bool"}

// Read performs the raw bit-level read for k without touching any local
// state; it's exported for execute() handlers (like VUI/HRD parsing)
// that read many individually-gated fields and want Field's type
// dispatch without Field's local-state side effect on every call.
func (k Kind) Read(r *bitreader.Reader) (any, error) {
	return k.read(r)
}

func (k Kind) read(r *bitreader.Reader) (any, error) {
	switch k.name {
	case "u":
		v, err := r.ReadU(k.width)
		return v, err
	case "s":
		v, err := r.ReadS(k.width)
		return v, err
	case "ue":
		v, err := r.ReadUE()
		return v, err
	case "se":
		v, err := r.ReadSE()
		return v, err
	case "bool":
		v, err := r.ReadBool()
		return v, err
	default:
		panic("scheme: unknown kind " + k.name)
	}
}

// Local is the per-NALU field map a scheme reads from and writes into.
// It is cleared between NALUs (spec §4.2).
type Local = map[string]any

// Directive is one step of a scheme.
type Directive interface {
	run(r *bitreader.Reader, local Local, global *GlobalState) error
}

// Run executes a full scheme in order, stopping at the first error.
// local is mutated in place; global is only mutated by SaveAsGlobal
// directives within the scheme.
func Run(directives []Directive, r *bitreader.Reader, local Local, global *GlobalState) error {
	for _, d := range directives {
		if err := d.run(r, local, global); err != nil {
			return err
		}
	}
	return nil
}

// --- field ---

type fieldDirective struct {
	name string
	kind Kind
}

// Field reads one value per kind and stores it at local[name].
func Field(name string, kind Kind) Directive {
	return fieldDirective{name: name, kind: kind}
}

func (f fieldDirective) run(r *bitreader.Reader, local Local, _ *GlobalState) error {
	v, err := f.kind.read(r)
	if err != nil {
		return ErrMalformedField{Field: f.name, Err: err}
	}
	local[f.name] = v
	return nil
}

// --- if / if_else ---

type ifDirective struct {
	cond Predicate
	then []Directive
	els  []Directive
}

// Predicate is a pure test over the local field map.
type Predicate func(local Local) bool

// If executes body when cond(local) is true.
func If(cond Predicate, body ...Directive) Directive {
	return ifDirective{cond: cond, then: body}
}

// IfElse executes then when cond(local) is true, otherwise els.
func IfElse(cond Predicate, then []Directive, els []Directive) Directive {
	return ifDirective{cond: cond, then: then, els: els}
}

func (d ifDirective) run(r *bitreader.Reader, local Local, global *GlobalState) error {
	if d.cond(local) {
		return Run(d.then, r, local, global)
	}
	return Run(d.els, r, local, global)
}

// --- for ---

type forDirective struct {
	counter string
	n       func(local Local) int
	body    func(i int) []Directive
}

// For repeats body n(local) times. body is called with the current loop
// index so field directives inside it can route reads into
// local[name][i] via ForField.
func For(counter string, n func(local Local) int, body func(i int) []Directive) Directive {
	return forDirective{counter: counter, n: n, body: body}
}

func (d forDirective) run(r *bitreader.Reader, local Local, global *GlobalState) error {
	count := d.n(local)
	for i := 0; i < count; i++ {
		local[d.counter] = i
		if err := Run(d.body(i), r, local, global); err != nil {
			return err
		}
	}
	return nil
}

// ForField reads one value per kind and appends it to local[name],
// which must be a []any (or is created as one). Used inside For bodies.
func ForField(name string, kind Kind) Directive {
	return forFieldDirective{name: name, kind: kind}
}

type forFieldDirective struct {
	name string
	kind Kind
}

func (f forFieldDirective) run(r *bitreader.Reader, local Local, _ *GlobalState) error {
	v, err := f.kind.read(r)
	if err != nil {
		return ErrMalformedField{Field: f.name, Err: err}
	}
	slice, _ := local[f.name].([]any)
	local[f.name] = append(slice, v)
	return nil
}

// --- calculate ---

type calculateDirective struct {
	name string
	fn   func(local Local) any
}

// Calculate derives a value from existing local entries and stores it
// under name.
func Calculate(name string, fn func(local Local) any) Directive {
	return calculateDirective{name: name, fn: fn}
}

func (d calculateDirective) run(_ *bitreader.Reader, local Local, _ *GlobalState) error {
	local[d.name] = d.fn(local)
	return nil
}

// --- execute ---

type executeDirective struct {
	fn func(r *bitreader.Reader, local Local, global *GlobalState) error
}

// Execute runs an arbitrary handler with full access to the reader,
// local state, and global state. Used for syntax that doesn't fit the
// other directive shapes (e.g. scaling-list loops with shared counters).
func Execute(fn func(r *bitreader.Reader, local Local, global *GlobalState) error) Directive {
	return executeDirective{fn: fn}
}

func (d executeDirective) run(r *bitreader.Reader, local Local, global *GlobalState) error {
	return d.fn(r, local, global)
}

// --- save_as_global / load_global ---

type saveAsGlobalDirective struct {
	namespace string
	keyFn     func(local Local) int
}

// SaveAsGlobal copies local into global[namespace][keyFn(local)] when
// the scheme finishes. It should be the last directive of a scheme.
func SaveAsGlobal(namespace string, keyFn func(local Local) int) Directive {
	return saveAsGlobalDirective{namespace: namespace, keyFn: keyFn}
}

func (d saveAsGlobalDirective) run(_ *bitreader.Reader, local Local, global *GlobalState) error {
	global.Save(d.namespace, d.keyFn(local), local)
	return nil
}

type loadGlobalDirective struct {
	namespace string
	keyFn     func(local Local) int
}

// LoadGlobal merges global[namespace][keyFn(local)] into local. It fails
// with ErrGlobalUnavailable if nothing has been saved under that key
// (e.g. a slice header referencing an SPS id never parsed).
func LoadGlobal(namespace string, keyFn func(local Local) int) Directive {
	return loadGlobalDirective{namespace: namespace, keyFn: keyFn}
}

func (d loadGlobalDirective) run(_ *bitreader.Reader, local Local, global *GlobalState) error {
	key := d.keyFn(local)
	fields, ok := global.Load(d.namespace, key)
	if !ok {
		return ErrGlobalUnavailable{Namespace: d.namespace, Key: key}
	}
	for k, v := range fields {
		// don't let an imported namespace clobber fields already read
		// directly off the bitstream under the same name.
		if _, exists := local[k]; !exists {
			local[k] = v
		}
	}
	local["_"+d.namespace] = fields
	return nil
}

// --- typed local-state accessors ---

// GetUint reads local[name] as an unsigned integer of any of the
// concrete types ReadU/ReadUE return (uint32) or that LoadGlobal may
// have merged in (int, from Calculate). Missing keys return 0.
func GetUint(local Local, name string) uint32 {
	switch v := local[name].(type) {
	case uint32:
		return v
	case int:
		return uint32(v)
	case int32:
		return uint32(v)
	default:
		return 0
	}
}

// GetInt reads local[name] as a signed integer.
func GetInt(local Local, name string) int32 {
	switch v := local[name].(type) {
	case int32:
		return v
	case uint32:
		return int32(v)
	case int:
		return int32(v)
	default:
		return 0
	}
}

// GetBool reads local[name] as a boolean.
func GetBool(local Local, name string) bool {
	v, _ := local[name].(bool)
	return v
}

// MustGetUint is like GetUint but panics with a descriptive message if
// the field is absent; used inside Calculate/Execute closures where a
// missing prerequisite field indicates a scheme-authoring bug, not a
// malformed bitstream.
func MustGetUint(local Local, name string) uint32 {
	v, ok := local[name]
	if !ok {
		panic(fmt.Sprintf("scheme: field %q missing from local state", name))
	}
	switch t := v.(type) {
	case uint32:
		return t
	case int:
		return uint32(t)
	default:
		panic(fmt.Sprintf("scheme: field %q has unexpected type %T", name, v))
	}
}
