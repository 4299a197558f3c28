package docstore

// The expression evaluator is an external collaborator; the engine consumes
// opaque callables and an evaluation environment of named document bindings.
// See the celeval subpackage for a CEL-backed implementation.

type Predicate func(doc Document, env *Env) (bool, error)
type Mapping func(doc Document, env *Env) (Document, error)
type Expr func(env *Env) (Document, error)

// DocumentStream is the finite sequence a ConcatMap mapping yields per input
// document; the pipeline drains it fully before the next input document.
type DocumentStream []Document

type StreamMapping func(doc Document, env *Env) (DocumentStream, error)

// WriteOp is a ForEach sub-operation: a write against the store evaluated per
// document.
type WriteOp func(tx *Tx, env *Env) error

// Env holds the named document bindings visible to evaluation callables.
// Bindings are scoped: Bind returns a restore function that reinstates the
// previous binding, so nested evaluations can shadow a name and unwind.
type Env struct {
	vars map[string]Document
}

func NewEnv() *Env {
	return &Env{vars: make(map[string]Document)}
}

func (e *Env) Lookup(name string) (Document, bool) {
	doc, ok := e.vars[name]
	return doc, ok
}

func (e *Env) Bind(name string, doc Document) (restore func()) {
	prev, had := e.vars[name]
	e.vars[name] = doc
	return func() {
		if had {
			e.vars[name] = prev
		} else {
			delete(e.vars, name)
		}
	}
}

type transformKind int

const (
	tkFilter transformKind = iota
	tkMap
	tkConcatMap
	tkRangeFilter
)

// TransformStep is a closed variant over the four per-document transforms.
// The set is fixed, so application is a switch rather than virtual dispatch.
type TransformStep struct {
	kind   transformKind
	pred   Predicate
	fn     Mapping
	stream StreamMapping
	attr   string
	lower  Expr
	upper  Expr
}

// Filter emits the document iff pred holds.
func Filter(pred Predicate) TransformStep {
	return TransformStep{kind: tkFilter, pred: pred}
}

// Map emits fn(doc).
func Map(fn Mapping) TransformStep {
	return TransformStep{kind: tkMap, fn: fn}
}

// ConcatMap emits every document of the stream fn(doc) yields, in order.
func ConcatMap(fn StreamMapping) TransformStep {
	return TransformStep{kind: tkConcatMap, stream: fn}
}

// RangeFilter emits the document iff doc[attr] canonicalizes to a key lying
// within [lower, upper], both inclusive; a nil bound expression leaves that
// side unbounded. Documents lacking attr are dropped. The bound expressions
// are evaluated per document, so they observe whatever bindings earlier
// pipeline steps have left in the environment.
func RangeFilter(attr string, lower, upper Expr) TransformStep {
	return TransformStep{kind: tkRangeFilter, attr: attr, lower: lower, upper: upper}
}

// Pipeline applies its steps in declared order: the output set of step i is
// the input set of step i+1. The order is exact; mappings may observe it
// through the environment.
type Pipeline []TransformStep

func evalBoundKey(expr Expr, env *Env) (Key, error) {
	doc, err := expr(env)
	if err != nil {
		return nil, err
	}
	return canonicalBoundKey(doc)
}

func (s TransformStep) apply(doc Document, env *Env, emit func(Document) error) error {
	switch s.kind {
	case tkFilter:
		ok, err := s.pred(doc, env)
		if err != nil {
			return err
		}
		if ok {
			return emit(doc)
		}
		return nil
	case tkMap:
		mapped, err := s.fn(doc, env)
		if err != nil {
			return err
		}
		return emit(mapped)
	case tkConcatMap:
		stream, err := s.stream(doc, env)
		if err != nil {
			return err
		}
		for _, d := range stream {
			if err := emit(d); err != nil {
				return err
			}
		}
		return nil
	case tkRangeFilter:
		attr, ok := doc.Field(s.attr)
		if !ok {
			return nil
		}
		key, err := canonicalBoundKey(attr)
		if err != nil {
			return err
		}
		rng := KeyRange{LowerInc: true, UpperInc: true}
		if s.lower != nil {
			bound, err := evalBoundKey(s.lower, env)
			if err != nil {
				return err
			}
			rng.Lower = bound
		}
		if s.upper != nil {
			bound, err := evalBoundKey(s.upper, env)
			if err != nil {
				return err
			}
			rng.Upper = bound
		}
		if rng.Contains(key) {
			return emit(doc)
		}
		return nil
	default:
		panic("unknown transform step kind")
	}
}

// applyPipeline threads doc through steps left to right, invoking emit for
// every document that survives the final step.
func applyPipeline(steps []TransformStep, doc Document, env *Env, emit func(Document) error) error {
	if len(steps) == 0 {
		return emit(doc)
	}
	return steps[0].apply(doc, env, func(d Document) error {
		return applyPipeline(steps[1:], d, env, emit)
	})
}
