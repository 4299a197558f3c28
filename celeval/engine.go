// Package celeval adapts CEL expressions to the evaluation callables the
// docstore scan engine consumes. Programs are compiled once per expression
// text and cached; evaluation binds the scan environment's documents as CEL
// variables.
package celeval

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"github.com/google/cel-go/common/types/ref"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/andreyvit/docstore"
)

// Engine owns a CEL environment with a fixed set of dyn-typed variables and a
// compile-once program cache shared by all callables it produces.
type Engine struct {
	env      *cel.Env
	varNames []string
	prgCache sync.Map // expression text -> cel.Program
}

// NewEngine declares the given names as dyn-typed CEL variables. Every name a
// produced callable might reference, including the document variables passed
// to Predicate/Mapping and the reducer accumulator names, must be declared
// here.
func NewEngine(varNames ...string) (*Engine, error) {
	declList := make([]*exprpb.Decl, len(varNames))
	for i, name := range varNames {
		declList[i] = decls.NewVar(name, decls.Dyn)
	}
	env, err := cel.NewEnv(cel.Declarations(declList...))
	if err != nil {
		return nil, fmt.Errorf("celeval: %w", err)
	}
	return &Engine{env: env, varNames: varNames}, nil
}

func (e *Engine) compile(expression string) (cel.Program, error) {
	if val, ok := e.prgCache.Load(expression); ok {
		return val.(cel.Program), nil
	}
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("celeval: compile %q: %w", expression, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("celeval: program %q: %w", expression, err)
	}
	e.prgCache.Store(expression, prg)
	return prg, nil
}

// activation materializes the declared variables from env, overlaying docVar
// with doc when docVar is non-empty.
func (e *Engine) activation(docVar string, doc docstore.Document, env *docstore.Env) map[string]any {
	act := make(map[string]any, len(e.varNames))
	for _, name := range e.varNames {
		if d, ok := env.Lookup(name); ok {
			act[name] = d.Value()
		}
	}
	if docVar != "" {
		act[docVar] = doc.Value()
	}
	return act
}

func (e *Engine) eval(prg cel.Program, act map[string]any) (ref.Val, error) {
	out, _, err := prg.Eval(act)
	if err != nil {
		return nil, fmt.Errorf("celeval: eval: %w", err)
	}
	return out, nil
}

// Predicate compiles expr into a predicate over the document bound as docVar.
func (e *Engine) Predicate(docVar, expr string) (docstore.Predicate, error) {
	prg, err := e.compile(expr)
	if err != nil {
		return nil, err
	}
	return func(doc docstore.Document, env *docstore.Env) (bool, error) {
		out, err := e.eval(prg, e.activation(docVar, doc, env))
		if err != nil {
			return false, err
		}
		b, ok := out.Value().(bool)
		if !ok {
			return false, fmt.Errorf("celeval: predicate %q returned %T, not bool", expr, out.Value())
		}
		return b, nil
	}, nil
}

// Mapping compiles expr into a per-document mapping.
func (e *Engine) Mapping(docVar, expr string) (docstore.Mapping, error) {
	prg, err := e.compile(expr)
	if err != nil {
		return nil, err
	}
	return func(doc docstore.Document, env *docstore.Env) (docstore.Document, error) {
		out, err := e.eval(prg, e.activation(docVar, doc, env))
		if err != nil {
			return docstore.Document{}, err
		}
		return outputDocument(out)
	}, nil
}

// StreamMapping compiles expr, which must produce a list, into a mapping that
// yields one output document per list element.
func (e *Engine) StreamMapping(docVar, expr string) (docstore.StreamMapping, error) {
	prg, err := e.compile(expr)
	if err != nil {
		return nil, err
	}
	return func(doc docstore.Document, env *docstore.Env) (docstore.DocumentStream, error) {
		out, err := e.eval(prg, e.activation(docVar, doc, env))
		if err != nil {
			return nil, err
		}
		v, err := nativeValue(out.Value())
		if err != nil {
			return nil, err
		}
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("celeval: stream mapping %q returned %T, not a list", expr, v)
		}
		stream := make(docstore.DocumentStream, len(list))
		for i, el := range list {
			stream[i] = docstore.NewDocument(el)
		}
		return stream, nil
	}, nil
}

// Expr compiles expr into an environment-only expression, used for reducer
// bodies and range bounds.
func (e *Engine) Expr(expr string) (docstore.Expr, error) {
	prg, err := e.compile(expr)
	if err != nil {
		return nil, err
	}
	return func(env *docstore.Env) (docstore.Document, error) {
		out, err := e.eval(prg, e.activation("", docstore.Document{}, env))
		if err != nil {
			return docstore.Document{}, err
		}
		return outputDocument(out)
	}, nil
}

func outputDocument(out ref.Val) (docstore.Document, error) {
	v, err := nativeValue(out.Value())
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.NewDocument(v), nil
}

// nativeValue unwraps CEL runtime values into plain JSON-like Go values.
func nativeValue(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case structpb.NullValue:
		return nil, nil
	case bool, string, []byte,
		int, int32, int64, uint, uint32, uint64, float32, float64:
		return v, nil
	case ref.Val:
		return nativeValue(v.Value())
	case []ref.Val:
		out := make([]any, len(v))
		for i, el := range v {
			nv, err := nativeValue(el)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			nv, err := nativeValue(el)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case map[ref.Val]ref.Val:
		out := make(map[string]any, len(v))
		for k, el := range v {
			ks, err := nativeValue(k)
			if err != nil {
				return nil, err
			}
			s, ok := ks.(string)
			if !ok {
				return nil, fmt.Errorf("celeval: map key %T is not a string", ks)
			}
			nv, err := nativeValue(el)
			if err != nil {
				return nil, err
			}
			out[s] = nv
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, el := range v {
			nv, err := nativeValue(el)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, el := range v {
			ks, err := nativeValue(k)
			if err != nil {
				return nil, err
			}
			s, ok := ks.(string)
			if !ok {
				return nil, fmt.Errorf("celeval: map key %T is not a string", ks)
			}
			nv, err := nativeValue(el)
			if err != nil {
				return nil, err
			}
			out[s] = nv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("celeval: value %T has no document representation", v)
	}
}
