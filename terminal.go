package docstore

import "sort"

type terminalKind int

const (
	tmCount terminalKind = iota
	tmReduce
	tmGroupedReduce
	tmForEach
)

// TerminalOp is a closed variant over the scan-terminating reducers. At most
// one terminal is attached to a scan; its result kind is fixed before the
// first document arrives.
type TerminalOp struct {
	kind terminalKind

	var1 string
	var2 string
	body Expr
	base Expr

	groupExpr Mapping
	valueExpr Mapping

	varName string
	subOps  []WriteOp
}

// Count counts the documents that reach the terminal.
func Count() *TerminalOp {
	return &TerminalOp{kind: tmCount}
}

// Reduce folds documents into a single accumulator: body is evaluated with
// var1 bound to the accumulator and var2 to the current document. A nil base
// seeds the accumulator with the first document instead.
func Reduce(var1, var2 string, body Expr, base Expr) *TerminalOp {
	return &TerminalOp{kind: tmReduce, var1: var1, var2: var2, body: body, base: base}
}

// GroupedReduce folds per group: groupExpr picks the grouping key, valueExpr
// the value to fold, and body combines var1 (group accumulator, seeded from
// base on first sight) with var2 (the folded value).
func GroupedReduce(groupExpr, valueExpr Mapping, base Expr, var1, var2 string, body Expr) *TerminalOp {
	return &TerminalOp{kind: tmGroupedReduce, groupExpr: groupExpr, valueExpr: valueExpr, base: base, var1: var1, var2: var2, body: body}
}

// ForEach executes subOps for every document with varName bound to it.
// Sub-operation results are not surfaced through the scan response. The
// sub-operations run after the traversal finishes, in document order, so
// their writes cannot disturb the scan's own cursor.
func ForEach(varName string, subOps []WriteOp) *TerminalOp {
	return &TerminalOp{kind: tmForEach, varName: varName, subOps: subOps}
}

type ScanResultKind int

const (
	// ScanStream is a plain buffered stream of output documents (no terminal).
	ScanStream ScanResultKind = iota
	// ScanAtom is a single reduced document.
	ScanAtom
	// ScanGrouped is a per-group accumulator map.
	ScanGrouped
	// ScanCount is an integer count.
	ScanCount
	// ScanAccepted marks a completed ForEach; sub-operation results are not
	// reported.
	ScanAccepted
)

// ScanResult is the tagged result of a range scan; Kind determines which
// field is meaningful.
type ScanResult struct {
	Kind    ScanResultKind
	Stream  []Document
	Atom    Document
	AtomSet bool
	Groups  *GroupMap
	Count   int64
}

// GroupMap accumulates GroupedReduce results, keyed by the grouping
// document's canonical encoding so that equal documents share a group.
type GroupMap struct {
	entries map[string]*groupEntry
}

type groupEntry struct {
	key   Document
	value Document
}

func NewGroupMap() *GroupMap {
	return &GroupMap{entries: make(map[string]*groupEntry)}
}

func (m *GroupMap) Len() int {
	return len(m.entries)
}

func (m *GroupMap) Get(key Document) (Document, bool) {
	e, ok := m.entries[string(canonicalGroupKey(key))]
	if !ok {
		return Document{}, false
	}
	return e.value, true
}

func (m *GroupMap) Set(key, value Document) {
	ck := string(canonicalGroupKey(key))
	if e, ok := m.entries[ck]; ok {
		e.value = value
		return
	}
	m.entries[ck] = &groupEntry{key: key, value: value}
}

// Each visits the groups in canonical key order.
func (m *GroupMap) Each(f func(key, value Document)) {
	cks := make([]string, 0, len(m.entries))
	for ck := range m.entries {
		cks = append(cks, ck)
	}
	sort.Strings(cks)
	for _, ck := range cks {
		e := m.entries[ck]
		f(e.key, e.value)
	}
}

// terminalState is the mutable accumulator of one scan's terminal. It is
// owned exclusively by the in-flight call.
type terminalState struct {
	op      *TerminalOp
	res     ScanResult
	pending []Document // ForEach documents awaiting sub-operation execution
}

// newTerminalState fixes the result kind (and any base accumulator) before
// any document is processed.
func newTerminalState(op *TerminalOp, env *Env) (*terminalState, error) {
	ts := &terminalState{op: op}
	if op == nil {
		ts.res.Kind = ScanStream
		return ts, nil
	}
	switch op.kind {
	case tmCount:
		ts.res.Kind = ScanCount
	case tmReduce:
		ts.res.Kind = ScanAtom
		if op.base != nil {
			base, err := op.base(env)
			if err != nil {
				return nil, err
			}
			ts.res.Atom = base
			ts.res.AtomSet = true
		}
	case tmGroupedReduce:
		ts.res.Kind = ScanGrouped
		ts.res.Groups = NewGroupMap()
	case tmForEach:
		ts.res.Kind = ScanAccepted
	default:
		panic("unknown terminal op kind")
	}
	return ts, nil
}

func (ts *terminalState) consume(tx *Tx, doc Document, env *Env) error {
	switch ts.op.kind {
	case tmCount:
		ts.res.Count++
		return nil

	case tmReduce:
		if !ts.res.AtomSet {
			ts.res.Atom = doc
			ts.res.AtomSet = true
			return nil
		}
		restore1 := env.Bind(ts.op.var1, ts.res.Atom)
		restore2 := env.Bind(ts.op.var2, doc)
		acc, err := ts.op.body(env)
		restore2()
		restore1()
		if err != nil {
			return err
		}
		ts.res.Atom = acc
		return nil

	case tmGroupedReduce:
		group, err := ts.op.groupExpr(doc, env)
		if err != nil {
			return err
		}
		val, err := ts.op.valueExpr(doc, env)
		if err != nil {
			return err
		}
		acc, ok := ts.res.Groups.Get(group)
		if !ok {
			acc, err = ts.op.base(env)
			if err != nil {
				return err
			}
		}
		restore1 := env.Bind(ts.op.var1, acc)
		restore2 := env.Bind(ts.op.var2, val)
		folded, err := ts.op.body(env)
		restore2()
		restore1()
		if err != nil {
			return err
		}
		ts.res.Groups.Set(group, folded)
		return nil

	case tmForEach:
		ts.pending = append(ts.pending, doc)
		return nil

	default:
		panic("unknown terminal op kind")
	}
}

// finish runs any deferred work once the traversal is over; for ForEach that
// is the sub-operations of every collected document.
func (ts *terminalState) finish(tx *Tx, env *Env) error {
	if ts.op == nil || ts.op.kind != tmForEach {
		return nil
	}
	for _, doc := range ts.pending {
		restore := env.Bind(ts.op.varName, doc)
		for _, op := range ts.op.subOps {
			if err := op(tx, env); err != nil {
				restore()
				return err
			}
		}
		restore()
	}
	ts.pending = nil
	return nil
}
