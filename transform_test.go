package docstore

import (
	"context"
	"errors"
	"testing"
)

func fieldAbove(attr string, threshold float64) Predicate {
	return func(d Document, env *Env) (bool, error) {
		v, ok := d.Field(attr)
		if !ok {
			return false, nil
		}
		f, ok := v.Value().(float64)
		return ok && f > threshold, nil
	}
}

func setField(attr string, value any) Mapping {
	return func(d Document, env *Env) (Document, error) {
		obj, _ := d.Value().(map[string]any)
		out := make(map[string]any, len(obj)+1)
		for k, v := range obj {
			out[k] = v
		}
		out[attr] = value
		return NewDocument(out), nil
	}
}

func seedDocs(t testing.TB, db *Store, docs map[string]any) {
	t.Helper()
	db.Write(func(tx *Tx) {
		rec := Recency(1)
		for key, v := range docs {
			mustSet(t, tx, key, v, rec)
			rec++
		}
	})
}

func scanStream(t testing.TB, db *Store, pipeline Pipeline) []Document {
	t.Helper()
	var out []Document
	db.Read(func(tx *Tx) {
		resp := must(tx.RangeScan(context.Background(), RangeOO(), 0, pipeline, nil, nil))
		deepEqual(t, resp.Result.Kind, ScanStream)
		out = resp.Result.Stream
	})
	return out
}

func TestPipelineFilter(t *testing.T) {
	db := setup(t)
	seedDocs(t, db, map[string]any{
		"a": map[string]any{"v": 1},
		"b": map[string]any{"v": 5},
		"c": map[string]any{"v": 9},
	})

	out := scanStream(t, db, Pipeline{Filter(fieldAbove("v", 4))})
	deepEqual(t, out, []Document{
		doc(map[string]any{"v": 5}),
		doc(map[string]any{"v": 9}),
	})
}

func TestPipelineMap(t *testing.T) {
	db := setup(t)
	seedDocs(t, db, map[string]any{
		"a": map[string]any{"v": 1},
	})

	out := scanStream(t, db, Pipeline{Map(setField("tagged", true))})
	deepEqual(t, out, []Document{
		doc(map[string]any{"v": 1, "tagged": true}),
	})
}

func TestPipelineOrderSensitivity(t *testing.T) {
	db := setup(t)
	seedDocs(t, db, map[string]any{
		"a": map[string]any{"v": 10},
	})

	// The predicate holds only before the map clobbers the field, so the two
	// orders must disagree.
	pred := fieldAbove("v", 4)
	clobber := setField("v", 0)

	filtered := scanStream(t, db, Pipeline{Filter(pred), Map(clobber)})
	deepEqual(t, filtered, []Document{doc(map[string]any{"v": 0})})

	reversed := scanStream(t, db, Pipeline{Map(clobber), Filter(pred)})
	isempty(t, reversed)
}

func TestPipelineConcatMap(t *testing.T) {
	db := setup(t)
	seedDocs(t, db, map[string]any{
		"a": map[string]any{"n": 0},
		"b": map[string]any{"n": 2},
		"c": map[string]any{"n": 3},
	})

	// Each document expands into n copies of its n value; output count is the
	// sum of stream lengths, in traversal order.
	expand := func(d Document, env *Env) (DocumentStream, error) {
		nv, _ := d.Field("n")
		n := int(nv.Value().(float64))
		out := make(DocumentStream, n)
		for i := range out {
			out[i] = nv
		}
		return out, nil
	}

	out := scanStream(t, db, Pipeline{ConcatMap(expand)})
	deepEqual(t, out, []Document{doc(2), doc(2), doc(3), doc(3), doc(3)})
}

func TestPipelineRangeFilter(t *testing.T) {
	db := setup(t)
	seedDocs(t, db, map[string]any{
		"a": map[string]any{"score": 1},
		"b": map[string]any{"score": 5},
		"c": map[string]any{"score": 9},
		"d": map[string]any{"other": 1}, // lacks the attribute, never emitted
	})

	lower := func(env *Env) (Document, error) { return doc(2), nil }
	upper := func(env *Env) (Document, error) { return doc(8), nil }

	out := scanStream(t, db, Pipeline{RangeFilter("score", lower, upper)})
	deepEqual(t, out, []Document{doc(map[string]any{"score": 5})})

	// Unbounded sides.
	out = scanStream(t, db, Pipeline{RangeFilter("score", lower, nil)})
	deepEqual(t, out, []Document{
		doc(map[string]any{"score": 5}),
		doc(map[string]any{"score": 9}),
	})
	out = scanStream(t, db, Pipeline{RangeFilter("score", nil, upper)})
	deepEqual(t, out, []Document{
		doc(map[string]any{"score": 1}),
		doc(map[string]any{"score": 5}),
	})
}

func TestPipelineRangeFilterBadBound(t *testing.T) {
	db := setup(t)
	seedDocs(t, db, map[string]any{"a": map[string]any{"score": 1}})

	badBound := func(env *Env) (Document, error) { return doc([]any{1}), nil }
	db.Read(func(tx *Tx) {
		_, err := tx.RangeScan(context.Background(), RangeOO(), 0, Pipeline{RangeFilter("score", badBound, nil)}, nil, nil)
		var rbe *RangeBoundError
		if !errors.As(err, &rbe) {
			t.Fatalf("RangeScan = %v, wanted RangeBoundError", err)
		}
	})
}

func TestPipelineRangeFilterBoundsPerDocument(t *testing.T) {
	db := setup(t)
	seedDocs(t, db, map[string]any{
		"a": map[string]any{"score": 1},
		"b": map[string]any{"score": 5},
		"c": map[string]any{"score": 9},
	})

	// The bound expression runs once per document reaching the step, never
	// cached across documents.
	evals := 0
	lower := func(env *Env) (Document, error) {
		evals++
		return doc(2), nil
	}
	out := scanStream(t, db, Pipeline{RangeFilter("score", lower, nil)})
	deepEqual(t, len(out), 2)
	deepEqual(t, evals, 3)

	// A bound reading an environment binding established by an earlier step
	// sees the per-document value, not a stale one.
	bindThreshold := func(d Document, env *Env) (Document, error) {
		v, _ := d.Field("score")
		env.Bind("threshold", v)
		return d, nil
	}
	boundFromEnv := func(env *Env) (Document, error) {
		v, _ := env.Lookup("threshold")
		return v, nil
	}
	out = scanStream(t, db, Pipeline{Map(bindThreshold), RangeFilter("score", nil, boundFromEnv)})
	// Every document trivially satisfies score <= its own score; a bound
	// captured before the scan would see no binding at all.
	deepEqual(t, len(out), 3)
}

func TestEnvBindScoping(t *testing.T) {
	env := NewEnv()
	restoreOuter := env.Bind("v", doc("outer"))

	d, ok := env.Lookup("v")
	deepEqual(t, ok, true)
	deepEqual(t, d, doc("outer"))

	restoreInner := env.Bind("v", doc("inner"))
	d, _ = env.Lookup("v")
	deepEqual(t, d, doc("inner"))

	restoreInner()
	d, _ = env.Lookup("v")
	deepEqual(t, d, doc("outer"))

	restoreOuter()
	_, ok = env.Lookup("v")
	deepEqual(t, ok, false)
}
