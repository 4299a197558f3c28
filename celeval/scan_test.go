package celeval

import (
	"context"
	"testing"

	"github.com/andreyvit/docstore"
)

// End-to-end: CEL-built callables driving a docstore range scan.
func TestScanWithCELPipeline(t *testing.T) {
	db, err := docstore.OpenMemory(docstore.Options{IsTesting: true})
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(db.Close)

	db.Write(func(tx *docstore.Tx) {
		rows := []map[string]any{
			{"team": "red", "pts": 3},
			{"team": "blue", "pts": 5},
			{"team": "red", "pts": 4},
			{"team": "blue", "pts": 1},
		}
		for i, row := range rows {
			_, err := tx.Set(docstore.Key{byte('a' + i)}, docstore.NewDocument(row), docstore.Recency(i+1))
			if err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}
	})

	e := newTestEngine(t, "row", "acc", "val")
	pred, err := e.Predicate("row", `row.pts > 1.0`)
	if err != nil {
		t.Fatalf("Predicate failed: %v", err)
	}
	groupExpr, err := e.Mapping("row", `row.team`)
	if err != nil {
		t.Fatalf("Mapping failed: %v", err)
	}
	valueExpr, err := e.Mapping("row", `row.pts`)
	if err != nil {
		t.Fatalf("Mapping failed: %v", err)
	}
	base, err := e.Expr(`0.0`)
	if err != nil {
		t.Fatalf("Expr failed: %v", err)
	}
	body, err := e.Expr(`acc + val`)
	if err != nil {
		t.Fatalf("Expr failed: %v", err)
	}

	db.Read(func(tx *docstore.Tx) {
		resp, err := tx.RangeScan(context.Background(), docstore.RangeOO(), 0,
			docstore.Pipeline{docstore.Filter(pred)},
			docstore.GroupedReduce(groupExpr, valueExpr, base, "acc", "val", body),
			docstore.NewEnv())
		if err != nil {
			t.Fatalf("RangeScan failed: %v", err)
		}
		if resp.Result.Kind != docstore.ScanGrouped {
			t.Fatalf("result kind = %v, wanted grouped", resp.Result.Kind)
		}

		red, ok := resp.Result.Groups.Get(docstore.NewDocument("red"))
		if !ok || !red.Equal(docstore.NewDocument(7)) {
			t.Errorf("red group = %v (ok=%v), wanted 7", red, ok)
		}
		blue, ok := resp.Result.Groups.Get(docstore.NewDocument("blue"))
		if !ok || !blue.Equal(docstore.NewDocument(5)) {
			t.Errorf("blue group = %v (ok=%v), wanted 5", blue, ok)
		}
	})
}
