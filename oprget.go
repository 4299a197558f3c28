package docstore

import (
	"context"
)

// RangeScanResponse carries the scan result plus resumption state:
// LastConsideredKey is the last key the traversal visited (whether or not it
// produced output), so a continued scan can pick up right after it.
// Truncated is true iff the running size estimate reached the chunk budget;
// it is independent of whether maxCount was reached.
type RangeScanResponse struct {
	Result            ScanResult
	Truncated         bool
	LastConsideredKey Key
}

// RangeScan drives an ascending traversal over rng, threading every live
// document through the pipeline and folding the output into the terminal, or
// buffering it into a stream when terminal is nil.
//
// Without a terminal the traversal stops once the stream holds maxCount
// documents (maxCount <= 0 means unlimited) or the cumulative size estimate
// reaches the store's chunk budget; the estimate is a constant per document,
// not a measured byte count. With a terminal the traversal always runs to the
// end of the range.
//
// The context is checked between entries; on cancellation the partial
// response accumulated so far is returned together with the context error.
func (tx *Tx) RangeScan(ctx context.Context, rng KeyRange, maxCount int, pipeline Pipeline, terminal *TerminalOp, env *Env) (RangeScanResponse, error) {
	tx.db.ReadCount.Add(1)
	if env == nil {
		env = NewEnv()
	}

	var resp RangeScanResponse
	ts, err := newTerminalState(terminal, env)
	if err != nil {
		return resp, err
	}
	resp.Result = ts.res

	budget := tx.db.maxChunkSize
	perItem := tx.db.itemSizeEstimate
	sizeEstimate := 0
	visited := 0

	err = traverseRange(tx.dataBucket(), rng, func(k, v []byte) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		key := Key(k).Clone()
		resp.LastConsideredKey = key
		visited++

		vle, err := decodeValue(key, v)
		if err != nil {
			return false, err
		}
		if vle.isTombstone() {
			return true, nil
		}
		doc, err := decodeDocument(key, vle)
		if err != nil {
			return false, err
		}

		err = applyPipeline(pipeline, doc, env, func(out Document) error {
			if terminal != nil {
				return ts.consume(tx, out, env)
			}
			ts.res.Stream = append(ts.res.Stream, out)
			sizeEstimate += perItem
			return nil
		})
		if err != nil {
			return false, err
		}

		if terminal == nil {
			if sizeEstimate >= budget {
				resp.Truncated = true
				return false, nil
			}
			if maxCount > 0 && len(ts.res.Stream) >= maxCount {
				return false, nil
			}
		}
		return true, nil
	})
	resp.Result = ts.res
	if err != nil {
		return resp, err
	}
	if err := ts.finish(tx, env); err != nil {
		return resp, err
	}
	if tx.db.isVerbose() {
		tx.db.logf("db: RGET [%s..%s] => %d visited, truncated=%v", hexstr(rng.Lower), hexstr(rng.Upper), visited, resp.Truncated)
	}
	return resp, nil
}
