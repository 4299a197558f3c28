package docstore

import (
	"fmt"
	"strings"
)

// CorruptionError means a stored value failed to decode. This is an integrity
// violation: the affected call aborts, nothing attempts to repair or
// substitute the value. The host gets a distinguishable error instead of a
// process crash so it can log and fail the single request.
type CorruptionError struct {
	Key  Key
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func corruptErrf(key Key, data []byte, off int, err error, format string, args ...any) error {
	return &CorruptionError{key, data, off, err, fmt.Sprintf(format, args...)}
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

func (e *CorruptionError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	var buf strings.Builder
	buf.WriteString("corrupted value")
	if e.Key != nil {
		fmt.Fprintf(&buf, " at %x", e.Key)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&buf, ": %v", e.Err)
	}
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		fmt.Fprintf(&buf, ": (%d) %x", n, e.Data)
	} else {
		fmt.Fprintf(&buf, ": (%d) %x...%x", n, e.Data[:prefixLen], e.Data[n-suffixLen:])
	}
	return buf.String()
}

// EncodingError means a well-formed document failed to serialize, which
// indicates an internal invariant breach. Same abort policy as corruption.
type EncodingError struct {
	Err error
	Msg string
}

func encodingErrf(err error, format string, args ...any) error {
	return &EncodingError{err, fmt.Sprintf(format, args...)}
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document encoding failed: %s: %v", e.Msg, e.Err)
	}
	return "document encoding failed: " + e.Msg
}

// RangeBoundError means a RangeFilter boundary expression produced a value
// that cannot be canonicalized to a key. It propagates to the caller as a
// query-level error; the call fails but the process carries on.
type RangeBoundError struct {
	Bound Document
	Msg   string
}

func rangeBoundErrf(bound Document, format string, args ...any) error {
	return &RangeBoundError{bound, fmt.Sprintf(format, args...)}
}

func (e *RangeBoundError) Error() string {
	return fmt.Sprintf("invalid range boundary %v: %s", e.Bound, e.Msg)
}

// DocumentInvalidError means a document was rejected by the store's schema
// on write. Query-level, like RangeBoundError.
type DocumentInvalidError struct {
	Key    Key
	Issues []string
}

func (e *DocumentInvalidError) Error() string {
	return fmt.Sprintf("document %x rejected by schema: %s", e.Key, strings.Join(e.Issues, "; "))
}
