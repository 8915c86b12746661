package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sevigo/locomote-server/internal/core"
)

// HookPosition is where a named hook runs relative to a jsonl
// transform's own per-record logic.
type HookPosition string

const (
	HookPre  HookPosition = "pre"
	HookPost HookPosition = "post"
)

// Hook transforms or drops one record; returning nil drops it from the
// output stream.
type Hook func(rec *core.FileRecord, vars core.Vars) *core.FileRecord

// Hooks is a registry of named hooks keyed by (namespace, position),
// run in registration order, per spec §4.2.
type Hooks struct {
	byKey map[string][]Hook
}

// NewHooks creates an empty hook registry.
func NewHooks() *Hooks { return &Hooks{byKey: map[string][]Hook{}} }

func hookKey(namespace string, pos HookPosition) string { return namespace + "\x00" + string(pos) }

// Register appends h under (namespace, pos), running after any hook
// already registered for that key.
func (h *Hooks) Register(namespace string, pos HookPosition, fn Hook) {
	k := hookKey(namespace, pos)
	h.byKey[k] = append(h.byKey[k], fn)
}

// Run applies every hook registered under (namespace, pos) to rec in
// registration order, stopping (and returning nil) as soon as one hook
// drops the record.
func (h *Hooks) Run(namespace string, pos HookPosition, rec *core.FileRecord, vars core.Vars) *core.FileRecord {
	for _, fn := range h.byKey[hookKey(namespace, pos)] {
		if rec == nil {
			return nil
		}
		rec = fn(rec, vars)
	}
	return rec
}

// RecordTransform maps one input record to zero or more output records.
// Returning a nil slice (not an error) drops the record.
type RecordTransform func(rec *core.FileRecord, vars core.Vars) ([]*core.FileRecord, error)

// JSONLTransformer reads newline-delimited core.FileRecord JSON from in,
// applies transform to each one, and writes the results as
// newline-delimited JSON to out. It is the higher-level wrapper spec §4.2
// calls jsonlTransformer: the byte-stream steps in a fileDB pipeline are
// built from it rather than hand-rolled per operation.
func JSONLTransformer(transform RecordTransform, vars core.Vars) StepFunc {
	return func(_ context.Context, stepVars core.Vars, out io.Writer, in io.Reader) error {
		bw := bufio.NewWriter(out)
		defer bw.Flush()

		dec := json.NewDecoder(bufio.NewReader(in))
		for dec.More() {
			var rec core.FileRecord
			if err := dec.Decode(&rec); err != nil {
				return fmt.Errorf("pipeline: jsonl decode: %w", err)
			}
			outs, err := transform(&rec, stepVars)
			if err != nil {
				return err
			}
			for _, o := range outs {
				if o == nil {
					continue
				}
				if err := writeJSONLine(bw, o); err != nil {
					return err
				}
			}
		}
		return bw.Flush()
	}
}

// WriteRecords writes recs as newline-delimited JSON to out; it's the
// primitive Open stages use to emit an initial record stream (e.g. one
// record per tracked path) without going through JSONLTransformer.
func WriteRecords(out io.Writer, recs []*core.FileRecord) error {
	bw := bufio.NewWriter(out)
	for _, r := range recs {
		if err := writeJSONLine(bw, r); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeJSONLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte{'\n'})
	return err
}

// DecodeRecords reads every newline-delimited core.FileRecord from r.
func DecodeRecords(r io.Reader) ([]*core.FileRecord, error) {
	var out []*core.FileRecord
	dec := json.NewDecoder(bufio.NewReader(r))
	for dec.More() {
		var rec core.FileRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("pipeline: jsonl decode: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

// LineTransformer reads newline-terminated lines from in, maps each
// through transform, and writes surviving lines (newline-terminated) to
// out. Used for the line-oriented VCR adapter output (tracked-file
// listings, change listings) before it's turned into records.
func LineTransformer(transform func(line string) (string, bool)) StepFunc {
	return func(_ context.Context, _ core.Vars, out io.Writer, in io.Reader) error {
		bw := bufio.NewWriter(out)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			line, ok := transform(sc.Text())
			if !ok {
				continue
			}
			if _, err := bw.WriteString(line); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		if err := sc.Err(); err != nil {
			return err
		}
		return bw.Flush()
	}
}
