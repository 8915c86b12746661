package search

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sevigo/locomote-server/internal/async"
	"github.com/sevigo/locomote-server/internal/core"
	"github.com/sevigo/locomote-server/internal/negotiator"
)

// Negotiator is the narrow slice of *negotiator.Negotiator the search
// HTTP stream needs: suppressing rows that name a representation other
// than the one this request would actually be served.
type Negotiator interface {
	IsPreferredPath(ctx *core.RequestContext, headers negotiator.Headers, candidatePath string) (bool, error)
}

// Serve streams art's cached rows as a JSON array, applying ACM
// accessibility/filtering and the content negotiator's
// preferred-representation predicate to each one (spec §4.9 "HTTP
// serve"). Writes are serialized on a per-response named queue so
// concurrent contributions to w (if any) preserve `[`, `,`, `]` framing;
// a response with zero surviving rows still writes a valid `[]`.
func (idx *Index) Serve(w io.Writer, art *core.Artifact, authCtx *core.AuthContext, reqCtx *core.RequestContext, neg Negotiator, headers negotiator.Headers) error {
	f, err := os.Open(art.FilePath)
	if err != nil {
		return fmt.Errorf("search: open artifact: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(w)
	queueName := "http-serve:" + reqCtx.Key()

	writeToken := func(tok string) error {
		_, err := async.Submit(idx.queue, queueName, func() (struct{}, error) {
			_, err := bw.WriteString(tok)
			return struct{}{}, err
		})
		return err
	}

	if err := writeToken("["); err != nil {
		return err
	}

	first := true
	dec := json.NewDecoder(f)
	for dec.More() {
		var row Row
		if err := dec.Decode(&row); err != nil {
			return err
		}

		if authCtx != nil {
			rec := &core.FileRecord{Path: row.Path, Category: row.Category}
			if !authCtx.Accessible[row.Category] {
				continue
			}
			if authCtx.Filter != nil && !authCtx.Filter(rec) {
				continue
			}
		}
		if neg != nil {
			preferred, err := neg.IsPreferredPath(reqCtx, headers, row.Path)
			if err != nil {
				return err
			}
			if !preferred {
				continue
			}
		}

		payload, err := json.Marshal(row)
		if err != nil {
			return err
		}
		tok := string(payload)
		if !first {
			tok = "," + tok
		}
		first = false
		if err := writeToken(tok); err != nil {
			return err
		}
	}

	if err := writeToken("]"); err != nil {
		return err
	}
	return bw.Flush()
}
