package fileset

import (
	"bytes"
	"encoding/json"
	"io"
	"path"

	"github.com/sevigo/locomote-server/internal/core"
)

// jsonParseProcessor reads the JSON file at the requested commit and
// embeds the parsed value as record.Data.
type jsonParseProcessor struct{}

func (jsonParseProcessor) Kind() core.ProcessorKind { return core.ProcessorJSONParse }

func (jsonParseProcessor) MakeRecord(p, category, commit string, status core.RecordStatus, content Reader) (*core.FileRecord, error) {
	rec := &core.FileRecord{Path: p, Category: category, Status: status, Commit: commit}
	if content == nil {
		return rec, nil
	}
	raw, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, err
	}
	rec.Data = json.RawMessage(compact.Bytes())
	return rec, nil
}

func (jsonParseProcessor) PipeContents(_ *core.RequestContext, _ string, src Reader, dst Writer) error {
	_, err := io.Copy(dst, src)
	return err
}

// MakeSearchRecord indexes the file's raw JSON text; title falls back to
// the basename since JSON documents carry no inherent title field.
func (jsonParseProcessor) MakeSearchRecord(rec *core.FileRecord, content Reader) (*SearchRecord, bool, error) {
	raw, err := io.ReadAll(content)
	if err != nil {
		return nil, false, err
	}
	return &SearchRecord{
		ID:       rec.Path,
		Path:     rec.Path,
		Title:    path.Base(rec.Path),
		Content:  string(raw),
		Category: rec.Category,
	}, true, nil
}
