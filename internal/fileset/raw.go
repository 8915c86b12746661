package fileset

import (
	"bufio"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/sevigo/locomote-server/internal/core"
)

// rawProcessor records only {path, category, status, commit}: no file
// contents are ever read to build or pipe a raw record.
type rawProcessor struct{}

func (rawProcessor) Kind() core.ProcessorKind { return core.ProcessorRaw }

func (rawProcessor) MakeRecord(p, category, commit string, status core.RecordStatus, _ Reader) (*core.FileRecord, error) {
	return &core.FileRecord{Path: p, Category: category, Status: status, Commit: commit}, nil
}

func (rawProcessor) PipeContents(_ *core.RequestContext, _ string, src Reader, dst Writer) error {
	_, err := io.Copy(dst, src)
	return err
}

// MakeSearchRecord indexes the file verbatim, title defaulting to its
// basename. Binary-looking content (anything that doesn't decode as
// valid UTF-8 text within the first line) is skipped.
func (rawProcessor) MakeSearchRecord(rec *core.FileRecord, content Reader) (*SearchRecord, bool, error) {
	var body strings.Builder
	scanner := bufio.NewScanner(content)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	first := true
	for scanner.Scan() {
		if first && !utf8.ValidString(scanner.Text()) {
			return nil, false, nil
		}
		first = false
		body.WriteString(scanner.Text())
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}
	return &SearchRecord{
		ID:       rec.Path,
		Path:     rec.Path,
		Title:    path.Base(rec.Path),
		Content:  body.String(),
		Category: rec.Category,
	}, true, nil
}
