// internal/archive/merge.go
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Merge combines several batch archives into one chats.json and one
// chats.md, ordered by chat index. Image files stay in their batch
// archives; merged output is the text rendition.
func Merge(archives [][]byte) (combinedJSON, combinedMD []byte, err error) {
	var docs []chatDoc

	for i, data := range archives {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, nil, fmt.Errorf("open archive %d: %w", i, err)
		}
		for _, f := range zr.File {
			if !strings.HasSuffix(f.Name, "/chat.json") {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				return nil, nil, fmt.Errorf("open %s: %w", f.Name, err)
			}
			raw, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, nil, fmt.Errorf("read %s: %w", f.Name, err)
			}
			var doc chatDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, nil, fmt.Errorf("decode %s: %w", f.Name, err)
			}
			docs = append(docs, doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Index < docs[j].Index })

	combinedJSON, err = json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal merged chats: %w", err)
	}

	var md strings.Builder
	for i, doc := range docs {
		if i > 0 {
			md.WriteString("\n---\n\n")
		}
		md.WriteString(renderMarkdown(doc))
	}
	return combinedJSON, []byte(md.String()), nil
}
