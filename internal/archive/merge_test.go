// internal/archive/merge_test.go
package archive

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/user/gemscrape/internal/types"
)

func TestMergeOrdersByIndex(t *testing.T) {
	p := NewPackager()

	second, _, err := p.Package([]types.ChatRecord{{
		Index: 5, Title: "Later",
		Messages: []types.Message{{Role: types.RoleUser, Text: "later question", TurnIndex: 1}},
	}}, 5)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	first, _, err := p.Package([]types.ChatRecord{{
		Index: 1, Title: "Earlier",
		Messages: []types.Message{{Role: types.RoleUser, Text: "earlier question", TurnIndex: 1}},
	}}, 1)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}

	// Feed the archives out of order; merge sorts by chat index.
	combinedJSON, combinedMD, err := Merge([][]byte{second, first})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	var docs []chatDoc
	if err := json.Unmarshal(combinedJSON, &docs); err != nil {
		t.Fatalf("decode merged JSON: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d chats, want 2", len(docs))
	}
	if docs[0].Index != 1 || docs[1].Index != 5 {
		t.Errorf("merge order: %d, %d", docs[0].Index, docs[1].Index)
	}

	md := string(combinedMD)
	if strings.Index(md, "# Earlier") > strings.Index(md, "# Later") {
		t.Error("markdown not ordered by chat index")
	}
	if !strings.Contains(md, "\n---\n") {
		t.Error("markdown missing chat separator")
	}
}

func TestMergeEmptyInput(t *testing.T) {
	combinedJSON, combinedMD, err := Merge(nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	var docs []chatDoc
	if err := json.Unmarshal(combinedJSON, &docs); err != nil {
		t.Fatalf("decode merged JSON: %v", err)
	}
	if len(docs) != 0 || len(combinedMD) != 0 {
		t.Errorf("expected empty merge output, got %d chats, %d md bytes", len(docs), len(combinedMD))
	}
}
