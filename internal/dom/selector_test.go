package dom

import "testing"

func TestParseSelector(t *testing.T) {
	tests := []struct {
		sel     string
		tag     string
		id      string
		classes int
		attrs   int
		wantErr bool
	}{
		{sel: "ucs-nav-panel", tag: "ucs-nav-panel"},
		{sel: ".conversation-list", classes: 1},
		{sel: "div.main.turn", tag: "div", classes: 2},
		{sel: "#status", id: "status"},
		{sel: `[class*="conversation-list"]`, attrs: 1},
		{sel: "[disabled]", attrs: 1},
		{sel: "*"},
		{sel: ".", wantErr: true},
		{sel: "[unterminated", wantErr: true},
	}

	for _, tt := range tests {
		m, err := parseSelector(tt.sel)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.sel)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tt.sel, err)
			continue
		}
		if m.tag != tt.tag || m.id != tt.id || len(m.classes) != tt.classes || len(m.attrs) != tt.attrs {
			t.Errorf("%q: got %+v", tt.sel, m)
		}
	}
}

func TestAttrContainsMatch(t *testing.T) {
	doc := mustParse(t, `<html><body>
	  <div class="gmat-conversation-list-item selected">a</div>
	  <div class="other">b</div>
	</body></html>`)

	els := doc.Root().QueryAll(`[class*=conversation-list-item]`)
	if len(els) != 1 || els[0].Text() != "a" {
		t.Fatalf("contains match failed, got %d elements", len(els))
	}
}
