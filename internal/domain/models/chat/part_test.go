package chat

import (
	"encoding/json"
	"testing"
)

func TestPartUnmarshalKnownKinds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Part
	}{
		{
			name: "text",
			in:   `{"type":"text","text":"hello"}`,
			want: Part{Kind: PartKindText, Text: "hello"},
		},
		{
			name: "reasoning",
			in:   `{"type":"reasoning","text":"thinking"}`,
			want: Part{Kind: PartKindReasoning, Text: "thinking"},
		},
		{
			name: "file",
			in:   `{"type":"file","mediaType":"image/png","name":"a.png","url":"https://example.com/a.png"}`,
			want: Part{Kind: PartKindFile, File: &FilePart{MediaType: "image/png", Name: "a.png", URL: "https://example.com/a.png"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Part
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("unmarshal error: %v", err)
			}
			if got.Kind != tt.want.Kind || got.Text != tt.want.Text {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if tt.want.File != nil && (got.File == nil || *got.File != *tt.want.File) {
				t.Errorf("file = %+v, want %+v", got.File, tt.want.File)
			}
		})
	}
}

func TestPartUnknownRoundTrip(t *testing.T) {
	in := `{"type":"data-weather","temperature":17,"unit":"C"}`

	var p Part
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if p.Kind != PartKindUnknown {
		t.Fatalf("kind = %q, want unknown", p.Kind)
	}
	if p.Known() {
		t.Error("unknown part reported as known")
	}

	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(out) != in {
		t.Errorf("round-trip changed payload:\n in: %s\nout: %s", in, out)
	}
}

func TestPartSliceRoundTrip(t *testing.T) {
	in := `[{"type":"text","text":"hi"},{"type":"future-kind","x":1}]`

	var parts []Part
	if err := json.Unmarshal([]byte(in), &parts); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("len = %d, want 2", len(parts))
	}

	kept := KnownParts(parts)
	if len(kept) != 1 || kept[0].Kind != PartKindText {
		t.Errorf("KnownParts kept %+v", kept)
	}
}

func TestJoinText(t *testing.T) {
	parts := []Part{
		ReasoningPart("ignore me"),
		TextPart("hello "),
		TextPart("world"),
	}
	if got := JoinText(parts); got != "hello world" {
		t.Errorf("JoinText = %q", got)
	}
}
