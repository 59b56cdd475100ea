package trigger_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/goalhorn/internal/trigger"
	"github.com/MrWong99/goalhorn/pkg/text"
)

func TestExtractPhrase(t *testing.T) {
	t.Parallel()

	phrase := text.Tokens("goal for")
	tests := []struct {
		name      string
		line      string
		wantIdent string
		wantOK    bool
	}{
		{name: "phrase with identifier", line: "goal for manchester united fc", wantIdent: "manchester united fc", wantOK: true},
		{name: "phrase at end", line: "goal for", wantIdent: "", wantOK: true},
		{name: "phrase mid line", line: "83 goal for arsenal", wantIdent: "arsenal", wantOK: true},
		{name: "first occurrence wins", line: "goal for a goal for b", wantIdent: "a goal for b", wantOK: true},
		{name: "absent", line: "kick off", wantOK: false},
		{name: "partial phrase", line: "goal", wantOK: false},
		{name: "tokens not contiguous", line: "goal kick for arsenal", wantOK: false},
		{name: "token prefix is not a match", line: "goals for arsenal", wantOK: false},
		{name: "empty line", line: "", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ident, ok := trigger.ExtractPhrase(text.Tokens(tc.line), phrase)
			if ok != tc.wantOK {
				t.Fatalf("ExtractPhrase(%q) ok = %v, want %v", tc.line, ok, tc.wantOK)
			}
			if ident != tc.wantIdent {
				t.Errorf("ExtractPhrase(%q) = %q, want %q", tc.line, ident, tc.wantIdent)
			}
		})
	}
}

func TestExtractPhrase_EmptyPhrase(t *testing.T) {
	t.Parallel()

	if _, ok := trigger.ExtractPhrase([]string{"goal"}, nil); ok {
		t.Error("empty phrase must never match")
	}
}

func TestPhraseDetect(t *testing.T) {
	t.Parallel()

	d, err := trigger.New(trigger.Spec{Kind: trigger.KindPhrase, Phrase: "GOAL FOR"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Kind() != trigger.KindPhrase {
		t.Errorf("Kind = %v, want %v", d.Kind(), trigger.KindPhrase)
	}

	tests := []struct {
		name      string
		raw       string
		wantIdent string
		wantOK    bool
	}{
		{name: "single line", raw: "GOAL FOR Manchester United FC", wantIdent: "manchester united fc", wantOK: true},
		{name: "identifier stops at line end", raw: "GOAL FOR\nArsenal", wantIdent: "", wantOK: true},
		{name: "phrase on second line", raw: "72'\r\nGOAL FOR Chelsea\r\n1 - 0", wantIdent: "chelsea", wantOK: true},
		{name: "first line wins", raw: "GOAL FOR Arsenal\nGOAL FOR Chelsea", wantIdent: "arsenal", wantOK: true},
		{name: "punctuation noise", raw: "  goal-for:  F.C.  Porto!", wantIdent: "f c porto", wantOK: true},
		{name: "no phrase", raw: "HALF TIME", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ev, ok := d.Detect(tc.raw)
			if ok != tc.wantOK {
				t.Fatalf("Detect(%q) ok = %v, want %v", tc.raw, ok, tc.wantOK)
			}
			if ev.Identifier != tc.wantIdent {
				t.Errorf("Detect(%q) identifier = %q, want %q", tc.raw, ev.Identifier, tc.wantIdent)
			}
		})
	}
}

func TestNew_EmptyPhrase(t *testing.T) {
	t.Parallel()

	_, err := trigger.New(trigger.Spec{Kind: trigger.KindPhrase, Phrase: " !! "})
	if !errors.Is(err, trigger.ErrEmptyPhrase) {
		t.Errorf("New error = %v, want ErrEmptyPhrase", err)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := trigger.New(trigger.Spec{Kind: trigger.Kind(42), Phrase: "goal for"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "phrase", " Phrase "} {
		k, err := trigger.ParseKind(in)
		if err != nil || k != trigger.KindPhrase {
			t.Errorf("ParseKind(%q) = %v, %v; want phrase", in, k, err)
		}
	}
	if _, err := trigger.ParseKind("regex"); err == nil {
		t.Error("ParseKind(regex) expected error")
	}
}
