package source

import (
	"context"
	"io"
	"strings"
	"testing"

	"mysql2sqlite/internal/dump"
	"mysql2sqlite/internal/schema"
)

func colOf(base string) *schema.Column {
	return &schema.Column{Name: "c", Type: schema.TypeInfo{Base: base}}
}

func TestDumpSourceStreams(t *testing.T) {
	t.Parallel()

	in := `
CREATE TABLE t (id int);
INSERT INTO t VALUES (1),(2);
`
	src := NewDumpReader(strings.NewReader(in), 0)
	defer src.Close()

	ctx := context.Background()
	var got []dump.EventKind
	for {
		ev, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, ev.Kind)
	}
	want := []dump.EventKind{dump.EventTableDef, dump.EventRows, dump.EventTableEnd}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDumpSourceHonorsCancellation(t *testing.T) {
	t.Parallel()

	src := NewDumpReader(strings.NewReader("CREATE TABLE t (id int);"), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); err != context.Canceled {
		t.Fatalf("Next after cancel: %v", err)
	}
}

func TestParseEnumLabels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want []string
	}{
		{"enum('a','b','c')", []string{"a", "b", "c"}},
		{"set('x')", []string{"x"}},
		{"enum('it''s','plain')", []string{"it's", "plain"}},
		{"int", nil},
	}
	for _, c := range cases {
		got := parseEnumLabels(c.in)
		if len(got) != len(c.want) {
			t.Errorf("parseEnumLabels(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("parseEnumLabels(%q)[%d] = %q, want %q", c.in, i, got[i], c.want[i])
			}
		}
	}
}

func TestDriverLiteral(t *testing.T) {
	t.Parallel()

	textCol := colOf("varchar")
	blobCol := colOf("blob")

	if lit := driverLiteral(nil, textCol); lit.Kind != dump.LitNull {
		t.Errorf("nil = %v", lit.Kind)
	}
	if lit := driverLiteral(int64(-5), textCol); lit.Kind != dump.LitNumber {
		t.Errorf("int64 = %v", lit.Kind)
	} else if v, _ := lit.Number.Int64(); v != -5 {
		t.Errorf("int64 value = %d", v)
	}
	if lit := driverLiteral([]byte("abc"), textCol); lit.Kind != dump.LitString || string(lit.Bytes) != "abc" {
		t.Errorf("text bytes = %+v", lit)
	}
	if lit := driverLiteral([]byte{0x01}, blobCol); lit.Kind != dump.LitHex {
		t.Errorf("blob bytes should stay raw, got %v", lit.Kind)
	}
}
