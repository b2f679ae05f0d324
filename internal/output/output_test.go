package output

import "testing"

type payload struct {
	Name string `json:"name" yaml:"name"`
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"", FormatJSON, true},
		{"json", FormatJSON, true},
		{"yaml", FormatYAML, true},
		{"xml", "", false},
	}
	for _, c := range cases {
		got, ok := ParseFormat(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Fatalf("ParseFormat(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestRenderJSON(t *testing.T) {
	out, err := Render(payload{Name: "org-1"}, FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "{\n  \"name\": \"org-1\"\n}"
	if string(out) != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRenderYAML(t *testing.T) {
	out, err := Render(payload{Name: "org-1"}, FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "name: org-1\n"
	if string(out) != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRenderStringWrapsRender(t *testing.T) {
	s, err := RenderString(payload{Name: "org-1"}, FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "name: org-1\n" {
		t.Fatalf("got %q", s)
	}
}
