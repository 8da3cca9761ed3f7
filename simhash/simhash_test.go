package simhash

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

func TestFingerprint_SimilarTexts(t *testing.T) {
	fp1 := Fingerprint("great phone battery lasts two days camera is sharp")
	fp2 := Fingerprint("great phone battery lasts three days camera is sharp")

	if d := Distance(fp1, fp2); d > 12 {
		t.Errorf("similar texts have too large distance: %d", d)
	}
	if fp1 != Fingerprint("great phone battery lasts two days camera is sharp") {
		t.Error("fingerprint is not deterministic")
	}
}

func TestFingerprint_Empty(t *testing.T) {
	for _, in := range []string{"", "   \t\n  "} {
		if fp := Fingerprint(in); fp != 0 {
			t.Errorf("Fingerprint(%q) = %064b, want 0", in, fp)
		}
	}
	if FingerprintTokens(nil) != 0 {
		t.Error("no tokens should produce 0")
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"two bits", 0, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCluster(t *testing.T) {
	fps := []uint64{0x0, 0xF0F0, 0x1, 0xF0F1, 0x3}
	got := Cluster(fps, 2)
	want := [][]int{{0, 2, 4}, {1, 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Cluster mismatch (-want +got):\n%s", diff)
	}

	if got := Cluster(nil, 3); got != nil {
		t.Errorf("Cluster(nil) = %v, want nil", got)
	}
}

// childElements parses body markup and returns the element children of the
// first element inside <body>.
func childElements(t *testing.T, markup string) []*html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatal(err)
	}
	var body *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil && body == nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	var list *html.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			list = c
			break
		}
	}
	var out []*html.Node
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func TestFingerprintNode_RepeatedCards(t *testing.T) {
	card := func(title, body string) string {
		return `<article><h3>` + title + `</h3><div class="stars"><span>4</span></div><p>` + body + `</p><footer><span>by someone</span></footer></article>`
	}
	markup := `<html><body><section>` +
		card("Great", "Works well") +
		card("Bad", "Stopped working after a week and support never answered") +
		`<nav><ul><li><a href="/1">1</a></li><li><a href="/2">2</a></li></ul></nav>` +
		`</section></body></html>`

	nodes := childElements(t, markup)
	if len(nodes) != 3 {
		t.Fatalf("expected 3 children, got %d", len(nodes))
	}
	a, b, nav := FingerprintNode(nodes[0]), FingerprintNode(nodes[1]), FingerprintNode(nodes[2])

	if a != b {
		t.Errorf("cards with identical structure differ by %d bits", Distance(a, b))
	}
	if Distance(a, nav) < 12 {
		t.Errorf("card and nav should differ, distance %d", Distance(a, nav))
	}
}

func TestFingerprintNode_RepeatedChildren(t *testing.T) {
	nodes := childElements(t, `<html><body><ul>`+
		`<li><div><span>4</span></div><p>one paragraph</p></li>`+
		`<li><div><span>5</span><span>verified</span></div><p>first</p><p>second</p></li>`+
		`</ul></body></html>`)
	if a, b := FingerprintNode(nodes[0]), FingerprintNode(nodes[1]); a != b {
		t.Errorf("repeated children should not change the fingerprint, distance %d", Distance(a, b))
	}
}

func TestFingerprintHTML_Depth(t *testing.T) {
	deep := FingerprintHTML(`<div><div><div><p>Deep</p></div></div></div>`)
	shallow := FingerprintHTML(`<div><p>Shallow</p></div>`)
	if deep == shallow {
		t.Error("different nesting should produce different fingerprints")
	}
	if FingerprintHTML(`<div><p>one</p></div>`) != FingerprintHTML(`<div><p>two</p></div>`) {
		t.Error("text must not influence the fingerprint")
	}
}

func TestStructureTokens_SkipsScripts(t *testing.T) {
	nodes := childElements(t, `<html><body><div><section><script>var x</script><p>a</p></section></div></body></html>`)
	got := structureTokens(nodes[0])
	want := []string{"0/section", "1/p"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("structureTokens mismatch (-want +got):\n%s", diff)
	}
}
