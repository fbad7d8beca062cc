package clipboard

import (
	"testing"
	"time"
)

type fakeOSClipboard struct {
	content Content
	set     []Content
}

func (f *fakeOSClipboard) GetContent(format Format) (Content, error) {
	return f.content, nil
}

func (f *fakeOSClipboard) SetContent(c Content) error {
	f.set = append(f.set, c)
	f.content = c
	return nil
}

func TestEngineDelayedRenderingRoundTrip(t *testing.T) {
	os := &fakeOSClipboard{}
	e := NewEngine(EngineConfig{MaxContentBytes: 1 << 20}, os)

	if err := e.OnRemoteFormatList([]FormatEntry{{ID: FormatUnicodeText}}); err != nil {
		t.Fatalf("OnRemoteFormatList: %v", err)
	}
	if e.State() != RemoteOwned {
		t.Fatalf("expected RemoteOwned after format list, got %v", e.State())
	}

	format, err := e.RequestPaste()
	if err != nil {
		t.Fatalf("RequestPaste: %v", err)
	}
	if format != FormatUnicodeText {
		t.Fatalf("expected FormatUnicodeText, got %v", format)
	}
	if e.State() != Transferring {
		t.Fatalf("expected Transferring, got %v", e.State())
	}

	content := Content{Format: FormatUnicodeText, Text: "hello from viewer"}
	if err := e.CompletePaste(content); err != nil {
		t.Fatalf("CompletePaste: %v", err)
	}
	if e.State() != RemoteOwned {
		t.Fatalf("expected RemoteOwned after completion, got %v", e.State())
	}
	if len(os.set) != 1 || os.set[0].Text != "hello from viewer" {
		t.Fatalf("expected OS clipboard to receive pasted content, got %+v", os.set)
	}
}

func TestEngineOversizedContentRejected(t *testing.T) {
	os := &fakeOSClipboard{}
	e := NewEngine(EngineConfig{MaxContentBytes: 4}, os)

	_ = e.OnRemoteFormatList([]FormatEntry{{ID: FormatUnicodeText}})
	_, _ = e.RequestPaste()

	err := e.CompletePaste(Content{Format: FormatUnicodeText, Text: "way too long"})
	if err != ErrContentTooLarge {
		t.Fatalf("expected ErrContentTooLarge, got %v", err)
	}
}

func TestLoopGuardSuppressesEcho(t *testing.T) {
	g := NewLoopGuard()
	content := Content{Format: FormatUnicodeText, Text: "round trip me"}

	if g.Seen(content) {
		t.Fatal("unseen content should not be recognized")
	}
	g.Record(content)
	if !g.Seen(content) {
		t.Fatal("recorded content should be recognized as seen")
	}

	other := Content{Format: FormatUnicodeText, Text: "different content"}
	if g.Seen(other) {
		t.Fatal("distinct content should not match a different fingerprint")
	}
}

func TestLoopGuardEvictsAtCapacity(t *testing.T) {
	g := NewLoopGuard()
	var first Content
	for i := 0; i < loopGuardCapacity+1; i++ {
		c := Content{Format: FormatUnicodeText, Text: string(rune('a' + i))}
		if i == 0 {
			first = c
		}
		g.Record(c)
	}
	if g.Seen(first) {
		t.Fatal("oldest entry should have been evicted once capacity was exceeded")
	}
}

func TestEngineTransferTimeoutRevertsToRemoteOwned(t *testing.T) {
	os := &fakeOSClipboard{}
	e := NewEngine(EngineConfig{MaxContentBytes: 1 << 20}, os)
	clock := fixedClock{}
	e.now = clock.Now

	if err := e.OnRemoteFormatList([]FormatEntry{{ID: FormatUnicodeText}}); err != nil {
		t.Fatalf("OnRemoteFormatList: %v", err)
	}
	if _, err := e.RequestPaste(); err != nil {
		t.Fatalf("RequestPaste: %v", err)
	}
	if e.State() != Transferring {
		t.Fatalf("expected Transferring, got %v", e.State())
	}

	if e.CheckTransferTimeout() {
		t.Fatal("expected no timeout before the deadline elapses")
	}

	clock.advance(6 * time.Second)
	if !e.CheckTransferTimeout() {
		t.Fatal("expected the transfer to time out after 6s")
	}
	if e.State() != RemoteOwned {
		t.Fatalf("expected RemoteOwned after timeout, got %v", e.State())
	}
}

func TestUnicodeTextRoundTrip(t *testing.T) {
	original := "héllo wörld éè"
	encoded := EncodeUnicodeText(original)
	decoded, err := DecodeUnicodeText(encoded)
	if err != nil {
		t.Fatalf("DecodeUnicodeText: %v", err)
	}
	if decoded != original {
		t.Fatalf("round trip mismatch: got %q, want %q", decoded, original)
	}
}

func TestHTMLFragmentRoundTrip(t *testing.T) {
	fragment := "<b>bold</b> and <i>italic</i>"
	encoded := EncodeHTML(fragment)
	decoded, err := DecodeHTML(encoded)
	if err != nil {
		t.Fatalf("DecodeHTML: %v", err)
	}
	if decoded != fragment {
		t.Fatalf("round trip mismatch: got %q, want %q", decoded, fragment)
	}
}

func TestSanitizeFileNameStripsTraversal(t *testing.T) {
	cases := map[string]string{
		"../../etc/passwd":       "passwd",
		"..\\..\\Windows\\a.txt": "a.txt",
		"plainname.txt":          "plainname.txt",
		"..":                     "unnamed",
		"/":                      "unnamed",
	}
	for in, want := range cases {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfinePathConfinesTraversalUnderRoot(t *testing.T) {
	root := t.TempDir()
	if _, err := ConfinePath(root, "../../etc/passwd"); err != nil {
		t.Fatalf("expected sanitized traversal to resolve safely under root, got error: %v", err)
	}
	safe, err := ConfinePath(root, "report.pdf")
	if err != nil {
		t.Fatalf("ConfinePath: %v", err)
	}
	if safe == "" {
		t.Fatal("expected a non-empty confined path")
	}
}
