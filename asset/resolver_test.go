package asset

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

// pngHeader is enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func writeFile(t *testing.T, name string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		t.Fatalf("unable to create directory: %v", err)
	}
	if err := os.WriteFile(name, data, 0644); err != nil {
		t.Fatalf("unable to write %s: %v", name, err)
	}
}

func want(mimeType string, data []byte) string {
	return "url(data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data) + ")"
}

// project lays out
//
//	root/src/styles/main.scss
//	root/src/styles/parts/_buttons.scss
//	root/src/img/a.png
//	root/src/fonts/x.woff2
func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "styles", "main.scss"), []byte("a{}"))
	writeFile(t, filepath.Join(root, "src", "styles", "parts", "_buttons.scss"), []byte("b{}"))
	writeFile(t, filepath.Join(root, "src", "img", "a.png"), pngHeader)
	writeFile(t, filepath.Join(root, "src", "fonts", "x.woff2"), []byte("wOF2 data"))
	return root
}

func TestResolve_Direct(t *testing.T) {
	root := project(t)
	r := New(root, WithLogger(zaptest.NewLogger(t)))

	got, ok := r.Resolve(filepath.Join(root, "src", "styles"), "../img/a.png", "")
	if !ok {
		t.Fatal("Resolve() did not find direct reference")
	}
	if got != want("image/png", pngHeader) {
		t.Errorf("Resolve() = %q", got)
	}
}

func TestResolve_QueryAndFragment(t *testing.T) {
	root := project(t)
	r := New(root)

	for _, ref := range []string{"../img/a.png?v=3", "../img/a.png#frag", "../img/a.png?#iefix"} {
		if _, ok := r.Resolve(filepath.Join(root, "src", "styles"), ref, ""); !ok {
			t.Errorf("Resolve(%q) was not resolved", ref)
		}
	}
}

func TestResolve_SearchesNeighbours(t *testing.T) {
	root := project(t)
	r := New(root)

	// not under styles, found in its parent
	got, ok := r.Resolve(filepath.Join(root, "src", "styles"), "img/a.png", "")
	if !ok {
		t.Fatal("Resolve() did not search parent directory")
	}
	if got != want("image/png", pngHeader) {
		t.Errorf("Resolve() = %q", got)
	}

	// from deeper partial directory, sibling of its parent
	if _, ok := r.Resolve(filepath.Join(root, "src", "styles", "parts"), "../fonts/x.woff2", ""); !ok {
		t.Error("Resolve() did not ascend from partial directory")
	}
}

func TestResolve_SearchesSubdirectories(t *testing.T) {
	root := project(t)
	r := New(root)

	if _, ok := r.Resolve(filepath.Join(root, "src", "styles"), "_buttons.scss", ""); !ok {
		t.Error("Resolve() did not search subdirectories")
	}
}

func TestResolve_ExcludedDirectory(t *testing.T) {
	root := project(t)
	r := New(root)

	// the only place file lives is excluded
	if _, ok := r.Resolve(filepath.Join(root, "src", "styles"), "_buttons.scss", filepath.Join(root, "src", "styles", "parts")); ok {
		t.Error("Resolve() searched excluded directory")
	}
}

func TestResolve_Unresolved(t *testing.T) {
	root := project(t)
	r := New(root)

	tests := []struct {
		name, start, ref string
	}{
		{"missing file", filepath.Join(root, "src", "styles"), "img/none.png"},
		{"missing start", filepath.Join(root, "nowhere"), "a.png"},
		{"empty ref", filepath.Join(root, "src", "styles"), ""},
		{"remote", filepath.Join(root, "src", "styles"), "https://example.com/a.png"},
		{"protocol relative", filepath.Join(root, "src", "styles"), "//cdn.example.com/a.png"},
		{"data uri", filepath.Join(root, "src", "styles"), "data:image/png;base64,AAAA"},
		{"directory", filepath.Join(root, "src"), "img"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := r.Resolve(tt.start, tt.ref, ""); ok {
				t.Errorf("Resolve(%q, %q) = %q, want absent", tt.start, tt.ref, got)
			}
		})
	}
}

func TestResolve_StopsAtRoot(t *testing.T) {
	root := project(t)
	// file directly in root is reachable only by ascending to the root
	writeFile(t, filepath.Join(root, "top.png"), pngHeader)
	r := New(root)

	if _, ok := r.Resolve(filepath.Join(root, "src", "styles"), "top.png", ""); ok {
		t.Error("Resolve() must not search the root directory itself")
	}
	// outside of the root only direct lookup is done
	if _, ok := r.Resolve(filepath.Dir(root), "img/a.png", ""); ok {
		t.Error("Resolve() must not search outside of the root")
	}
}

func TestResolve_FromRoot(t *testing.T) {
	root := project(t)
	r := New(root, WithLogger(zaptest.NewLogger(t)))

	got, ok := r.Resolve(root, "img/a.png", "")
	if !ok {
		t.Fatal("Resolve() did not descend from the root")
	}
	if want := DataURI("image/png", pngHeader); got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
	if _, ok := r.Resolve(root, "a.png", ""); ok {
		t.Error("Resolve() went deeper than immediate subdirectories of the root")
	}
	if _, ok := r.Resolve(root, filepath.Base(root)+"/src/img/a.png", ""); ok {
		t.Error("Resolve() ascended above the root")
	}
}

func TestResolve_MaxDepth(t *testing.T) {
	root := project(t)
	start := filepath.Join(root, "src", "styles", "parts")

	if _, ok := New(root, WithMaxDepth(1)).Resolve(start, "img/a.png", ""); ok {
		t.Error("Resolve() exceeded search depth")
	}
	if _, ok := New(root, WithMaxDepth(2)).Resolve(start, "img/a.png", ""); !ok {
		t.Error("Resolve() did not find file within search depth")
	}
}

func TestResolve_MaxSize(t *testing.T) {
	root := project(t)
	start := filepath.Join(root, "src", "styles")

	if _, ok := New(root, WithMaxSize(4)).Resolve(start, "../img/a.png", ""); ok {
		t.Error("Resolve() inlined file over size limit")
	}
	if _, ok := New(root, WithMaxSize(1024)).Resolve(start, "../img/a.png", ""); !ok {
		t.Error("Resolve() refused file under size limit")
	}
}

func TestResolve_SkipsSymlinks(t *testing.T) {
	root := project(t)
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.png"), pngHeader)
	if err := os.Symlink(outside, filepath.Join(root, "src", "styles", "link")); err != nil {
		t.Skipf("symbolic links are not supported: %v", err)
	}

	if _, ok := New(root).Resolve(filepath.Join(root, "src", "styles"), "secret.png", ""); ok {
		t.Error("Resolve() followed symbolic link")
	}
}

func TestResolve_Cached(t *testing.T) {
	root := project(t)
	r := New(root)
	start := filepath.Join(root, "src", "styles")

	first, ok := r.Resolve(start, "../img/a.png", "")
	if !ok {
		t.Fatal("Resolve() failed")
	}
	if err := os.Remove(filepath.Join(root, "src", "img", "a.png")); err != nil {
		t.Fatalf("unable to remove file: %v", err)
	}
	second, ok := r.Resolve(start, "../img/a.png", "")
	if !ok || second != first {
		t.Error("Resolve() did not use cached result")
	}
}

func TestResolve_Concurrent(t *testing.T) {
	root := project(t)
	r := New(root)
	start := filepath.Join(root, "src", "styles")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Resolve(start, "img/a.png", ""); !ok {
				t.Error("Resolve() failed")
			}
		}()
	}
	wg.Wait()
}

func TestPathAndExternal(t *testing.T) {
	if got := Path(" ../a.png?x#y "); got != "../a.png" {
		t.Errorf("Path() = %q", got)
	}
	for ref, ext := range map[string]bool{
		"http://a/b.png":    true,
		"data:image/png;x":  true,
		"//host/a.png":      true,
		"c:/fonts/a.woff":   false,
		"img/a.png":         false,
		"/img/a.png":        false,
		"1x:not-a-scheme":   false,
		"chrome-ext://file": true,
	} {
		if got := IsExternal(ref); got != ext {
			t.Errorf("IsExternal(%q) = %v, want %v", ref, got, ext)
		}
	}
}
