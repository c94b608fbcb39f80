package build

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"runtime"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"stylepipe/compiler"
	"stylepipe/srcmap"
)

type fakeOutput struct {
	css  string
	m    string
	err  error
	merr error // failure of the mapping pass only
	// delay of every pass
	delay time.Duration
}

// fakeCompiler returns canned outputs by source path.
type fakeCompiler struct {
	mu       sync.Mutex
	outputs  map[string]fakeOutput
	requests []compiler.Request
}

func (f *fakeCompiler) Compile(_ context.Context, req compiler.Request) (compiler.Result, error) {
	if d := f.outputs[req.File].delay; d > 0 {
		time.Sleep(d)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	out, ok := f.outputs[req.File]
	if !ok {
		return compiler.Result{}, fmt.Errorf("unexpected file %s", req.File)
	}
	if out.err != nil {
		return compiler.Result{}, out.err
	}
	if req.SourceMap {
		if out.merr != nil {
			return compiler.Result{}, out.merr
		}
		return compiler.Result{CSS: out.css, Map: out.m}, nil
	}
	return compiler.Result{CSS: out.css}, nil
}

func (f *fakeCompiler) Close() error { return nil }

func mapFor(source, mappings string) string {
	return fmt.Sprintf(`{"version":3,"file":"app.css","sources":[%q],"sourcesContent":["a{}"],"names":[],"mappings":%q}`,
		"file://"+filepath.ToSlash(source), mappings)
}

func writeFile(t *testing.T, name string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// project creates src/app/app.scss under temporary root, icon.png is
// placed next to it when requested.
func project(t *testing.T, withIcon bool) (root, source string, icon []byte) {
	t.Helper()
	root = t.TempDir()
	source = filepath.Join(root, "src", "app", "app.scss")
	writeFile(t, source, []byte("a { background: url(icon.png) }\n"))
	icon = []byte("\x89PNG\r\n\x1a\n0123")
	if withIcon {
		writeFile(t, filepath.Join(root, "src", "app", "icon.png"), icon)
	}
	return root, source, icon
}

func TestCompile_InlinesAsset(t *testing.T) {
	root, source, icon := project(t, true)
	fc := &fakeCompiler{outputs: map[string]fakeOutput{
		source: {css: "a{background:url(icon.png)}", m: mapFor(source, "AAAA,EAAE")},
	}}
	o := New(fc, WithRoot(root), WithLogger(zaptest.NewLogger(t)))
	o.RegisterLibraries(filepath.Join(root, "lib"))

	u := NewUnit(source, root, filepath.Join(root, "src"))
	files, err := o.Compile(context.Background(), u)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if u.State() != StateEmitted {
		t.Errorf("state = %v, want emitted", u.State())
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}

	css := files[0]
	if css.Path != filepath.Join(root, "src", "app", "app.css") || css.Relative() != filepath.Join("app", "app.css") {
		t.Errorf("css path = %s (%s)", css.Path, css.Relative())
	}
	want := "a{background:url(data:image/png;base64," + base64.StdEncoding.EncodeToString(icon) + ")}\n/*# sourceMappingURL=app.css.map */"
	if string(css.Contents) != want {
		t.Errorf("css =\n%s\nwant\n%s", css.Contents, want)
	}

	mf := files[1]
	if mf.Path != filepath.Join(root, "src", "app", "app.css.map") {
		t.Errorf("map path = %s", mf.Path)
	}
	if bytes.Contains(mf.Contents, []byte(`"file"`)) || bytes.Contains(mf.Contents, []byte("sourcesContent")) {
		t.Errorf("map keeps file or sources content:\n%s", mf.Contents)
	}
	if !bytes.HasPrefix(mf.Contents, []byte("{\n  \"version\": 3,")) {
		t.Errorf("map is not indented:\n%s", mf.Contents)
	}
	m, err := srcmap.Parse(mf.Contents)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(m.Sources, []string{"/src/app/app.scss"}) {
		t.Errorf("sources = %q", m.Sources)
	}

	if len(fc.requests) != 2 || fc.requests[0].SourceMap || !fc.requests[1].SourceMap {
		t.Fatalf("requests = %+v, want validation then mapping", fc.requests)
	}
	wantLibs := []string{filepath.Join(root, "lib"), filepath.Join(root, "src")}
	if !slices.Equal(fc.requests[0].IncludePaths, wantLibs) {
		t.Errorf("include paths = %q, want %q", fc.requests[0].IncludePaths, wantLibs)
	}
	if o.Diagnostics().Len() != 0 {
		t.Errorf("unexpected diagnostics %q", o.Diagnostics().Items())
	}
}

func TestCompile_MissingAsset(t *testing.T) {
	root, source, _ := project(t, false)
	fc := &fakeCompiler{outputs: map[string]fakeOutput{
		source: {css: "a{background:url(icon.png)}", m: mapFor(source, "AAAA,EAAE")},
	}}
	o := New(fc, WithRoot(root), WithLogger(zaptest.NewLogger(t)))

	files, err := o.Compile(context.Background(), NewUnit(source, root, ""))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if want := "a{background:url(icon.png)}\n/*# sourceMappingURL=app.css.map */"; string(files[0].Contents) != want {
		t.Errorf("css = %q, want %q", files[0].Contents, want)
	}
	if o.Diagnostics().Len() != 0 {
		t.Errorf("unexpected diagnostics %q", o.Diagnostics().Items())
	}
}

func TestCompile_SyntaxError(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "bad.scss")
	fc := &fakeCompiler{outputs: map[string]fakeOutput{
		source: {err: &compiler.Error{Text: `src/bad.scss:3: error: expected "}".`}},
	}}
	o := New(fc, WithRoot(root), WithLogger(zaptest.NewLogger(t)))

	u := NewUnit(source, root, "")
	files, err := o.Compile(context.Background(), u)
	var uerr *UnitError
	if !errors.As(err, &uerr) {
		t.Fatalf("Compile() error = %v, want *UnitError", err)
	}
	if len(files) != 0 {
		t.Errorf("got %d files for failed unit", len(files))
	}
	if u.State() != StateFailed {
		t.Errorf("state = %v, want failed", u.State())
	}
	if len(fc.requests) != 1 {
		t.Errorf("mapping pass ran after failed validation: %+v", fc.requests)
	}
	want := source + `:3:0: expected "}".`
	if got := o.Diagnostics().Items(); !slices.Equal(got, []string{want}) {
		t.Errorf("diagnostics = %q, want %q", got, want)
	}
}

func TestCompile_MappingFailures(t *testing.T) {
	root := t.TempDir()
	broken := filepath.Join(root, "broken.scss")
	badMap := filepath.Join(root, "badmap.scss")
	fc := &fakeCompiler{outputs: map[string]fakeOutput{
		broken: {css: "a{}", merr: errors.New("sass crashed")},
		badMap: {css: "a{}", m: "not json"},
	}}
	o := New(fc, WithRoot(root), WithLogger(zaptest.NewLogger(t)))

	ctx := context.Background()
	if _, err := o.Compile(ctx, NewUnit(broken, root, "")); err == nil {
		t.Error("Compile() succeeded when mapping pass failed")
	}
	if _, err := o.Compile(ctx, NewUnit(badMap, root, "")); err == nil {
		t.Error("Compile() succeeded with malformed map")
	}

	items := o.Diagnostics().Items()
	if len(items) != 2 {
		t.Fatalf("diagnostics = %q", items)
	}
	if items[0] != unparsedMarker+"\nsass crashed" {
		t.Errorf("diagnostic = %q", items[0])
	}
	if !strings.HasPrefix(items[1], badMap+":0:0: source map: ") {
		t.Errorf("diagnostic = %q", items[1])
	}
}

func TestRun_DeduplicatesDiagnostics(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "bad.scss")
	fc := &fakeCompiler{outputs: map[string]fakeOutput{
		source: {err: &compiler.Error{Text: source + ":1: error: boom"}},
	}}
	o := New(fc, WithRoot(root), WithLogger(zaptest.NewLogger(t)))

	units := []*Unit{NewUnit(source, root, ""), NewUnit(source, root, "")}
	emitted := 0
	if err := o.Run(context.Background(), units, func(File) error { emitted++; return nil }); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if emitted != 0 || o.Diagnostics().Len() != 1 {
		t.Errorf("emitted %d files, %d diagnostics", emitted, o.Diagnostics().Len())
	}

	var buf bytes.Buffer
	if err := o.Diagnostics().Flush(&buf, 4); err != nil {
		t.Fatal(err)
	}
	if want := "▼▼▼▼\n\n" + source + ":1:0: boom\n\n▲▲▲▲\n"; buf.String() != want {
		t.Errorf("Flush() = %q, want %q", buf.String(), want)
	}
}

func TestRun_Workers(t *testing.T) {
	root := t.TempDir()
	outputs := make(map[string]fakeOutput)
	var units []*Unit
	for i := range 6 {
		source := filepath.Join(root, fmt.Sprintf("s%d.scss", i))
		switch i {
		case 1, 3:
			outputs[source] = fakeOutput{err: &compiler.Error{Text: fmt.Sprintf("s%d.scss:1: error: bad", i)}}
		default:
			outputs[source] = fakeOutput{css: "a{color:red}", m: mapFor(source, "AAAA")}
		}
		units = append(units, NewUnit(source, root, ""))
	}
	// first units finish last
	for _, i := range []int{0, 1} {
		out := outputs[units[i].Path]
		out.delay = 100 * time.Millisecond
		outputs[units[i].Path] = out
	}
	fc := &fakeCompiler{outputs: outputs}
	o := New(fc, WithRoot(root), WithWorkers(3), WithLogger(zaptest.NewLogger(t)))

	var names []string
	err := o.Run(context.Background(), units, func(f File) error {
		names = append(names, filepath.Base(f.Path))
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []string{"s0.css", "s0.css.map", "s2.css", "s2.css.map", "s4.css", "s4.css.map", "s5.css", "s5.css.map"}
	if !slices.Equal(names, want) {
		t.Errorf("emitted %q, want %q", names, want)
	}
	wantDiags := []string{
		filepath.Join(root, "s1.scss") + ":1:0: bad",
		filepath.Join(root, "s3.scss") + ":1:0: bad",
	}
	if got := o.Diagnostics().Items(); !slices.Equal(got, wantDiags) {
		t.Errorf("diagnostics = %q, want %q", got, wantDiags)
	}
	if len(o.Libraries().Paths()) != 1 {
		t.Errorf("libraries = %q", o.Libraries().Paths())
	}
}

func TestNew_Workers(t *testing.T) {
	tests := []struct {
		workers, want int
	}{
		{0, runtime.NumCPU()},
		{1, 1},
		{4, 4},
	}
	for _, tt := range tests {
		o := New(&fakeCompiler{}, WithRoot(t.TempDir()), WithWorkers(tt.workers))
		if o.workers != tt.want {
			t.Errorf("WithWorkers(%d): workers = %d, want %d", tt.workers, o.workers, tt.want)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "a.scss")
	fc := &fakeCompiler{outputs: map[string]fakeOutput{source: {css: "a{}", m: mapFor(source, "AAAA")}}}

	for _, workers := range []int{1, 2} {
		o := New(fc, WithRoot(root), WithWorkers(workers), WithLogger(zaptest.NewLogger(t)))
		stop := errors.New("disk full")
		err := o.Run(context.Background(), []*Unit{NewUnit(source, root, "")}, func(File) error { return stop })
		if !errors.Is(err, stop) {
			t.Errorf("workers %d: Run() error = %v, want emit error", workers, err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = o.Run(ctx, []*Unit{NewUnit(source, root, "")}, func(File) error { return nil })
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers %d: Run() error = %v, want context.Canceled", workers, err)
		}
	}
}

func TestFormatDiagnostic(t *testing.T) {
	cwd := filepath.FromSlash("/work")
	tests := []struct {
		text, want string
	}{
		{"src/a.scss:12: error: invalid property name", filepath.FromSlash("/work/src/a.scss") + ":12:0: invalid property name"},
		{filepath.FromSlash("/abs/b.scss") + ":1:error:x\n", filepath.FromSlash("/abs/b.scss") + ":1:0: x"},
		{"something went wrong\n", unparsedMarker + "\nsomething went wrong"},
	}
	for _, tt := range tests {
		if got := FormatDiagnostic(tt.text, cwd); got != tt.want {
			t.Errorf("FormatDiagnostic(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDiagnostics_Flush(t *testing.T) {
	var d Diagnostics
	var buf bytes.Buffer
	if err := d.Flush(&buf, 10); err != nil || buf.Len() != 0 {
		t.Errorf("Flush() of empty collector wrote %q, %v", buf.String(), err)
	}

	d.Add("one")
	if d.Add("one") {
		t.Error("duplicate accepted")
	}
	d.Add("two")
	if err := d.Flush(&buf, 0); err != nil {
		t.Fatal(err)
	}
	if want := "\none\n\ntwo\n\n"; buf.String() != want {
		t.Errorf("Flush() = %q, want %q", buf.String(), want)
	}
	if d.Len() != 0 {
		t.Error("Flush() kept messages")
	}
}

func TestLibraries(t *testing.T) {
	dir := t.TempDir()
	l := NewLibraries(zaptest.NewLogger(t), dir, filepath.Join(dir, "missing"), dir+string(filepath.Separator))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Add(filepath.Join(dir, fmt.Sprintf("lib%d", i%2)), "")
		}()
	}
	wg.Wait()

	paths := l.Paths()
	if len(paths) != 4 || paths[0] != dir || paths[1] != filepath.Join(dir, "missing") {
		t.Errorf("Paths() = %q", paths)
	}
	paths[0] = "changed"
	if l.Paths()[0] != dir {
		t.Error("Paths() does not return a copy")
	}
}

func TestUnit(t *testing.T) {
	cwd := filepath.FromSlash("/w")
	u := NewUnit("src/a.scss", cwd, "")
	if u.Path != filepath.FromSlash("/w/src/a.scss") || u.Base != filepath.FromSlash("/w/src") || !u.Style.Compressed() {
		t.Errorf("NewUnit() = %+v", u)
	}
	if u.State() != StatePending || u.name() != "a" {
		t.Errorf("state %v name %q", u.State(), u.name())
	}

	f := File{Path: filepath.FromSlash("/other/a.css"), Base: filepath.FromSlash("/w/src")}
	if f.Relative() != "a.css" {
		t.Errorf("Relative() = %q", f.Relative())
	}
}
