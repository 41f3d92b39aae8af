package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/leeds-assets/internal/chunktest"
	"github.com/Faultbox/leeds-assets/pkg/asset"
	"github.com/Faultbox/leeds-assets/pkg/formats"
)

func testModel() []byte {
	return chunktest.New(nil).Chunk(formats.RootModel, 1, func(b *chunktest.Builder) {
		b.Chunk(0x7777, 3, func(b *chunktest.Builder) { b.U32(1) })
	}).Bytes()
}

func testWorld(models ...string) []byte {
	return chunktest.New(nil).Chunk(formats.RootWorld, 1, func(b *chunktest.Builder) {
		b.Chunk(formats.IDInstanceList, 1, func(b *chunktest.Builder) {
			b.U32(uint32(len(models)))
			for _, m := range models {
				b.U8(0).Pad(3).String(m, 24).U32(0)
				b.F32(1, 0, 0, 0, 1, 0, 0, 0, 1).F32(0, 0, 0).F32(50).U16(0).U16(0)
			}
		})
	}).Bytes()
}

// runCLI executes leedstool in an isolated working directory.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeInputs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"lamppost.mdl": testModel(),
		"beach.wrld":   testWorld("lamppost", "palm"),
		"broken.mdl":   []byte("not a chunk stream at all"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestInfo(t *testing.T) {
	dir := writeInputs(t)
	out, errOut, err := runCLI(t, "info", dir)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"Files:        2", "Models:       1", "Unresolved:   1", "Unknown:      1"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output lacks %q:\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, "broken.mdl") {
		t.Errorf("no warning for broken.mdl on stderr: %q", errOut)
	}
}

func TestDecodeYAML(t *testing.T) {
	dir := writeInputs(t)
	out, _, err := runCLI(t, "decode", "--format", "yaml", "--show-unknown", dir)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var r report
	if err := yaml.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if len(r.Models) != 1 || r.Models[0].Name != "lamppost" {
		t.Errorf("models = %+v", r.Models)
	}
	if len(r.Worlds) != 1 || r.Worlds[0].Instances != 2 || r.Worlds[0].Resolved != 1 {
		t.Errorf("worlds = %+v", r.Worlds)
	}
	if len(r.Unresolved) != 1 || !strings.Contains(r.Unresolved[0], "palm") {
		t.Errorf("unresolved = %v", r.Unresolved)
	}
	if len(r.Unknown) != 1 || !strings.Contains(r.Unknown[0], "0x7777") {
		t.Errorf("unknown = %v", r.Unknown)
	}
	var formatDiag bool
	for _, d := range r.Diagnostics {
		if strings.HasPrefix(d, "FormatError") && strings.Contains(d, "broken.mdl") {
			formatDiag = true
		}
	}
	if !formatDiag {
		t.Errorf("diagnostics lack the broken file: %v", r.Diagnostics)
	}
}

func TestUnknownSummary(t *testing.T) {
	dir := writeInputs(t)
	out, _, err := runCLI(t, "unknown", "--summary", dir)
	if err != nil {
		t.Fatalf("unknown: %v", err)
	}
	if !strings.Contains(out, "0x7777") || !strings.Contains(out, "x1") || !strings.Contains(out, "CLMP") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestDump(t *testing.T) {
	dir := writeInputs(t)
	out, _, err := runCLI(t, "dump", "--depth", "0", "BEACH", dir)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out, "asset.World") || !strings.Contains(out, "palm") {
		t.Errorf("unexpected dump:\n%s", out)
	}

	if _, _, err := runCLI(t, "dump", "nothing", dir); err == nil {
		t.Error("dump of a missing entity succeeded")
	}
}

func TestAllInputsBroken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.mdl")
	if err := os.WriteFile(path, []byte("garbage garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, "info", path); err == nil {
		t.Error("info succeeded with no decodable input")
	}
	if _, _, err := runCLI(t, "info", filepath.Join(dir, "missing.mdl")); err == nil {
		t.Error("info succeeded with a missing input")
	}
}

func TestImgCommands(t *testing.T) {
	dir := t.TempDir()
	archive := chunktest.WriteArchive(t, filepath.Join(dir, "gta3.img"),
		chunktest.Member{Name: "lamppost.mdl", Data: testModel()},
		chunktest.Member{Name: "beach.wrld", Data: testWorld("lamppost")},
	)

	out, _, err := runCLI(t, "img", "list", archive, "*.mdl")
	if err != nil {
		t.Fatalf("img list: %v", err)
	}
	if !strings.Contains(out, "lamppost.mdl") || strings.Contains(out, "beach.wrld") {
		t.Errorf("unexpected listing:\n%s", out)
	}

	outDir := filepath.Join(dir, "out")
	if _, _, err := runCLI(t, "img", "extract", archive, "BEACH.WRLD", outDir); err != nil {
		t.Fatalf("img extract: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "beach.wrld"))
	if err != nil || len(data) != 2048 {
		t.Errorf("extracted %d bytes, err %v", len(data), err)
	}

	out, _, err = runCLI(t, "decode", archive)
	if err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	if !strings.Contains(out, "Unresolved:   0") || !strings.Contains(out, "gta3.img/beach.wrld") {
		t.Errorf("archive decode report:\n%s", out)
	}
}

func TestGroupUnknown(t *testing.T) {
	chunks := []asset.UnknownChunk{
		{File: "a", ID: 0x20, ParentID: 0x10},
		{File: "b", ID: 0x20, ParentID: 0x11},
		{File: "b", ID: 0x30, ParentID: 0x10},
		{File: "b", ID: 0x20, ParentID: 0x10},
	}
	got := groupUnknown(chunks)
	if len(got) != 2 {
		t.Fatalf("got %d groups", len(got))
	}
	if got[0].ID != "0x0020" || got[0].Count != 3 || got[0].Files != 2 || len(got[0].Parents) != 2 {
		t.Errorf("first group = %+v", got[0])
	}
	if got[1].ID != "0x0030" || got[1].Count != 1 {
		t.Errorf("second group = %+v", got[1])
	}
}
