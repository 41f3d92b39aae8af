package asset

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/Faultbox/leeds-assets/pkg/encoding"
)

func worldFragment(file string, refs ...ModelRef) *Fragment {
	w := &World{Name: "block", File: file}
	for _, r := range refs {
		w.Instances = append(w.Instances, WorldInstance{Model: r})
	}
	return &Fragment{File: file, Worlds: []*World{w}}
}

func modelFragment(file, name string, textures ...string) *Fragment {
	m := &Model{Name: name, File: file}
	for _, tex := range textures {
		m.Materials = append(m.Materials, Material{Texture: &TextureRef{Name: tex}})
	}
	return &Fragment{File: file, Models: []*Model{m}}
}

func TestWorldWithMissingModel(t *testing.T) {
	s := NewSession(nil)
	s.Merge(modelFragment("lamp.mdl", "lamppost"))

	report, err := MergeIntoSession(context.Background(), worldFragment("street.wrld",
		ModelRef{Name: "LampPost"},
		ModelRef{Name: "bench"},
	), s)
	if err != nil {
		t.Fatal(err)
	}

	if report.Resolved != 1 || len(report.Unresolved) != 1 {
		t.Fatalf("report = %+v", report)
	}
	d := report.Unresolved[0]
	if d.Kind != KindReferenceUnresolved || !errors.Is(d.Err, ErrReferenceUnresolved) {
		t.Errorf("diagnostic = %v", d)
	}

	inst := s.Instances()
	if inst[0].Link.State != LinkResolved || inst[0].Link.Model == nil || inst[0].Link.Model.Name != "lamppost" {
		t.Errorf("instance 0 link = %+v", inst[0].Link)
	}
	if inst[1].Link.State != LinkUnresolved || inst[1].Link.Model != nil {
		t.Errorf("instance 1 link = %+v", inst[1].Link)
	}

	refs := s.ListUnresolvedReferences()
	if len(refs) != 1 || refs[0].Name != "bench" || refs[0].Kind != RefModel || refs[0].File != "street.wrld" {
		t.Errorf("unresolved = %+v", refs)
	}
}

func TestResolveReplacesEarlierResults(t *testing.T) {
	ctx := context.Background()
	s := NewSession(nil)
	if _, err := MergeIntoSession(ctx, worldFragment("a.wrld", ModelRef{Name: "bench"}), s); err != nil {
		t.Fatal(err)
	}
	if n := len(s.ListUnresolvedReferences()); n != 1 {
		t.Fatalf("unresolved = %d, want 1", n)
	}

	report, err := MergeIntoSession(ctx, modelFragment("bench.mdl", "bench"), s)
	if err != nil {
		t.Fatal(err)
	}
	if report.Resolved != 1 || len(report.Unresolved) != 0 {
		t.Errorf("report = %+v", report)
	}
	if n := len(s.ListUnresolvedReferences()); n != 0 {
		t.Errorf("unresolved after load = %d", n)
	}
	for _, d := range s.Diagnostics() {
		if d.Kind == KindReferenceUnresolved {
			t.Errorf("stale diagnostic %v", d)
		}
	}
}

func TestResolveByHash(t *testing.T) {
	s := NewSession(nil)
	frag := modelFragment("tree.mdl", "palm01")
	frag.Models[0].Atomics = []Atomic{{HashKey: 0xCAFEBABE}}
	s.Merge(frag)
	s.Merge(worldFragment("beach.wrld",
		ModelRef{Hash: encoding.HashName("PALM01"), ByHash: true},
		ModelRef{Hash: 0xCAFEBABE, ByHash: true},
		ModelRef{Hash: 1, ByHash: true},
	))

	report, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Resolved != 2 || len(report.Unresolved) != 1 {
		t.Errorf("report = %+v", report)
	}
	if s.FindModelByHash(0xCAFEBABE) == nil {
		t.Error("atomic hash key not indexed")
	}
}

func TestResolveTextures(t *testing.T) {
	s := NewSession(nil)
	s.Merge(&Fragment{File: "generic.txd", Dictionaries: []*TextureDictionary{{
		Name: "generic", File: "generic.txd",
		Entries: []TextureEntry{{Name: "road"}, {Name: "kerb"}},
	}}})
	s.Merge(&Fragment{File: "vice.txd", Dictionaries: []*TextureDictionary{{
		Name: "vice", File: "vice.txd",
		Entries: []TextureEntry{{Name: "road"}},
	}}})

	frag := modelFragment("street.mdl", "street", "ROAD", "kerb", "grass")
	frag.Models[0].Materials[0].Texture.Dictionary = "vice"
	s.Merge(frag)

	report, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Resolved != 2 || len(report.Unresolved) != 1 {
		t.Fatalf("report = %+v", report)
	}

	m := s.FindModel("street")
	road := m.Materials[0].Texture.Link
	if road.State != LinkResolved || road.Dictionary.Name != "vice" {
		t.Errorf("road link = %+v", road)
	}
	kerb := m.Materials[1].Texture.Link
	if kerb.State != LinkResolved || kerb.Dictionary.Name != "generic" {
		t.Errorf("kerb link = %+v", kerb)
	}
	if m.Materials[2].Texture.Link.State != LinkUnresolved {
		t.Error("grass should be unresolved")
	}

	if e := s.FindTexture("Road"); e == nil || e != &s.FindTextureDictionary("generic").Entries[0] {
		t.Error("FindTexture should prefer the first dictionary by file name")
	}
	if s.FindTextureIn("vice", "road") == nil {
		t.Error("FindTextureIn(vice, road) = nil")
	}
}

func TestConcurrentMerge(t *testing.T) {
	s := NewSession(nil)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			file := fmt.Sprintf("m%02d.mdl", i)
			frag := modelFragment(file, fmt.Sprintf("model%02d", i))
			frag.Unknown = []UnknownChunk{{File: file, ID: 0x999}}
			s.Merge(frag)
		}()
	}
	wg.Wait()

	st := s.Stats()
	if st.Models != 32 || st.Unknown != 32 || st.Files != 32 {
		t.Errorf("stats = %+v", st)
	}
	unknown := s.ListUnknownChunks()
	if unknown[0].File != "m00.mdl" || unknown[31].File != "m31.mdl" {
		t.Error("unknown chunks not ordered by file")
	}
	if s.FindModel("MODEL17") == nil {
		t.Error("FindModel(MODEL17) = nil")
	}
}

func TestDuplicateNamesPreferFirstFile(t *testing.T) {
	for _, order := range [][]string{{"a.mdl", "b.mdl"}, {"b.mdl", "a.mdl"}} {
		s := NewSession(nil)
		for _, f := range order {
			s.Merge(modelFragment(f, "dup"))
		}
		if got := s.FindModel("dup").File; got != "a.mdl" {
			t.Errorf("merge order %v: FindModel = %s, want a.mdl", order, got)
		}
	}
}

func TestDuplicateDictionariesAndCollisionsAreKept(t *testing.T) {
	for _, order := range [][]string{{"a.txd", "b.txd"}, {"b.txd", "a.txd"}} {
		s := NewSession(nil)
		for _, f := range order {
			s.Merge(&Fragment{File: f, Dictionaries: []*TextureDictionary{{
				Name: "generic", File: f, Entries: []TextureEntry{{Name: "tex_" + f}},
			}}})
		}
		s.Merge(&Fragment{File: "pier.col2", Collisions: []*CollisionModel{
			{Name: "box", File: "pier.col2", Spheres: []CollisionSphere{{Radius: 1}}},
			{Name: "box", File: "pier.col2"},
		}})

		st := s.Stats()
		if st.Dictionaries != 2 || st.Textures != 2 || st.Collisions != 2 {
			t.Errorf("merge order %v: stats = %+v", order, st)
		}
		dicts := s.Dictionaries()
		if len(dicts) != 2 || dicts[0].File != "a.txd" || dicts[1].File != "b.txd" {
			t.Errorf("merge order %v: dictionaries = %+v", order, dicts)
		}
		if got := s.FindTextureDictionary("GENERIC").File; got != "a.txd" {
			t.Errorf("merge order %v: FindTextureDictionary = %s, want a.txd", order, got)
		}
		cols := s.Collisions()
		if len(cols) != 2 || len(cols[0].Spheres) != 1 || cols[1].Spheres != nil {
			t.Errorf("merge order %v: collisions = %+v", order, cols)
		}
		if c := s.FindCollision("box"); c != cols[0] {
			t.Errorf("merge order %v: FindCollision returned the later model", order)
		}
	}
}

func TestResolveCancelled(t *testing.T) {
	s := NewSession(nil)
	s.Merge(worldFragment("x.wrld", ModelRef{Name: "a"}, ModelRef{Name: "b"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Resolve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Kind: KindRange, File: "a.txd", Entity: `texture "road"`, ChunkID: 0x0202, Offset: 0x40, Err: errors.New("overrun")}
	want := `RangeError a.txd texture "road" (chunk 0x0202 @0x40): overrun`
	if got := d.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if !KindRange.Fatal() || KindUnsupportedFeature.Fatal() {
		t.Error("Fatal() classification")
	}
}
