package asset

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/leeds-assets/pkg/encoding"
)

type textureHandle struct {
	dict  *TextureDictionary
	entry *TextureEntry
}

// Session owns every entity decoded for one import and indexes them by name and hash.
//
// Merge may be called from many goroutines. Resolve must run after the merges
// it should observe have returned.
type Session struct {
	id  uuid.UUID
	log *zap.Logger

	mu           sync.RWMutex
	files        []string
	models       []*Model
	worlds       []*World
	dictionaries []*TextureDictionary
	collisions   []*CollisionModel
	modelIndex   map[string]*Model
	hashIndex    map[uint32]*Model
	dictIndex    map[string]*TextureDictionary
	textures     map[string][]textureHandle
	collIndex    map[string]*CollisionModel
	unknown      []UnknownChunk
	diags        []Diagnostic
	unresolved   []Reference
	refDiags     []Diagnostic
}

// NewSession returns an empty session. A nil logger disables logging.
func NewSession(log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New()
	return &Session{
		id:         id,
		log:        log.With(zap.Stringer("session", id)),
		modelIndex: make(map[string]*Model),
		hashIndex:  make(map[uint32]*Model),
		dictIndex:  make(map[string]*TextureDictionary),
		textures:   make(map[string][]textureHandle),
		collIndex:  make(map[string]*CollisionModel),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

func normalize(name string) string { return encoding.NormalizeName(name) }

// before orders duplicate registrations so the winner does not depend on merge order.
func before(fileA, nameA, fileB, nameB string) bool {
	if fileA != fileB {
		return fileA < fileB
	}
	return nameA < nameB
}

// Merge registers the fragment's entities, unknown chunks and diagnostics.
func (s *Session) Merge(frag *Fragment) {
	if frag == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files = append(s.files, frag.File)
	for _, m := range frag.Models {
		s.models = append(s.models, m)
		key := normalize(m.Name)
		if cur, ok := s.modelIndex[key]; !ok || before(m.File, m.Name, cur.File, cur.Name) {
			s.modelIndex[key] = m
		}
		s.addHash(encoding.HashName(m.Name), m)
		for _, a := range m.Atomics {
			if a.HashKey != 0 {
				s.addHash(a.HashKey, m)
			}
		}
	}
	for _, d := range frag.Dictionaries {
		s.dictionaries = append(s.dictionaries, d)
		key := normalize(d.Name)
		if cur, ok := s.dictIndex[key]; !ok || before(d.File, d.Name, cur.File, cur.Name) {
			s.dictIndex[key] = d
		}
		for i := range d.Entries {
			e := &d.Entries[i]
			k := normalize(e.Name)
			hs := append(s.textures[k], textureHandle{dict: d, entry: e})
			sort.SliceStable(hs, func(a, b int) bool {
				return before(hs[a].dict.File, hs[a].dict.Name, hs[b].dict.File, hs[b].dict.Name)
			})
			s.textures[k] = hs
		}
	}
	for _, c := range frag.Collisions {
		s.collisions = append(s.collisions, c)
		key := normalize(c.Name)
		if cur, ok := s.collIndex[key]; !ok || before(c.File, c.Name, cur.File, cur.Name) {
			s.collIndex[key] = c
		}
	}
	s.worlds = append(s.worlds, frag.Worlds...)
	s.unknown = append(s.unknown, frag.Unknown...)
	s.diags = append(s.diags, frag.Diagnostics...)

	s.log.Debug("merged fragment",
		zap.String("file", frag.File),
		zap.Int("models", len(frag.Models)),
		zap.Int("dictionaries", len(frag.Dictionaries)),
		zap.Int("collisions", len(frag.Collisions)),
		zap.Int("instances", frag.Instances()),
		zap.Int("unknown", len(frag.Unknown)),
		zap.Int("diagnostics", len(frag.Diagnostics)),
	)
}

func (s *Session) addHash(h uint32, m *Model) {
	if cur, ok := s.hashIndex[h]; !ok || before(m.File, m.Name, cur.File, cur.Name) {
		s.hashIndex[h] = m
	}
}

// Report appends a diagnostic that is not attached to a fragment, such as a failed file.
func (s *Session) Report(d Diagnostic) {
	s.mu.Lock()
	s.diags = append(s.diags, d)
	s.mu.Unlock()
}

// FindModel returns the model registered under name, matched case-insensitively.
func (s *Session) FindModel(name string) *Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelIndex[normalize(name)]
}

// FindModelByHash returns the model whose name hash or atomic hash key is h.
func (s *Session) FindModelByHash(h uint32) *Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hashIndex[h]
}

// FindTexture returns the first texture named name across all dictionaries.
func (s *Session) FindTexture(name string) *TextureEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if hs := s.textures[normalize(name)]; len(hs) > 0 {
		return hs[0].entry
	}
	return nil
}

// FindTextureIn returns the texture named name inside the dictionary named dict.
func (s *Session) FindTextureIn(dict, name string) *TextureEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d := s.dictIndex[normalize(dict)]; d != nil {
		return d.Find(name)
	}
	return nil
}

// FindTextureDictionary returns the dictionary registered under name.
func (s *Session) FindTextureDictionary(name string) *TextureDictionary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dictIndex[normalize(name)]
}

// FindCollision returns the collision model registered under name.
func (s *Session) FindCollision(name string) *CollisionModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collIndex[normalize(name)]
}

// Models returns every merged model ordered by name then file.
func (s *Session) Models() []*Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedModels()
}

func (s *Session) sortedModels() []*Model {
	out := append([]*Model(nil), s.models...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].File < out[j].File
	})
	return out
}

// Dictionaries returns every merged texture dictionary ordered by name then
// file, including those shadowed by a same-named dictionary.
func (s *Session) Dictionaries() []*TextureDictionary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]*TextureDictionary(nil), s.dictionaries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].File < out[j].File
	})
	return out
}

// Collisions returns every merged collision model ordered by name then file.
func (s *Session) Collisions() []*CollisionModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]*CollisionModel(nil), s.collisions...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].File < out[j].File
	})
	return out
}

// Worlds returns every merged world ordered by file.
func (s *Session) Worlds() []*World {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedWorlds()
}

func (s *Session) sortedWorlds() []*World {
	out := append([]*World(nil), s.worlds...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Instances returns every world instance in world order.
func (s *Session) Instances() []*WorldInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*WorldInstance
	for _, w := range s.sortedWorlds() {
		for i := range w.Instances {
			out = append(out, &w.Instances[i])
		}
	}
	return out
}

// ListUnresolvedReferences returns the references the last Resolve could not match.
func (s *Session) ListUnresolvedReferences() []Reference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Reference(nil), s.unresolved...)
}

// ListUnknownChunks returns every skipped chunk ordered by file and offset.
func (s *Session) ListUnknownChunks() []UnknownChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]UnknownChunk(nil), s.unknown...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

// Diagnostics returns decode diagnostics ordered by file, followed by the
// unresolved reference diagnostics of the last Resolve.
func (s *Session) Diagnostics() []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Diagnostic(nil), s.diags...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Offset < out[j].Offset
	})
	return append(out, s.refDiags...)
}

// Files returns the names of merged fragments in merge order.
func (s *Session) Files() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.files...)
}

// Stats summarises the session contents.
type Stats struct {
	Files        int
	Models       int
	Dictionaries int
	Textures     int
	Collisions   int
	Worlds       int
	Instances    int
	Unknown      int
	Diagnostics  int
	Unresolved   int
}

// Stats counts the session's entities.
func (s *Session) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Files:        len(s.files),
		Models:       len(s.models),
		Dictionaries: len(s.dictionaries),
		Collisions:   len(s.collisions),
		Worlds:       len(s.worlds),
		Unknown:      len(s.unknown),
		Diagnostics:  len(s.diags) + len(s.refDiags),
		Unresolved:   len(s.unresolved),
	}
	for _, d := range s.dictionaries {
		st.Textures += len(d.Entries)
	}
	for _, w := range s.worlds {
		st.Instances += len(w.Instances)
	}
	return st
}

// MergeIntoSession merges frag into s and re-resolves every reference in the session.
func MergeIntoSession(ctx context.Context, frag *Fragment, s *Session) (ResolveReport, error) {
	s.Merge(frag)
	return s.Resolve(ctx)
}
