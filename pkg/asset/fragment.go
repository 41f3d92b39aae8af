package asset

// Fragment is the output of decoding one file. It is owned by the decoding
// goroutine until merged into a Session.
type Fragment struct {
	File         string
	Models       []*Model
	Dictionaries []*TextureDictionary
	Collisions   []*CollisionModel
	Worlds       []*World
	Unknown      []UnknownChunk
	Diagnostics  []Diagnostic
}

// Empty reports whether the fragment holds no entities.
func (f *Fragment) Empty() bool {
	return len(f.Models) == 0 && len(f.Dictionaries) == 0 && len(f.Collisions) == 0 && len(f.Worlds) == 0
}

// Instances returns the number of world instances across all worlds in the fragment.
func (f *Fragment) Instances() int {
	n := 0
	for _, w := range f.Worlds {
		n += len(w.Instances)
	}
	return n
}
