package asset

import "fmt"

// LinkState tells whether a reference has been looked up yet and with what result.
type LinkState uint8

const (
	LinkPending LinkState = iota
	LinkResolved
	LinkUnresolved
)

func (s LinkState) String() string {
	switch s {
	case LinkResolved:
		return "resolved"
	case LinkUnresolved:
		return "unresolved"
	default:
		return "pending"
	}
}

// ModelLink is the resolved target of a world instance.
type ModelLink struct {
	State LinkState
	Model *Model
}

// TextureLink is the resolved target of a material's texture reference.
type TextureLink struct {
	State      LinkState
	Texture    *TextureEntry
	Dictionary *TextureDictionary
}

// RefKind distinguishes the two reference families.
type RefKind uint8

const (
	RefModel RefKind = iota + 1
	RefTexture
)

func (k RefKind) String() string {
	if k == RefTexture {
		return "texture"
	}
	return "model"
}

// Reference describes one unresolved reference.
type Reference struct {
	Kind   RefKind
	File   string // file holding the referring entity
	From   string // referring entity
	Name   string
	Hash   uint32
	ByHash bool
}

func (r Reference) String() string {
	return fmt.Sprintf("%s: %s -> %s %s", r.File, r.From, r.Kind, r.target())
}

func (r Reference) target() string {
	if r.ByHash {
		return ModelRef{Hash: r.Hash, ByHash: true}.String()
	}
	return r.Name
}
