package formats

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/Faultbox/leeds-assets/pkg/asset"
)

// ErrNoEntity is returned by the Parse helpers when the file decoded but the
// requested entity was dropped or absent.
var ErrNoEntity = errors.New("no entity decoded")

// ParseModel decodes a model file and returns its model.
func ParseModel(data []byte) (*asset.Model, error) {
	frag, err := parseAs(data, "mdl")
	if err != nil {
		return nil, err
	}
	if len(frag.Models) == 0 {
		return nil, firstFailure(frag)
	}
	return frag.Models[0], nil
}

// ParseTextureDictionary decodes a texture dictionary file.
func ParseTextureDictionary(data []byte) (*asset.TextureDictionary, error) {
	frag, err := parseAs(data, "txd")
	if err != nil {
		return nil, err
	}
	if len(frag.Dictionaries) == 0 {
		return nil, firstFailure(frag)
	}
	return frag.Dictionaries[0], nil
}

// ParseCollision decodes a collision file and returns every collision model in it.
func ParseCollision(data []byte) ([]*asset.CollisionModel, error) {
	frag, err := parseAs(data, "col2")
	if err != nil {
		return nil, err
	}
	return frag.Collisions, nil
}

// ParseWorld decodes a world file.
func ParseWorld(data []byte) (*asset.World, error) {
	frag, err := parseAs(data, "wrld")
	if err != nil {
		return nil, err
	}
	if len(frag.Worlds) == 0 {
		return nil, firstFailure(frag)
	}
	return frag.Worlds[0], nil
}

// ParseModelFile parses a model file from disk.
func ParseModelFile(path string) (*asset.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading model file")
	}
	return ParseModel(data)
}

// ParseTextureDictionaryFile parses a texture dictionary file from disk.
func ParseTextureDictionaryFile(path string) (*asset.TextureDictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading texture dictionary file")
	}
	return ParseTextureDictionary(data)
}

// ParseCollisionFile parses a collision file from disk.
func ParseCollisionFile(path string) ([]*asset.CollisionModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading collision file")
	}
	return ParseCollision(data)
}

// ParseWorldFile parses a world file from disk.
func ParseWorldFile(path string) (*asset.World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading world file")
	}
	return ParseWorld(data)
}

func parseAs(data []byte, hint string) (*asset.Fragment, error) {
	return Decode(context.Background(), data, Options{Hint: hint})
}

func firstFailure(frag *asset.Fragment) error {
	for _, d := range frag.Diagnostics {
		if d.Kind.Fatal() && d.Err != nil {
			return d.Err
		}
	}
	return ErrNoEntity
}
