package asset

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/leeds-assets/pkg/encoding"
)

// ResolveReport summarises one Resolve pass.
type ResolveReport struct {
	Resolved   int
	Unresolved []Diagnostic
}

type refJob struct {
	instance *WorldInstance
	texture  *TextureRef
	ref      Reference
}

// Resolve links every world instance to its model and every material texture
// reference to its texture entry. References without a target are marked
// unresolved and reported; previous unresolved results are replaced.
//
// Lookups run in parallel. Each job writes only the link it owns.
func (s *Session) Resolve(ctx context.Context) (ResolveReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := s.collectJobs()
	misses := make([]bool, len(jobs))

	workers := runtime.GOMAXPROCS(0)
	batch := (len(jobs) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(jobs); lo += batch {
		hi := min(lo+batch, len(jobs))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				misses[i] = !s.resolveJob(&jobs[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ResolveReport{}, err
	}

	var report ResolveReport
	s.unresolved = s.unresolved[:0]
	s.refDiags = s.refDiags[:0]
	for i, miss := range misses {
		if !miss {
			report.Resolved++
			continue
		}
		ref := jobs[i].ref
		d := Diagnostic{
			Kind:   KindReferenceUnresolved,
			File:   ref.File,
			Entity: ref.From,
			Err:    fmt.Errorf("%w: %s %s", ErrReferenceUnresolved, ref.Kind, ref.target()),
		}
		s.unresolved = append(s.unresolved, ref)
		s.refDiags = append(s.refDiags, d)
		report.Unresolved = append(report.Unresolved, d)
	}

	s.log.Debug("resolved references",
		zap.Int("resolved", report.Resolved),
		zap.Int("unresolved", len(report.Unresolved)),
	)
	return report, nil
}

func (s *Session) collectJobs() []refJob {
	var jobs []refJob
	for _, w := range s.sortedWorlds() {
		for i := range w.Instances {
			inst := &w.Instances[i]
			jobs = append(jobs, refJob{
				instance: inst,
				ref: Reference{
					Kind:   RefModel,
					File:   w.File,
					From:   fmt.Sprintf("world %q instance %d", w.Name, i),
					Name:   inst.Model.Name,
					Hash:   inst.Model.Hash,
					ByHash: inst.Model.ByHash,
				},
			})
		}
	}
	for _, m := range s.sortedModels() {
		for i := range m.Materials {
			tex := m.Materials[i].Texture
			if tex == nil {
				continue
			}
			jobs = append(jobs, refJob{
				texture: tex,
				ref: Reference{
					Kind: RefTexture,
					File: m.File,
					From: fmt.Sprintf("model %q material %d", m.Name, i),
					Name: tex.Name,
				},
			})
		}
	}
	return jobs
}

// resolveJob runs with s.mu held by Resolve and only reads the indexes.
func (s *Session) resolveJob(j *refJob) bool {
	if j.instance != nil {
		m := s.lookupModel(j.instance.Model)
		if m == nil {
			j.instance.Link = ModelLink{State: LinkUnresolved}
			return false
		}
		j.instance.Link = ModelLink{State: LinkResolved, Model: m}
		return true
	}

	d, e := s.lookupTexture(j.texture.Dictionary, j.texture.Name)
	if e == nil {
		j.texture.Link = TextureLink{State: LinkUnresolved}
		return false
	}
	j.texture.Link = TextureLink{State: LinkResolved, Texture: e, Dictionary: d}
	return true
}

func (s *Session) lookupModel(ref ModelRef) *Model {
	if ref.ByHash {
		return s.hashIndex[ref.Hash]
	}
	if m := s.modelIndex[normalize(ref.Name)]; m != nil {
		return m
	}
	return s.hashIndex[encoding.HashName(ref.Name)]
}

// lookupTexture prefers the named dictionary and falls back to any dictionary.
func (s *Session) lookupTexture(dict, name string) (*TextureDictionary, *TextureEntry) {
	if dict != "" {
		if d := s.dictIndex[normalize(dict)]; d != nil {
			if e := d.Find(name); e != nil {
				return d, e
			}
		}
	}
	if hs := s.textures[normalize(name)]; len(hs) > 0 {
		return hs[0].dict, hs[0].entry
	}
	return nil, nil
}
