package main

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/leeds-assets/internal/config"
	"github.com/Faultbox/leeds-assets/pkg/asset"
)

type report struct {
	Session      string              `yaml:"session"`
	Stats        asset.Stats         `yaml:"stats"`
	Models       []modelSummary      `yaml:"models,omitempty"`
	Dictionaries []dictionarySummary `yaml:"dictionaries,omitempty"`
	Collisions   []collisionSummary  `yaml:"collisions,omitempty"`
	Worlds       []worldSummary      `yaml:"worlds,omitempty"`
	Unresolved   []string            `yaml:"unresolved,omitempty"`
	Diagnostics  []string            `yaml:"diagnostics,omitempty"`
	Unknown      []string            `yaml:"unknown,omitempty"`
}

type modelSummary struct {
	Name       string   `yaml:"name"`
	File       string   `yaml:"file"`
	Frames     int      `yaml:"frames"`
	Geometries int      `yaml:"geometries"`
	Vertices   int      `yaml:"vertices"`
	Triangles  int      `yaml:"triangles"`
	Materials  int      `yaml:"materials"`
	Atomics    int      `yaml:"atomics"`
	Textures   []string `yaml:"textures,omitempty"`
}

type textureSummary struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Format string `yaml:"format"`
	Mips   int    `yaml:"mips"`
}

type dictionarySummary struct {
	Name     string           `yaml:"name"`
	File     string           `yaml:"file"`
	Platform string           `yaml:"platform"`
	Textures []textureSummary `yaml:"textures"`
}

type collisionSummary struct {
	Name      string `yaml:"name"`
	File      string `yaml:"file"`
	Spheres   int    `yaml:"spheres"`
	Boxes     int    `yaml:"boxes"`
	Triangles int    `yaml:"triangles"`
}

type worldSummary struct {
	Name      string `yaml:"name"`
	File      string `yaml:"file"`
	Sections  int    `yaml:"sections"`
	Instances int    `yaml:"instances"`
	Resolved  int    `yaml:"resolved"`
}

// buildReport summarises s. Diagnostics and unknown chunks are included only
// when rc asks for them.
func buildReport(s *asset.Session, rc config.ReportConfig) report {
	r := report{Session: s.ID().String(), Stats: s.Stats()}

	for _, m := range s.Models() {
		ms := modelSummary{
			Name:       m.Name,
			File:       m.File,
			Frames:     len(m.Frames),
			Geometries: len(m.Geometries),
			Materials:  len(m.Materials),
			Atomics:    len(m.Atomics),
		}
		for _, g := range m.Geometries {
			ms.Vertices += len(g.Vertices)
			ms.Triangles += len(g.Triangles)
		}
		seen := make(map[string]bool)
		for _, mat := range m.Materials {
			if name := mat.TextureName(); name != "" && !seen[name] {
				seen[name] = true
				ms.Textures = append(ms.Textures, name)
			}
		}
		sort.Strings(ms.Textures)
		r.Models = append(r.Models, ms)
	}

	for _, d := range s.Dictionaries() {
		ds := dictionarySummary{Name: d.Name, File: d.File, Platform: d.Platform.String()}
		for _, e := range d.Entries {
			ds.Textures = append(ds.Textures, textureSummary{
				Name:   e.Name,
				Width:  e.Width,
				Height: e.Height,
				Format: e.Format.String(),
				Mips:   len(e.Mips),
			})
		}
		r.Dictionaries = append(r.Dictionaries, ds)
	}

	for _, c := range s.Collisions() {
		cs := collisionSummary{Name: c.Name, File: c.File, Spheres: len(c.Spheres), Boxes: len(c.Boxes)}
		if c.Mesh != nil {
			cs.Triangles = len(c.Mesh.Triangles)
		}
		r.Collisions = append(r.Collisions, cs)
	}

	for _, w := range s.Worlds() {
		ws := worldSummary{Name: w.Name, File: w.File, Sections: len(w.Sections), Instances: len(w.Instances)}
		for _, inst := range w.Instances {
			if inst.Link.State == asset.LinkResolved {
				ws.Resolved++
			}
		}
		r.Worlds = append(r.Worlds, ws)
	}

	for _, ref := range s.ListUnresolvedReferences() {
		r.Unresolved = append(r.Unresolved, ref.String())
	}
	if rc.ShowDiagnostics {
		for _, d := range s.Diagnostics() {
			if d.Kind == asset.KindReferenceUnresolved {
				continue // listed under unresolved
			}
			r.Diagnostics = append(r.Diagnostics, d.String())
		}
	}
	if rc.ShowUnknown {
		for _, u := range s.ListUnknownChunks() {
			r.Unknown = append(r.Unknown, u.String())
		}
	}
	return r
}

func writeReport(w io.Writer, r report, format string) error {
	if format == config.FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
	writeSummary(w, r)
	writeDetails(w, r)
	return nil
}

func writeSummary(w io.Writer, r report) {
	st := r.Stats
	fmt.Fprintf(w, "Session:      %s\n", r.Session)
	fmt.Fprintf(w, "Files:        %d\n", st.Files)
	fmt.Fprintf(w, "Models:       %d\n", st.Models)
	fmt.Fprintf(w, "Dictionaries: %d (%d textures)\n", st.Dictionaries, st.Textures)
	fmt.Fprintf(w, "Collisions:   %d\n", st.Collisions)
	fmt.Fprintf(w, "Worlds:       %d (%d instances)\n", st.Worlds, st.Instances)
	fmt.Fprintf(w, "Unresolved:   %d\n", st.Unresolved)
	fmt.Fprintf(w, "Unknown:      %d\n", st.Unknown)
	fmt.Fprintf(w, "Diagnostics:  %d\n", st.Diagnostics)
}

func writeDetails(w io.Writer, r report) {
	if len(r.Models) > 0 {
		fmt.Fprintln(w, "\nModels:")
		for _, m := range r.Models {
			fmt.Fprintf(w, "  %-24s frames=%d geometries=%d verts=%d tris=%d materials=%d atomics=%d  %s\n",
				m.Name, m.Frames, m.Geometries, m.Vertices, m.Triangles, m.Materials, m.Atomics, m.File)
		}
	}
	if len(r.Dictionaries) > 0 {
		fmt.Fprintln(w, "\nTexture dictionaries:")
		for _, d := range r.Dictionaries {
			fmt.Fprintf(w, "  %-24s %s, %d textures  %s\n", d.Name, d.Platform, len(d.Textures), d.File)
			for _, t := range d.Textures {
				fmt.Fprintf(w, "    %-22s %4dx%-4d %-8s mips=%d\n", t.Name, t.Width, t.Height, t.Format, t.Mips)
			}
		}
	}
	if len(r.Collisions) > 0 {
		fmt.Fprintln(w, "\nCollisions:")
		for _, c := range r.Collisions {
			fmt.Fprintf(w, "  %-24s spheres=%d boxes=%d tris=%d  %s\n", c.Name, c.Spheres, c.Boxes, c.Triangles, c.File)
		}
	}
	if len(r.Worlds) > 0 {
		fmt.Fprintln(w, "\nWorlds:")
		for _, wd := range r.Worlds {
			fmt.Fprintf(w, "  %-24s sections=%d instances=%d resolved=%d  %s\n",
				wd.Name, wd.Sections, wd.Instances, wd.Resolved, wd.File)
		}
	}
	writeList(w, "Unresolved references", r.Unresolved)
	writeList(w, "Diagnostics", r.Diagnostics)
	writeList(w, "Unknown chunks", r.Unknown)
}

func writeList(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, l := range lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
}
