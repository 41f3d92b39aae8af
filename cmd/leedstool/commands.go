package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/leeds-assets/internal/config"
	"github.com/Faultbox/leeds-assets/pkg/asset"
	"github.com/Faultbox/leeds-assets/pkg/chunk"
)

func (a *app) runInfo(cmd *cobra.Command, args []string) error {
	s, err := a.loadSession(cmd.Context(), args, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	r := buildReport(s, config.ReportConfig{})
	if a.cfg.Report.Format == config.FormatYAML {
		return writeReport(cmd.OutOrStdout(), report{Session: r.Session, Stats: r.Stats}, config.FormatYAML)
	}
	writeSummary(cmd.OutOrStdout(), r)
	return nil
}

func (a *app) runDecode(cmd *cobra.Command, args []string) error {
	s, err := a.loadSession(cmd.Context(), args, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), buildReport(s, a.cfg.Report), a.cfg.Report.Format)
}

type unknownGroup struct {
	ID      string   `yaml:"id"`
	Count   int      `yaml:"count"`
	Parents []string `yaml:"parents"`
	Files   int      `yaml:"files"`
}

// groupUnknown folds unknown chunks by id, most frequent first.
func groupUnknown(chunks []asset.UnknownChunk) []unknownGroup {
	type acc struct {
		count   int
		parents map[uint32]bool
		files   map[string]bool
	}
	byID := make(map[uint32]*acc)
	for _, u := range chunks {
		g := byID[u.ID]
		if g == nil {
			g = &acc{parents: make(map[uint32]bool), files: make(map[string]bool)}
			byID[u.ID] = g
		}
		g.count++
		g.parents[u.ParentID] = true
		g.files[u.File] = true
	}

	ids := make([]uint32, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := byID[ids[i]].count, byID[ids[j]].count
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})

	out := make([]unknownGroup, 0, len(ids))
	for _, id := range ids {
		g := byID[id]
		parents := make([]uint32, 0, len(g.parents))
		for p := range g.parents {
			parents = append(parents, p)
		}
		sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })
		ug := unknownGroup{ID: chunk.IDString(id), Count: g.count, Files: len(g.files)}
		for _, p := range parents {
			ug.Parents = append(ug.Parents, chunk.IDString(p))
		}
		out = append(out, ug)
	}
	return out
}

func (a *app) runUnknown(cmd *cobra.Command, args []string) error {
	s, err := a.loadSession(cmd.Context(), args, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	summary, err := cmd.Flags().GetBool("summary")
	if err != nil {
		return err
	}

	chunks := s.ListUnknownChunks()
	w := cmd.OutOrStdout()
	switch {
	case summary && a.cfg.Report.Format == config.FormatYAML:
		return writeYAML(w, groupUnknown(chunks))
	case summary:
		for _, g := range groupUnknown(chunks) {
			fmt.Fprintf(w, "%-10s x%-5d files=%-4d parents=%v\n", g.ID, g.Count, g.Files, g.Parents)
		}
	case a.cfg.Report.Format == config.FormatYAML:
		lines := make([]string, len(chunks))
		for i, u := range chunks {
			lines[i] = u.String()
		}
		return writeYAML(w, lines)
	default:
		for _, u := range chunks {
			fmt.Fprintln(w, u)
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\n(%d unknown chunks)\n", len(chunks))
	return nil
}

// dumpConfig returns the spew settings used by dump.
func dumpConfig(depth int) *spew.ConfigState {
	cfg := spew.NewDefaultConfig()
	cfg.DisableCapacities = true
	cfg.DisablePointerAddresses = true
	cfg.SortKeys = true
	cfg.MaxDepth = depth
	return cfg
}

// findEntity looks name up as a model, texture dictionary, collision model,
// world, then texture.
func findEntity(s *asset.Session, name string) (any, bool) {
	if m := s.FindModel(name); m != nil {
		return m, true
	}
	if d := s.FindTextureDictionary(name); d != nil {
		return d, true
	}
	if c := s.FindCollision(name); c != nil {
		return c, true
	}
	for _, w := range s.Worlds() {
		if strings.EqualFold(w.Name, name) {
			return w, true
		}
	}
	if t := s.FindTexture(name); t != nil {
		return t, true
	}
	return nil, false
}

func (a *app) runDump(cmd *cobra.Command, args []string) error {
	depth, err := cmd.Flags().GetInt("depth")
	if err != nil {
		return err
	}
	s, err := a.loadSession(cmd.Context(), args[1:], cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	v, ok := findEntity(s, args[0])
	if !ok {
		return errors.Errorf("%q not found", args[0])
	}
	dumpConfig(depth).Fdump(cmd.OutOrStdout(), v)
	return nil
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
