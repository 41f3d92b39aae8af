package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Faultbox/leeds-assets/pkg/img"
)

func (a *app) runImgList(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	archive, err := img.Open(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	pattern := ""
	if len(args) > 1 {
		pattern = args[1]
	}
	names, err := archive.Match(pattern)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	count := 0
	for _, name := range names {
		e, _ := archive.Entry(name)
		fmt.Fprintf(w, "%-24s %8d  @%d\n", name, e.Size(), e.Offset)
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\n(%d of %d entries, %s)\n", count, archive.Len(), archive.Version())
	return nil
}

func (a *app) runImgExtract(cmd *cobra.Command, args []string) error {
	outputDir := "."
	if len(args) > 2 {
		outputDir = args[2]
	}

	archive, err := img.Open(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	var names []string
	if strings.ContainsAny(args[1], "*?[") {
		if names, err = archive.Match(args[1]); err != nil {
			return err
		}
	} else if archive.Contains(args[1]) {
		e, _ := archive.Entry(args[1])
		names = []string{e.Name}
	}
	if len(names) == 0 {
		return errors.Errorf("no entries match %s", args[1])
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	extracted := 0
	for _, name := range names {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		data, err := archive.Read(name)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error reading %s: %v\n", name, err)
			continue
		}
		outputPath := filepath.Join(outputDir, filepath.Base(name))
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error writing %s: %v\n", outputPath, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extracted: %s (%d bytes)\n", outputPath, len(data))
		extracted++
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nExtracted %d files\n", extracted)
	return nil
}
