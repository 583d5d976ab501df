package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/vmunix/vidstage/internal/catalog"
	"github.com/vmunix/vidstage/internal/pipeline"
)

// seedFile is the TOML shape of a seed list:
//
//	[[media]]
//	title = "Брат"
//	original_title = "Brother"
//	year = 1997
//	type = "movie"
type seedFile struct {
	Media []struct {
		Title         string `toml:"title"`
		OriginalTitle string `toml:"original_title"`
		Year          int    `toml:"year"`
		Type          string `toml:"type"`
	} `toml:"media"`
}

func newSeedCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Add titles from a TOML file to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sf seedFile
			if _, err := toml.DecodeFile(args[0], &sf); err != nil {
				return fmt.Errorf("parse seed file: %w", err)
			}

			entries := make([]pipeline.SeedEntry, 0, len(sf.Media))
			for _, m := range sf.Media {
				entries = append(entries, pipeline.SeedEntry{
					Title:         m.Title,
					OriginalTitle: m.OriginalTitle,
					Year:          m.Year,
					Type:          catalog.MediaType(m.Type),
				})
			}

			d, err := openCatalog(*configPath)
			if err != nil {
				return err
			}
			defer d.Close()

			added, err := pipeline.Seed(d.store, entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d of %d titles\n", added, len(entries))
			return nil
		},
	}
}
