package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fieldnotes-io/inat/pkg/inat"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewTaxaCommand creates the taxa command group.
func NewTaxaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxa",
		Short: "Look up taxa",
	}

	cmd.AddCommand(newTaxaSearchCommand())
	cmd.AddCommand(newTaxaGetCommand())
	cmd.AddCommand(newTaxaAutocompleteCommand())

	return cmd
}

func newTaxaSearchCommand() *cobra.Command {
	var (
		rank    string
		perPage int
		page    int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search taxa by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := CreateClient()
			if err != nil {
				return err
			}

			params := inat.NewQueryParams().
				WithPage(page).
				WithPerPage(perPage)

			if rank != "" {
				params = params.WithFilter("rank", rank)
			}

			result, err := cli.Taxa().Search(cmd.Context(), args[0], params)
			if err != nil {
				return fmt.Errorf("searching taxa: %w", err)
			}

			handled, err := renderStructured(result)
			if err != nil || handled {
				return err
			}

			renderTaxaTable(result.Results)
			fmt.Printf("\nShowing %d of %d taxa (page %d)\n",
				len(result.Results), result.TotalResults, result.Page)

			return nil
		},
	}

	cmd.Flags().StringVar(&rank, "rank", "", "filter by taxonomic rank")
	cmd.Flags().IntVar(&perPage, "per-page", 30, "results per page")
	cmd.Flags().IntVar(&page, "page", 1, "page number")

	return cmd
}

func newTaxaGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a single taxon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid taxon ID %q: %w", args[0], err)
			}

			cli, err := CreateClient()
			if err != nil {
				return err
			}

			taxon, err := cli.Taxa().Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("getting taxon: %w", err)
			}

			handled, err := renderStructured(taxon)
			if err != nil || handled {
				return err
			}

			renderTaxaTable([]inat.Taxon{*taxon})

			return nil
		},
	}
}

func newTaxaAutocompleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "autocomplete <query>",
		Short: "Autocomplete a partial taxon name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := CreateClient()
			if err != nil {
				return err
			}

			result, err := cli.Taxa().Autocomplete(cmd.Context(), args[0], nil)
			if err != nil {
				return fmt.Errorf("autocompleting taxa: %w", err)
			}

			handled, err := renderStructured(result)
			if err != nil || handled {
				return err
			}

			renderTaxaTable(result.Results)

			return nil
		},
	}
}

func renderTaxaTable(taxa []inat.Taxon) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Common Name", "Rank", "Observations")

	for _, taxon := range taxa {
		_ = table.Append(
			strconv.Itoa(taxon.ID),
			taxon.Name,
			taxon.PreferredCommonName,
			taxon.Rank,
			strconv.Itoa(taxon.ObservationsCount),
		)
	}

	_ = table.Render()
}
