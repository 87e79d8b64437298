package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fieldnotes-io/inat/pkg/inat"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewObservationsCommand creates the observations command group.
func NewObservationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "observations",
		Aliases: []string{"obs"},
		Short:   "Browse observations",
	}

	cmd.AddCommand(newObservationsListCommand())
	cmd.AddCommand(newObservationsGetCommand())

	return cmd
}

func newObservationsListCommand() *cobra.Command {
	var (
		taxonName string
		userLogin string
		placeID   int
		grade     string
		perPage   int
		page      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := CreateClient()
			if err != nil {
				return err
			}

			params := inat.NewQueryParams().
				WithPage(page).
				WithPerPage(perPage)

			if taxonName != "" {
				params = params.WithFilter("taxon_name", taxonName)
			}

			if userLogin != "" {
				params = params.WithFilter("user_login", userLogin)
			}

			if placeID > 0 {
				params = params.WithFilter("place_id", strconv.Itoa(placeID))
			}

			if grade != "" {
				params = params.WithFilter("quality_grade", grade)
			}

			result, err := cli.Observations().List(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("listing observations: %w", err)
			}

			handled, err := renderStructured(result)
			if err != nil || handled {
				return err
			}

			renderObservationsTable(result.Results)
			fmt.Printf("\nShowing %d of %d observations (page %d)\n",
				len(result.Results), result.TotalResults, result.Page)

			return nil
		},
	}

	cmd.Flags().StringVar(&taxonName, "taxon", "", "filter by taxon name")
	cmd.Flags().StringVar(&userLogin, "user", "", "filter by observer login")
	cmd.Flags().IntVar(&placeID, "place", 0, "filter by place ID")
	cmd.Flags().StringVar(&grade, "quality-grade", "", "filter by quality grade (research, needs_id, casual)")
	cmd.Flags().IntVar(&perPage, "per-page", 30, "results per page")
	cmd.Flags().IntVar(&page, "page", 1, "page number")

	return cmd
}

func newObservationsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a single observation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid observation ID %q: %w", args[0], err)
			}

			cli, err := CreateClient()
			if err != nil {
				return err
			}

			observation, err := cli.Observations().Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("getting observation: %w", err)
			}

			handled, err := renderStructured(observation)
			if err != nil || handled {
				return err
			}

			renderObservationsTable([]inat.Observation{*observation})

			return nil
		},
	}
}

func renderObservationsTable(observations []inat.Observation) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Taxon", "Observer", "Observed On", "Place", "Grade")

	for _, obs := range observations {
		taxonName := obs.SpeciesGuess
		if obs.Taxon != nil {
			taxonName = obs.Taxon.Name
			if obs.Taxon.PreferredCommonName != "" {
				taxonName = fmt.Sprintf("%s (%s)", obs.Taxon.Name, obs.Taxon.PreferredCommonName)
			}
		}

		observer := ""
		if obs.User != nil {
			observer = obs.User.Login
		}

		_ = table.Append(
			strconv.Itoa(obs.ID),
			taxonName,
			observer,
			obs.ObservedOn,
			obs.PlaceGuess,
			obs.QualityGrade,
		)
	}

	_ = table.Render()
}
