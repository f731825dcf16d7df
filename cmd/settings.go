package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/settings"
)

// parseCity accepts a registry name or "Name:lat:lon".
func parseCity(s string) (model.ReferenceCity, error) {
	if c, ok := settings.Lookup(s); ok {
		return c, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return model.ReferenceCity{}, eris.Errorf("cities: %q is not a known city or Name:lat:lon", s)
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return model.ReferenceCity{}, eris.Wrapf(err, "cities: latitude in %q", s)
	}
	lon, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return model.ReferenceCity{}, eris.Wrapf(err, "cities: longitude in %q", s)
	}
	c := model.ReferenceCity{Name: strings.TrimSpace(parts[0]), Lat: lat, Lon: lon}
	return c, c.Validate()
}

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Show and change the two reference cities used for travel times",
}

var citiesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configured reference cities",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		pair, err := env.Cities.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "city_a  %-12s %.4f, %.4f\n", pair.A.Name, pair.A.Lat, pair.A.Lon)
		fmt.Fprintf(cmd.OutOrStdout(), "city_b  %-12s %.4f, %.4f\n", pair.B.Name, pair.B.Lat, pair.B.Lon)
		return nil
	},
}

var citiesSetCmd = &cobra.Command{
	Use:   "set <city-a> <city-b>",
	Short: "Set the reference cities by name or Name:lat:lon",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := parseCity(args[0])
		if err != nil {
			return err
		}
		b, err := parseCity(args[1])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Cities.Set(ctx, model.CityPair{A: a, B: b}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reference cities set to %s and %s; re-run enrichment to refresh travel times\n", a.Name, b.Name)
		return nil
	},
}

var citiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cities that can be chosen by name",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range settings.RegistryNames() {
			c, _ := settings.Lookup(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %.4f, %.4f\n", c.Name, c.Lat, c.Lon)
		}
		return nil
	},
}

var mixCmd = &cobra.Command{
	Use:   "mix",
	Short: "Show and change the investment/lifestyle blend of the combined score",
}

var mixShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the combined-score mix",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.Mix.Get(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "investment %.2f  lifestyle %.2f\n", m.Investment, m.Lifestyle)
		return nil
	},
}

var mixSetCmd = &cobra.Command{
	Use:   "set <investment> <lifestyle>",
	Short: "Set the combined-score mix; the parts must sum to 1",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inv, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Wrap(err, "mix: investment")
		}
		life, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrap(err, "mix: lifestyle")
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Mix.Set(ctx, model.Mix{Investment: inv, Lifestyle: life}); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "mix saved; run `landscore rescore` to apply it")
		return nil
	},
}

func init() {
	citiesCmd.AddCommand(citiesShowCmd, citiesSetCmd, citiesListCmd)
	mixCmd.AddCommand(mixShowCmd, mixSetCmd)
	rootCmd.AddCommand(citiesCmd, mixCmd)
}
