package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sergi039/idealista-tracker-ai-sub000/internal/model"
	"github.com/sergi039/idealista-tracker-ai-sub000/internal/scoring"
)

var weightProfiles = []model.Profile{model.ProfileInvestment, model.ProfileLifestyle}

// weightsFile is the YAML layout used by weights import and export.
type weightsFile struct {
	Investment scoring.Weights `yaml:"investment,omitempty"`
	Lifestyle  scoring.Weights `yaml:"lifestyle,omitempty"`
}

func (f weightsFile) byProfile() map[model.Profile]scoring.Weights {
	out := make(map[model.Profile]scoring.Weights)
	if len(f.Investment) > 0 {
		out[model.ProfileInvestment] = f.Investment
	}
	if len(f.Lifestyle) > 0 {
		out[model.ProfileLifestyle] = f.Lifestyle
	}
	return out
}

func decodeWeightsFile(r io.Reader) (weightsFile, error) {
	var f weightsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return f, eris.Wrap(err, "weights: decode yaml")
	}
	if len(f.byProfile()) == 0 {
		return f, eris.New("weights: file has no investment or lifestyle weights")
	}
	return f, nil
}

// parseAssignments turns ["transport=2", "legal_status=0.5"] into weights.
func parseAssignments(args []string) (scoring.Weights, error) {
	w := make(scoring.Weights, len(args))
	for _, a := range args {
		name, val, ok := strings.Cut(a, "=")
		if !ok {
			return nil, eris.Errorf("weights: %q is not name=value", a)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "weights: value for %s", name)
		}
		w[strings.TrimSpace(name)] = f
	}
	return w, nil
}

func printWeights(out io.Writer, profile model.Profile, w scoring.Weights) {
	norm := scoring.Normalize(w)
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(out, "%s\n", profile)
	for _, name := range names {
		fmt.Fprintf(out, "  %-26s %6.3f  (%5.1f%%)\n", name, w[name], norm[name]*100)
	}
}

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Show and change criterion weights",
}

var weightsShowCmd = &cobra.Command{
	Use:   "show [profile]",
	Short: "Print stored weights",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		profiles := weightProfiles
		if len(args) == 1 {
			profiles = []model.Profile{model.Profile(args[0])}
		}
		for _, p := range profiles {
			w, err := env.Weights.Raw(ctx, p)
			if err != nil {
				return err
			}
			if w == nil {
				return eris.Errorf("weights: unknown profile %q", p)
			}
			printWeights(cmd.OutOrStdout(), p, w)
		}
		return nil
	},
}

var weightsRescore bool

var weightsSetCmd = &cobra.Command{
	Use:   "set <profile> <criterion=weight>...",
	Short: "Update weights for a profile",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Weights.Update(ctx, model.Profile(args[0]), w); err != nil {
			return err
		}
		return afterWeightChange(cmd, env)
	},
}

var weightsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Load weights from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fh, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "weights: open %s", args[0])
		}
		defer fh.Close() //nolint:errcheck

		f, err := decodeWeightsFile(fh)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, p := range weightProfiles {
			w, ok := f.byProfile()[p]
			if !ok {
				continue
			}
			if err := env.Weights.Update(ctx, p, w); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s weights\n", len(w), p)
		}
		return afterWeightChange(cmd, env)
	},
}

var weightsExportCmd = &cobra.Command{
	Use:   "export [file.yaml]",
	Short: "Write stored weights as YAML (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "rescore", false)
		if err != nil {
			return err
		}
		defer env.Close()

		var f weightsFile
		if f.Investment, err = env.Weights.Raw(ctx, model.ProfileInvestment); err != nil {
			return err
		}
		if f.Lifestyle, err = env.Weights.Raw(ctx, model.ProfileLifestyle); err != nil {
			return err
		}
		data, err := yaml.Marshal(f)
		if err != nil {
			return eris.Wrap(err, "weights: encode yaml")
		}

		if len(args) == 0 {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return eris.Wrapf(err, "weights: write %s", args[0])
		}
		return nil
	},
}

func afterWeightChange(cmd *cobra.Command, env *appEnv) error {
	if !weightsRescore {
		fmt.Fprintln(cmd.OutOrStdout(), "weights saved; run `landscore rescore` to apply them")
		return nil
	}
	report, err := env.Scoring.RescoreAll(cmd.Context(), cfg.Scoring.RescoreBatchSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "weights saved; rescored %d/%d listings\n", report.Scored, report.Total)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{weightsSetCmd, weightsImportCmd} {
		c.Flags().BoolVar(&weightsRescore, "rescore", true, "rescore all listings after saving")
	}
	weightsCmd.AddCommand(weightsShowCmd, weightsSetCmd, weightsImportCmd, weightsExportCmd)
	rootCmd.AddCommand(weightsCmd)
}
