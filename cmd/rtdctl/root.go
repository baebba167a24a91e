package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/rtd"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/pkg/logger"
	"github.com/spf13/cobra"
)

const rootLongDesc string = `rtdctl compares two ranked systems with rank-turbulence divergence.

Commands:
  rtdctl compare FILE1 FILE2   Compare two frequency lists (type<TAB>count per line)
  rtdctl divergence ...        Run the kernel on raw aligned vectors
  rtdctl bench ...             Load test a running rtdserver

Results are printed as JSON.`

const rootShortDesc string = "Rank-turbulence divergence calculator"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rtdctl",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			debug, _ := cmd.Flags().GetBool("debug")
			level := "warn"
			if debug {
				level = "debug"
			}
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), level, "text"))
		},
	}

	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("alpha", "0.58", `Divergence sensitivity: "inf", "0", or a positive number`)
	cmd.PersistentFlags().String("preset", "", "Named alpha: standard (0.58), sensitive (0.1) or robust (inf); --alpha wins when both are set")
	cmd.PersistentFlags().String("mode", "all-present", "Normalization mode: all-present or exclusive")
	cmd.PersistentFlags().Bool("pretty", false, "Indent JSON output")

	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newDivergenceCmd())
	cmd.AddCommand(newBenchCmd())
	return cmd
}

// alphaFlag resolves --alpha and --preset to the alpha string sent to the
// service.
func alphaFlag(cmd *cobra.Command) (string, error) {
	alpha, _ := cmd.Flags().GetString("alpha")
	preset, _ := cmd.Flags().GetString("preset")
	if preset == "" || cmd.Flags().Changed("alpha") {
		return alpha, nil
	}
	a, err := rtd.Preset(preset)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

// newService builds a backend-free comparison service from the shared flags.
func newService(cmd *cobra.Command) (*comparison.Service, error) {
	alpha, err := alphaFlag(cmd)
	if err != nil {
		return nil, err
	}
	mode, _ := cmd.Flags().GetString("mode")
	switch mode {
	case "all-present", "exclusive":
	default:
		return nil, fmt.Errorf("unknown normalization mode %q", mode)
	}
	return comparison.New(config.DivergenceConfig{
		DefaultAlpha:      alpha,
		NormalizationMode: mode,
		ParallelThreshold: 4096,
		DefaultTop:        30,
		ComputeTimeout:    5 * time.Minute,
	}, comparison.Deps{})
}

func writeJSON(cmd *cobra.Command, w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
