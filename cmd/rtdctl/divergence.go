package main

import (
	"github.com/Adithya-Monish-Kumar-K/rank-turbulence/internal/comparison"
	"github.com/spf13/cobra"
)

const divergenceLongDesc string = `Run the divergence kernel on four aligned vectors.

Index i of every vector describes the same item. Ranks must be positive;
a count of zero marks the item as absent from that system.

Examples:
  rtdctl divergence --ranks1 1,2,3 --ranks2 1,3,2 --counts1 3,2,1 --counts2 3,1,2 --alpha inf`

const divergenceShortDesc string = "Run the kernel on raw aligned vectors"

type divergenceOutput struct {
	DivergenceElements []float64 `json:"divergence_elements"`
	Normalization      float64   `json:"normalization"`
	TotalDivergence    float64   `json:"total_divergence"`
}

func newDivergenceCmd() *cobra.Command {
	var req comparison.VectorRequest
	cmd := &cobra.Command{
		Use:   "divergence",
		Short: divergenceShortDesc,
		Long:  divergenceLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cmd)
			if err != nil {
				return err
			}
			res, err := svc.Divergence(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd, cmd.OutOrStdout(), divergenceOutput{
				DivergenceElements: res.DivergenceElements,
				Normalization:      res.Normalization,
				TotalDivergence:    res.Total(),
			})
		},
	}
	cmd.Flags().Float64SliceVar(&req.Ranks1, "ranks1", nil, "Ranks in system 1")
	cmd.Flags().Float64SliceVar(&req.Ranks2, "ranks2", nil, "Ranks in system 2")
	cmd.Flags().Float64SliceVar(&req.Counts1, "counts1", nil, "Counts in system 1")
	cmd.Flags().Float64SliceVar(&req.Counts2, "counts2", nil, "Counts in system 2")
	for _, name := range []string{"ranks1", "ranks2", "counts1", "counts2"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
