package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/bnema/swayproj/internal/config"
	"github.com/bnema/swayproj/internal/detect"
	"github.com/bnema/swayproj/internal/logger"
	"github.com/bnema/swayproj/internal/sway"
	"github.com/bnema/swayproj/internal/ui"
	"github.com/spf13/cobra"
)

// OutputsInfo is the --json document
type OutputsInfo struct {
	Sway      string        `json:"sway,omitempty"`
	Projector string        `json:"projector,omitempty"`
	Outputs   []sway.Output `json:"outputs"`
	Error     string        `json:"error,omitempty"`
}

var jsonOutput bool

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "List sway outputs",
	Long:  `List the outputs sway currently knows about and show which one would be picked as the projector.`,
	RunE:  runOutputs,
}

func init() {
	outputsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func runOutputs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	ctx, cancel := context.WithTimeout(context.Background(), 5*cfg.Sway.CallTimeout)
	defer cancel()

	info, err := collectOutputs(ctx, cfg)
	if jsonOutput {
		if err != nil {
			info.Error = err.Error()
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.FormatHeader(fmt.Sprintf("Outputs (%s)", info.Sway)))

	if len(info.Outputs) == 0 {
		fmt.Fprintln(out, "No outputs reported")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tACTIVE\tPOWER\tWORKSPACE\tGEOMETRY\tMODEL")
	for _, o := range info.Outputs {
		ws, _ := o.Workspace()
		name := o.Name
		if name == info.Projector {
			name += " *"
		}
		fmt.Fprintf(w, "  %s\t%v\t%v\t%s\t%dx%d+%d+%d\t%s %s\n",
			name, o.Active, o.Powered(), ws,
			o.Rect.Width, o.Rect.Height, o.Rect.X, o.Rect.Y,
			o.Make, o.Model)
	}
	if err := w.Flush(); err != nil {
		logger.Errorf("Failed to flush writer: %v", err)
	}

	fmt.Fprintln(out)
	if info.Projector != "" {
		fmt.Fprintln(out, ui.FormatStatus(true, "Projector: "+info.Projector))
	} else {
		fmt.Fprintln(out, ui.FormatStatus(false, fmt.Sprintf("No projector among %v", cfg.Projector.Candidates)))
	}
	return nil
}

func collectOutputs(ctx context.Context, cfg *config.Config) (OutputsInfo, error) {
	info := OutputsInfo{Outputs: []sway.Output{}}

	client, err := sway.Dial(ctx, sway.Options{
		SocketPath: cfg.Sway.Socket,
		Timeout:    cfg.Sway.CallTimeout,
		Attempts:   1,
	})
	if err != nil {
		return info, err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Debugf("Failed to close sway connection: %v", err)
		}
	}()

	if v, err := client.Version(ctx); err == nil {
		info.Sway = v.HumanReadable
	} else {
		logger.Debugf("Version query failed: %v", err)
	}

	outputs, err := client.ListOutputs(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to list outputs: %w", err)
	}
	info.Outputs = outputs

	if res, ok := detect.PollOnce(outputs, cfg.Projector.Candidates); ok {
		info.Projector = res.Name
	}
	return info, nil
}
