package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/avstack-io/helmsman/internal/component"
	"github.com/avstack-io/helmsman/internal/graph"
)

var validateVariants []string

var validateCmd = &cobra.Command{
	Use:   "validate MISSION_FILE",
	Short: "Validate a mission document",
	Long: `Resolve the mission document with any variant overlays, build the
computation graph, and report the resulting stage order without running
anything. All resolution, binding and dependency errors a run would hit
are reported here.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringArrayVar(&validateVariants, "variant", nil,
		"Variant overlay to apply, in order (repeatable)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	spec, err := resolveMission(args[0], validateVariants)
	if err != nil {
		return err
	}

	registry := component.NewRegistry()
	if err := component.RegisterBuiltins(registry); err != nil {
		return err
	}

	g, err := graph.Build(spec, registry)
	if err != nil {
		return err
	}

	color.Green("Mission %s is valid", args[0])
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  name:  %s\n", spec.Name)
	fmt.Fprintf(out, "  mode:  %s\n", spec.Mode)
	fmt.Fprintf(out, "  vehicle_interface: %s\n", spec.VehicleInterface.Type)

	fmt.Fprintln(out, "  stages (execution order):")
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, binding := range g.Bindings() {
		recovery := "-"
		if binding.HasRecovery() {
			recovery = spec.RecoveryBinding(binding.Stage()).Type
		}
		ref, _, _ := spec.DriveBinding(binding.Stage())
		fmt.Fprintf(w, "    %s\t%s\t%s\trecovery: %s\n",
			binding.Stage(), binding.Category(), ref.Type, recovery)
	}
	return w.Flush()
}
