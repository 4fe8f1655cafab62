package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstack-io/helmsman/internal/component"
	"github.com/avstack-io/helmsman/internal/executor"
	"github.com/avstack-io/helmsman/internal/graph"
	"github.com/avstack-io/helmsman/internal/mission"
	"github.com/avstack-io/helmsman/internal/observability"
	"github.com/avstack-io/helmsman/internal/recorder"
	"github.com/avstack-io/helmsman/internal/recovery"
	"github.com/avstack-io/helmsman/internal/types"
	"github.com/avstack-io/helmsman/internal/vehicle"
)

var (
	runVariants     []string
	runLogFolder    string
	runReplayFolder string
)

var runCmd = &cobra.Command{
	Use:   "run MISSION_FILE",
	Short: "Run a mission",
	Long: `Resolve the mission document (with any variant overlays), build the
computation graph, and execute the mission until completion or a stop
signal. Ctrl-C finishes the current cycle and flushes the recording
session before exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: runMission,
}

func init() {
	runCmd.Flags().StringArrayVar(&runVariants, "variant", nil,
		"Variant overlay to apply, in order (repeatable)")
	runCmd.Flags().StringVar(&runLogFolder, "log", "",
		"Override the mission's log folder")
	runCmd.Flags().StringVar(&runReplayFolder, "replay", "",
		"Override the mission's replay folder")
}

func runMission(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.NewLogger(os.Stderr, appConfig.Logging)

	tp, err := observability.InitTracing(ctx, appConfig.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := observability.ShutdownTracing(ctx, tp); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	spec, err := resolveMission(args[0], runVariants)
	if err != nil {
		return err
	}
	if runLogFolder != "" {
		spec.Log.Folder = runLogFolder
	}
	if runReplayFolder != "" {
		spec.Replay.Folder = runReplayFolder
	}

	registry := component.NewRegistry()
	if err := component.RegisterBuiltins(registry); err != nil {
		return err
	}

	g, err := graph.Build(spec, registry)
	if err != nil {
		return err
	}

	vehicles := vehicle.NewRegistry()
	iface, err := vehicles.Construct(spec.VehicleInterface.Type, spec.VehicleInterface.Args)
	if err != nil {
		return err
	}
	defer func() {
		if err := iface.Close(); err != nil {
			logger.Warn("vehicle interface close failed", "error", err)
		}
	}()

	runID := types.NewID()

	opts := []executor.Option{
		executor.WithLogger(logger),
		executor.WithIOTimeout(appConfig.Core.IOTimeout),
	}
	if appConfig.Tracing.Enabled {
		tracer := tp.Tracer("helmsman/executor")
		opts = append(opts, executor.WithTracer(tracer))

		var span trace.Span
		ctx, span = tracer.Start(ctx, "mission.run",
			trace.WithAttributes(observability.MissionAttributes(runID, spec)...))
		defer span.End()
	}

	var session *recorder.Session
	if spec.Log.Folder != "" {
		session, err = recorder.NewSession(spec.Log.Folder, spec.Log, recorder.SessionOptions{
			MissionName: spec.Name,
			Variants:    runVariants,
		}, logger)
		if err != nil {
			return err
		}
		opts = append(opts, executor.WithSession(session))
	}

	if spec.Replay.Folder != "" {
		replay, err := recorder.OpenReplay(spec.Replay.Folder, spec.Replay, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := replay.Close(); err != nil {
				logger.Warn("replay close failed", "error", err)
			}
		}()
		opts = append(opts, executor.WithReplay(replay))
	}

	managerOpts := []recovery.Option{recovery.WithLogger(logger)}
	if session != nil {
		managerOpts = append(managerOpts, recovery.WithEventSink(session))
	}
	manager := recovery.NewManager(g, spec.Recovery, managerOpts...)
	opts = append(opts, executor.WithRecovery(manager))

	logger.Info("mission resolved",
		"run_id", runID,
		"mission", spec.Name,
		"mode", string(spec.Mode),
		"variants", runVariants,
		"stages", g.Order(),
	)

	loop := executor.New(spec, g, iface, opts...)
	if err := loop.Run(ctx); err != nil {
		color.Red("Mission failed: %v", err)
		return err
	}

	if degraded := manager.Degraded(); len(degraded) > 0 {
		color.Yellow("Mission finished with degraded stages: %v", degraded)
	} else {
		color.Green("Mission finished")
	}
	if session != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Session recorded at %s\n", session.Dir())
	}
	return nil
}

// resolveMission layers the variant overlays onto the mission document.
func resolveMission(path string, variants []string) (*mission.Spec, error) {
	resolver := mission.NewResolver()
	spec, err := resolver.Resolve(path, variants...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mission %s: %w", path, err)
	}
	return spec, nil
}
