package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectorsql/vectorsql/pkg/membership"
	"github.com/vectorsql/vectorsql/pkg/scheduler"
	"github.com/vectorsql/vectorsql/pkg/topicfeed"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Schedule the query described in a fixture file against its backend roster",
	Long: `Run loads a YAML fixture describing a static backend roster and one
query execution request, schedules it, and prints a summary.

Example:
  vectorsql-schedsim run -f fixture.yaml`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "fixture YAML file to schedule (required)")
	_ = runCmd.MarkFlagRequired("file")
}

func runRun(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	fx, err := loadFixture(path)
	if err != nil {
		return err
	}

	tracker := membership.NewTracker()
	delta, err := fixtureDelta(fx.Backends)
	if err != nil {
		return fmt.Errorf("failed to encode backend roster: %w", err)
	}
	tracker.Apply(delta)

	req, err := fx.toRequest()
	if err != nil {
		return fmt.Errorf("failed to build scheduling request: %w", err)
	}

	sched := scheduler.New(tracker)
	schedule, err := sched.Schedule(context.Background(), req)
	if err != nil {
		return fmt.Errorf("scheduling failed: %w", err)
	}

	fmt.Printf("query %s scheduled:\n", schedule.QueryID)
	fmt.Printf("  total assignments:  %d\n", schedule.Counters.TotalAssignments)
	fmt.Printf("  local assignments:  %d\n", schedule.Counters.LocalAssignments)
	fmt.Printf("  remote assignments: %d\n", schedule.Counters.RemoteAssignments)
	fmt.Printf("  cached bytes:       %d\n", schedule.Counters.CachedBytes)
	fmt.Printf("  disk-local bytes:   %d\n", schedule.Counters.DiskLocalBytes)
	fmt.Printf("  remote bytes:       %d\n", schedule.Counters.RemoteBytes)
	for fragID, instances := range schedule.FragmentInstances {
		fmt.Printf("  fragment %d: %d instance(s)\n", fragID, len(instances))
		for _, inst := range instances {
			fmt.Printf("    instance %d on %s (sender_id=%d)\n", inst.InstanceIndex, inst.Host, inst.SenderID)
		}
	}

	return nil
}

func fixtureDelta(backends []fixtureBackend) (topicfeed.Delta, error) {
	entries := make([]topicfeed.Entry, 0, len(backends))
	for _, b := range backends {
		payload, err := json.Marshal(b.toBackendDescriptor())
		if err != nil {
			return topicfeed.Delta{}, err
		}
		entries = append(entries, topicfeed.Entry{Key: b.Key, Payload: payload})
	}
	return topicfeed.Delta{FullMap: true, Entries: entries}, nil
}
