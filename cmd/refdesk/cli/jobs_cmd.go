package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"
)

// QueueOps is the slice of JobsCLI the command layer depends on, kept
// as an interface so tests can run the commands without Redis.
type QueueOps interface {
	Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	ListScheduled(ctx context.Context, size int) ([]*asynq.TaskInfo, error)
}

// JobsOptions defines the flags for the jobs subcommand.
type JobsOptions struct {
	Action     string
	Job        string
	Size       int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// JobsCommand dispatches the jobs subcommand and returns the exit code.
func JobsCommand(ctx context.Context, ops QueueOps, opts JobsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	switch opts.Action {
	case "trigger":
		return triggerCommand(ctx, ops, opts)
	case "inspect":
		return inspectCommand(ctx, ops, opts)
	case "scheduled":
		return scheduledCommand(ctx, ops, opts)
	default:
		_, _ = fmt.Fprintln(opts.Stderr, "jobs: expected one of trigger, inspect, scheduled")
		return 1
	}
}

func triggerCommand(ctx context.Context, ops QueueOps, opts JobsOptions) int {
	if opts.Job == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "jobs trigger: a job name is required")
		return 1
	}
	info, err := ops.Trigger(ctx, opts.Job)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		payload := map[string]string{"id": info.ID, "queue": info.Queue, "type": info.Type}
		if err := json.NewEncoder(opts.Stdout).Encode(payload); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs trigger: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s as %s on queue %s\n", info.Type, info.ID, info.Queue)
	return 0
}

func inspectCommand(ctx context.Context, ops QueueOps, opts JobsOptions) int {
	stats, err := ops.InspectQueue(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs inspect: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs inspect: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintf(opts.Stdout, "queue %s: pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return 0
}

func scheduledCommand(ctx context.Context, ops QueueOps, opts JobsOptions) int {
	tasks, err := ops.ListScheduled(ctx, opts.Size)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "jobs scheduled: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		type scheduledTask struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		out := make([]scheduledTask, 0, len(tasks))
		for _, task := range tasks {
			out = append(out, scheduledTask{ID: task.ID, Type: task.Type})
		}
		if err := json.NewEncoder(opts.Stdout).Encode(out); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "jobs scheduled: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(opts.Stdout, "no scheduled tasks")
		return 0
	}
	for _, task := range tasks {
		_, _ = fmt.Fprintf(opts.Stdout, "%s %s\n", task.ID, task.Type)
	}
	return 0
}
