// Command pipelinectl operates a running submission pipeline over its admin API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var Version = "dev"

type options struct {
	addr    string
	output  string
	timeout time.Duration
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "pipelinectl",
		Short:         "Operate the submission pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.addr, "addr", envOr("PIPELINE_ADDR", "http://localhost:8080"), "API base address")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "yaml", "Output format (yaml, json)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		submitCmd(opts),
		getCmd(opts),
		flagsCmd(opts),
		dlqCmd(opts),
		poolsCmd(opts),
		scalingCmd(opts),
		balancerCmd(opts),
		circuitsCmd(opts),
		simpleCmd(opts, "bulkheads", "Show bulkhead usage", "/v1/resilience/bulkheads"),
		simpleCmd(opts, "dashboard", "Show the operational overview", "/v1/dashboard"),
	)

	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

// call runs one request and prints the response in the selected format.
func call(cmd *cobra.Command, opts *options, method, path string, body any, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	doc, err := newClient(opts.addr, opts.timeout).do(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	return render(cmd.OutOrStdout(), opts.output, doc)
}

func render(w io.Writer, format string, doc any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()

		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func simpleCmd(opts *options, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, opts, http.MethodGet, path, nil, nil)
		},
	}
}

func submitCmd(opts *options) *cobra.Command {
	var (
		file string
		key  string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an application from a YAML or JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}

			// YAML is a superset of JSON, so both input formats decode here.
			var body map[string]any
			if err := yaml.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			var headers map[string]string
			if key != "" {
				headers = map[string]string{"Idempotency-Key": key}
			}

			return call(cmd, opts, http.MethodPost, "/v1/submissions", body, headers)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Submission document")
	cmd.Flags().StringVarP(&key, "idempotency-key", "k", "", "Idempotency key")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func getCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get [submission-id]",
		Short: "Show a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodGet, "/v1/submissions/"+args[0], nil, nil)
		},
	}
}

func flagsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flags",
		Short: "List or toggle feature flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, opts, http.MethodGet, "/v1/flags", nil, nil)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [name] [true|false]",
		Short: "Enable or disable a flag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}

			return call(cmd, opts, http.MethodPatch, "/v1/flags/"+args[0], map[string]bool{"enabled": enabled}, nil)
		},
	})

	return cmd
}

func dlqCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and recover dead-lettered jobs",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list [queue]",
			Short: "List failed jobs of a queue",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodGet, "/v1/dlq/"+args[0], nil, nil)
			},
		},
		&cobra.Command{
			Use:   "requeue [queue] [job-id]",
			Short: "Put a failed job back on its queue",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				body := map[string]string{"queueName": args[0], "jobId": args[1]}

				return call(cmd, opts, http.MethodPost, "/v1/dlq/requeue", body, nil)
			},
		},
		&cobra.Command{
			Use:   "purge [queue]",
			Short: "Delete all failed jobs of a queue",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodDelete, "/v1/dlq/"+args[0], nil, nil)
			},
		},
		simpleCmd(opts, "metrics", "Failed job counts per queue", "/v1/dlq/metrics"),
	)

	return cmd
}

func poolsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pools",
		Short: "Manage worker pools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, opts, http.MethodGet, "/v1/pools", nil, nil)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats [pool-id]",
		Short: "Show pool statistics and health",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return call(cmd, opts, http.MethodGet, "/v1/pools/stats", nil, nil)
			}

			return call(cmd, opts, http.MethodGet, "/v1/pools/"+args[0]+"/stats", nil, nil)
		},
	})

	for _, action := range []string{"pause", "resume", "enable", "disable"} {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   action + " [pool-id]",
			Short: "Run " + action + " on a pool",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodPost, "/v1/pools/"+args[0]+"/"+action, nil, nil)
			},
		})
	}

	var concurrency int
	setCmd := &cobra.Command{
		Use:   "set-concurrency [pool-id]",
		Short: "Change pool concurrency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodPatch, "/v1/pools/"+args[0], map[string]int{"concurrency": concurrency}, nil)
		},
	}
	setCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 1, "Jobs per worker (1-100)")
	cmd.AddCommand(setCmd)

	var grace time.Duration
	cleanCmd := &cobra.Command{
		Use:   "clean [pool-id]",
		Short: "Remove finished jobs older than the grace period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodPost, "/v1/pools/"+args[0]+"/clean", map[string]string{"grace": grace.String()}, nil)
		},
	}
	cleanCmd.Flags().DurationVar(&grace, "grace", time.Hour, "Keep jobs finished within this window")
	cmd.AddCommand(cleanCmd)

	return cmd
}

func scalingCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scaling",
		Short: "Inspect and override autoscaling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, opts, http.MethodGet, "/v1/scaling", nil, nil)
		},
	}

	cmd.AddCommand(
		simpleCmd(opts, "metrics", "Current workers and queue depth per queue", "/v1/scaling/metrics"),
		simpleCmd(opts, "history", "Recent scaling decisions", "/v1/scaling/history"),
		&cobra.Command{
			Use:   "set-workers [queue] [n]",
			Short: "Set the worker count of a queue",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid worker count %q: %w", args[1], err)
				}

				return call(cmd, opts, http.MethodPost, "/v1/scaling/"+args[0]+"/workers", map[string]int{"workers": n}, nil)
			},
		},
	)

	return cmd
}

func balancerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balancer",
		Short: "Inspect the load balancer",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "strategy [name]",
			Short: "Show or switch the strategy",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 0 {
					return call(cmd, opts, http.MethodGet, "/v1/balancer/strategy", nil, nil)
				}

				return call(cmd, opts, http.MethodPut, "/v1/balancer/strategy", map[string]string{"strategy": args[0]}, nil)
			},
		},
		&cobra.Command{
			Use:   "nodes [queue]",
			Short: "List worker nodes of a queue",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return call(cmd, opts, http.MethodGet, "/v1/balancer/"+args[0]+"/nodes", nil, nil)
			},
		},
		simpleCmd(opts, "metrics", "Assignment distribution per queue", "/v1/balancer/metrics"),
	)

	return cmd
}

func circuitsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circuits",
		Short: "Show circuit breaker states",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return call(cmd, opts, http.MethodGet, "/v1/resilience/circuits", nil, nil)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset [name]",
		Short: "Force a circuit closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, http.MethodPost, "/v1/resilience/circuits/"+args[0]+"/reset", nil, nil)
		},
	})

	return cmd
}
