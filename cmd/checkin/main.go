// Command checkin validates and submits bulk material check-ins described in
// YAML batch files against a YAML catalog.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exitFunc = os.Exit

// errRejected signals a completed run whose outcome is a failure that has
// already been reported.
var errRejected = errors.New("batch rejected")

type globalOptions struct {
	configPath  string
	catalogPath string
	tracePath   string
}

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "checkin",
		Short:         "Validate and submit bulk material check-ins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "labcheckin.yaml", "settings file; LABCHECKIN_* variables override it")
	root.PersistentFlags().StringVar(&opts.catalogPath, "catalog", "catalog.yaml", "materials, container types and locations")
	root.PersistentFlags().StringVar(&opts.tracePath, "trace", "", "write JSON-lines operation traces to this file")

	root.AddCommand(
		newValidateCmd(opts),
		newSubmitCmd(opts),
		newArchivedCmd(opts),
	)
	return root
}

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate BATCH",
		Short: "Validate a batch and print the highlighted cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()
			f, err := a.loadBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			writeReport(cmd.OutOrStdout(), f.Batch(), f.Highlights())
			if !f.IsEntireFormValid() {
				return errRejected
			}
			fmt.Fprintln(cmd.OutOrStdout(), "batch is valid")
			return nil
		},
	}
}

func newSubmitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit BATCH",
		Short: "Validate a batch and check in its orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()
			f, err := a.loadBatch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if !f.IsEntireFormValid() {
				writeReport(cmd.OutOrStdout(), f.Batch(), f.Highlights())
				return errRejected
			}
			res, err := f.Submit(cmd.Context())
			if err != nil {
				return err
			}
			writeSubmitResult(cmd.OutOrStdout(), res)
			if len(res.Rejected) > 0 {
				writeReport(cmd.OutOrStdout(), f.Batch(), f.Highlights())
				return errRejected
			}
			return nil
		},
	}
}

func newArchivedCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archived",
		Short: "List archived submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()
			if a.archiver == nil {
				return errors.New("archiving is disabled")
			}
			keys, err := a.archiver.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}
}
