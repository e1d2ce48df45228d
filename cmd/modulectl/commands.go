package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List modules and their lifecycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modules, err := opts.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), modules)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tVERSION\tLAST ACTIVATED")
			for _, m := range modules {
				activated := "-"
				if m.LastActivatedAt != nil {
					activated = m.LastActivatedAt.Local().Format(time.RFC3339)
				}
				state := string(m.State)
				if m.Missing {
					state += " (missing)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, state, m.Version, activated)
			}
			return tw.Flush()
		},
	}
}

func newRediscoverCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rediscover",
		Short: "Rescan the server's module directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := opts.client().Rediscover(cmd.Context())
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "discovered: %s\n", list(summary.Discovered))
			fmt.Fprintf(out, "changed:    %s\n", list(summary.Changed))
			fmt.Fprintf(out, "removed:    %s\n", list(summary.Removed))
			if len(summary.Restored) > 0 {
				fmt.Fprintf(out, "restored:   %s\n", list(summary.Restored))
			}
			for _, issue := range summary.Errors {
				fmt.Fprintf(out, "error:      %s [%s] %s\n", issue.Path, issue.Kind, issue.Message)
			}
			return nil
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		output  string
		archive bool
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a module package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()

			var data []byte
			if archive {
				var err error
				if data, err = c.ExportArchive(cmd.Context(), args[0]); err != nil {
					return err
				}
			} else {
				pkg, err := c.Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if data, err = sonic.ConfigStd.MarshalIndent(pkg, "", "  "); err != nil {
					return fmt.Errorf("encode package: %w", err)
				}
			}

			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %s to %s\n", args[0], output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&archive, "archive", false, "export as a tar+zstd archive")
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var (
		mode     string
		override bool
		archive  bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Upload a module package (JSON or .tar.zst)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read package: %w", err)
			}

			importMode := types.ImportMode(mode)
			if !importMode.Valid() {
				return fmt.Errorf("unknown mode %q (want %s or %s)", mode, types.ModeRejectIfExists, types.ModeReplaceExisting)
			}

			c := opts.client()
			if archive || isArchive(args[0]) {
				res, err := c.ImportArchive(cmd.Context(), data, importMode, override)
				if err != nil {
					return err
				}
				return printImport(cmd.OutOrStdout(), opts, res.Module, res.Digest)
			}

			var pkg types.Package
			if err := sonic.Unmarshal(data, &pkg); err != nil {
				return fmt.Errorf("decode package: %w", err)
			}
			res, err := c.Import(cmd.Context(), types.ImportRequest{Package: pkg, Mode: importMode, Override: override})
			if err != nil {
				return err
			}
			return printImport(cmd.OutOrStdout(), opts, res.Module, res.Digest)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(types.ModeRejectIfExists), "rejectIfExists or replaceExisting")
	cmd.Flags().BoolVar(&override, "override", false, "allow new content under a removed id")
	cmd.Flags().BoolVar(&archive, "archive", false, "treat the file as a tar+zstd archive")
	return cmd
}

func newTransitionCommand(opts *rootOptions, op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			var (
				rec types.Record
				err error
			)
			switch op {
			case "validate":
				rec, err = c.Validate(cmd.Context(), args[0])
			case "activate":
				rec, err = c.Activate(cmd.Context(), args[0])
			case "disable":
				rec, err = c.Disable(cmd.Context(), args[0])
			default:
				return fmt.Errorf("unknown operation %q", op)
			}
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), opts, rec)
		},
	}
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	var (
		dropTables bool
		confirm    string
	)

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a module (moves it to the tombstone area)",
		Long: `Remove a module. Its directory is moved under .removed/ and the id
stays reserved until purged.

Dropping the module's tables is destructive and needs the id repeated:
  modulectl remove inventory --drop-tables --confirm inventory`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := opts.client().Remove(cmd.Context(), args[0], types.RemoveOptions{
				DropTables: dropTables,
				Confirm:    confirm,
			})
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), opts, rec)
		},
	}

	cmd.Flags().BoolVar(&dropTables, "drop-tables", false, "drop the module's database tables")
	cmd.Flags().StringVar(&confirm, "confirm", "", "repeat the module id to confirm --drop-tables")
	return cmd
}

func newPurgeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <id>",
		Short: "Delete a removed module and free its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Purge(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s purged\n", args[0])
			return nil
		},
	}
}

func isArchive(path string) bool {
	return strings.HasSuffix(path, ".tar.zst") || filepath.Ext(path) == ".zst"
}

func list(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}

func printRecord(w io.Writer, opts *rootOptions, rec types.Record) error {
	if opts.json {
		return printJSON(w, rec)
	}
	_, err := fmt.Fprintf(w, "%s %s (%s)\n", rec.Descriptor.ID, rec.State, rec.Descriptor.Version)
	return err
}

func printImport(w io.Writer, opts *rootOptions, status types.ModuleStatus, digest string) error {
	if opts.json {
		return printJSON(w, map[string]interface{}{"module": status, "digest": digest})
	}
	_, err := fmt.Fprintf(w, "imported %s %s (%s)\n", status.ID, status.Version, status.State)
	return err
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
