// Package cli provides file operation commands.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudvault/cloudvault-cli/internal/diskspace"
	"github.com/cloudvault/cloudvault-cli/internal/filesync"
	"github.com/cloudvault/cloudvault-cli/internal/models"
	"github.com/cloudvault/cloudvault-cli/internal/pathutil"
	"github.com/cloudvault/cloudvault-cli/internal/progress"
	"github.com/cloudvault/cloudvault-cli/internal/state"
	"github.com/cloudvault/cloudvault-cli/internal/transfer"
	"github.com/cloudvault/cloudvault-cli/internal/util/filter"
)

// newFilesCmd creates the 'files' command group.
func newFilesCmd() *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "File operations (list, upload, download, mkdir)",
		Long:  `Commands for managing files in your vault.`,
	}

	filesCmd.AddCommand(newFilesListCmd())
	filesCmd.AddCommand(newFilesUploadCmd())
	filesCmd.AddCommand(newFilesDownloadCmd())
	filesCmd.AddCommand(newFilesMkdirCmd())
	filesCmd.AddCommand(newFilesDeleteCmd())

	return filesCmd
}

// newFilesListCmd creates the 'files list' command.
func newFilesListCmd() *cobra.Command {
	var folder, sortBy, include, exclude, search string
	var desc bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files in your vault",
		Long: `List files stored in your vault.

Examples:
  # List everything
  cloudvault files list

  # List one folder, largest first
  cloudvault files list --folder Reports --sort size --desc

  # Only CSV files, skipping drafts
  cloudvault files list --filter "*.csv" --exclude "draft*"

  # Names containing "q3"
  cloudvault files list --search q3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc := filter.Config{
				Include: filter.ParsePatternList(include),
				Exclude: filter.ParsePatternList(exclude),
				Search:  filter.ParsePatternList(search),
			}
			if err := fc.Validate(); err != nil {
				return err
			}

			return withSession(func(ctx context.Context, a *app) error {
				if err := a.files.Refresh(ctx); err != nil {
					return err
				}
				st := a.files.State()
				st.SetSort(sortBy, !desc)
				st.SetCurrentFolder(folder)

				printFileList(cmd.OutOrStdout(), filter.Apply(st.Visible(), fc))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Only list files under this folder")
	cmd.Flags().StringVarP(&sortBy, "sort", "s", state.SortByName, "Sort by name, size or date")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort in descending order")
	cmd.Flags().StringVar(&include, "filter", "", "Comma-separated glob patterns to include (e.g. \"*.csv,*.txt\")")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Comma-separated glob patterns to exclude")
	cmd.Flags().StringVar(&search, "search", "", "Comma-separated terms the name must contain")

	return cmd
}

// newFilesUploadCmd creates the 'files upload' command.
func newFilesUploadCmd() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "upload <file> [file...]",
		Short: "Upload files to your vault",
		Long: `Upload one or more local files. Each file is uploaded independently;
one failure does not stop the rest.

Examples:
  # Upload a single file
  cloudvault files upload report.pdf

  # Upload several files into a folder
  cloudvault files upload *.csv --folder Data`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, a *app) error {
				return executeUpload(ctx, a, args, folder, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Upload into this folder (default: root)")

	return cmd
}

// newFilesDownloadCmd creates the 'files download' command.
func newFilesDownloadCmd() *cobra.Command {
	var output string
	var asDataURI bool

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download a file from your vault",
		Long: `Download a file by its vault name.

Examples:
  # Save to the current directory
  cloudvault files download Reports/q3.pdf

  # Save under another name, or write to stdout
  cloudvault files download notes.txt -o /tmp/notes.txt
  cloudvault files download notes.txt -o -

  # Print a data: URI for embedding in HTML or a browser address bar
  cloudvault files download logo.png --data-uri`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, a *app) error {
				if asDataURI {
					content, err := fetchFile(ctx, a, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), filesync.DataURI(args[0], content))
					return nil
				}
				return executeDownload(ctx, a, args[0], output, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, or - for stdout (default: base name in current directory)")
	cmd.Flags().BoolVar(&asDataURI, "data-uri", false, "Print the file as a data: URI instead of saving it")

	return cmd
}

// newFilesMkdirCmd creates the 'files mkdir' command.
func newFilesMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, a *app) error {
				if err := a.files.CreateFolder(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s/\n", strings.TrimSpace(args[0]))
				return nil
			})
		},
	}
}

// newFilesDeleteCmd creates the 'files rm' command.
func newFilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"delete"},
		Short:   "Delete a file (not supported by the server)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, a *app) error {
				return a.files.Delete(ctx, args[0])
			})
		},
	}
}

// executeUpload reads local files and uploads them, with a progress view for
// batches.
func executeUpload(ctx context.Context, a *app, paths []string, folder string, out, errOut io.Writer) error {
	folder = strings.Trim(folder, "/")

	files := make([]transfer.File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", p, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", p)
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		name := filepath.Base(p)
		if folder != "" {
			name = folder + "/" + name
		}
		files = append(files, transfer.File{Name: name, Content: content})
	}

	if len(files) == 1 {
		f := files[0]
		if err := a.files.Upload(ctx, f.Name, f.Content); err != nil {
			return fmt.Errorf("failed to upload %s: %w", f.Name, err)
		}
		fmt.Fprintf(out, "Uploaded %s (%s)\n", f.Name, formatBytes(int64(len(f.Content))))
		return nil
	}

	ui := progress.NewBatchUI(len(files), errOut)
	ui.Attach(a.bus)
	result := a.files.UploadBatch(ctx, files)
	ui.Detach()

	a.notifier.BatchComplete(len(result.Tasks), result.Succeeded(), result.Failed(), result.Duration)

	fmt.Fprintf(out, "Uploaded %d of %d files in %s\n",
		result.Succeeded(), len(result.Tasks), result.Duration.Round(time.Millisecond))
	if failed := result.Failed(); failed > 0 {
		for _, task := range result.Tasks {
			if task.Err != nil {
				fmt.Fprintf(errOut, "  %s: %v\n", task.Filename, task.Err)
			}
		}
		return fmt.Errorf("%d of %d uploads failed", failed, len(result.Tasks))
	}
	return nil
}

// fetchFile downloads name, loading the list first so the server key can be
// resolved from it.
func fetchFile(ctx context.Context, a *app, name string) ([]byte, error) {
	if len(a.files.Files()) == 0 {
		if err := a.files.Refresh(ctx); err != nil {
			a.logger.Debugf("Refresh before download failed: %v", err)
		}
	}
	return a.files.Download(ctx, name)
}

// executeDownload fetches name and writes it to output.
func executeDownload(ctx context.Context, a *app, name, output string, out, errOut io.Writer) error {
	content, err := fetchFile(ctx, a, name)
	if err != nil {
		return err
	}

	if output == "-" {
		_, err := out.Write(content)
		return err
	}
	if output == "" {
		output = path.Base(name)
	}
	output, err = pathutil.ResolveAbsolutePath(output)
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	if err := diskspace.CheckAvailableSpace(output, int64(len(content)), diskspace.DefaultMargin); err != nil {
		return err
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}

	reporter := progress.NewReporter(errOut)
	reporter.Start(int64(len(content)), path.Base(name))
	_, copyErr := io.Copy(f, progress.NewProgressReader(bytes.NewReader(content), reporter))
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		reporter.Error(err)
		os.Remove(output)
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	reporter.Finish()

	fmt.Fprintf(out, "Downloaded %s to %s (%s)\n", name, output, formatBytes(int64(len(content))))
	return nil
}

func printFileList(w io.Writer, records []models.FileRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No files found")
		return
	}

	fmt.Fprintf(w, "Found %d item(s):\n\n", len(records))
	fmt.Fprintf(w, "  %-48s %12s  %s\n", "NAME", "SIZE", "UPLOADED")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, r := range records {
		star := " "
		if r.Starred {
			star = "*"
		}
		size := formatBytes(r.SizeBytes)
		if r.IsFolder() {
			size = "-"
		}
		uploaded := r.UploadedAt
		if t, ok := r.UploadTime(); ok {
			uploaded = t.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s %-48s %12s  %s\n", star, r.DisplayName(), size, uploaded)
	}
}

// formatBytes renders n with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
