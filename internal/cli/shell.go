package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudvault/cloudvault-cli/internal/events"
	"github.com/cloudvault/cloudvault-cli/internal/session"
	"github.com/cloudvault/cloudvault-cli/internal/state"
	"github.com/cloudvault/cloudvault-cli/internal/util/filter"
)

// errShellExit ends the shell loop without an error.
var errShellExit = errors.New("exit")

const shellHelp = `Commands:
  ls [pattern...]       list the current folder
  cd <folder>|..|/      change folder
  pwd                   show the current folder
  sort name|size|date [desc]
  star <name>           toggle a local star
  starred               list starred files
  upload <path...>      upload local files into the current folder
  get <name> [output]   download a file ("-" prints it)
  mkdir <name>          create a top-level folder
  rm <name>             delete a file
  backup [name]         create a backup
  restore <name>        restore a backup
  refresh               reload the file list
  whoami                show user and quota
  logout                forget the session and leave
  quit                  leave the shell`

// newShellCmd creates the 'shell' command: an interactive session that keeps
// the file list, current folder and stars between commands.
func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive vault browser",
		Long: `Start an interactive shell. The file list is loaded once and refreshed
after uploads; stars and the current folder last until the shell exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, a *app) error {
				sh := &shell{
					app:    a,
					in:     cmd.InOrStdin(),
					out:    cmd.OutOrStdout(),
					errOut: cmd.ErrOrStderr(),
				}
				return sh.run(ctx)
			})
		},
	}
}

type shell struct {
	app    *app
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (s *shell) run(ctx context.Context) error {
	sessionEvents := s.app.bus.Subscribe(events.EventSessionChanged)
	defer s.app.bus.Unsubscribe(events.EventSessionChanged, sessionEvents)

	if err := s.app.files.Refresh(ctx); err != nil {
		fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	snap := s.app.session.Snapshot()
	fmt.Fprintf(s.out, "Logged in as %s. Type 'help' for commands.\n", snap.User.DisplayName())

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := readLine(s.in, s.out, s.prompt())
		if err != nil {
			// EOF ends the shell like quit.
			fmt.Fprintln(s.out)
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		err = s.exec(ctx, fields[0], fields[1:])
		if errors.Is(err, errShellExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.errOut, "Error: %v\n", err)
		}

		if ended, reason := sessionEnded(sessionEvents); ended {
			if reason == session.ReasonAuthError {
				s.app.notifier.SessionExpired()
				fmt.Fprintln(s.errOut, "Session expired. Run 'cloudvault login' to sign in again.")
			}
			return nil
		}
	}
}

func (s *shell) prompt() string {
	folder := s.app.files.State().GetCurrentFolder()
	return fmt.Sprintf("vault:/%s> ", folder)
}

func (s *shell) exec(ctx context.Context, name string, args []string) error {
	files := s.app.files
	st := files.State()

	switch name {
	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)

	case "quit", "exit":
		return errShellExit

	case "ls":
		fc := filter.Config{Include: args}
		if err := fc.Validate(); err != nil {
			return err
		}
		printFileList(s.out, filter.Apply(st.Visible(), fc))

	case "cd":
		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		return s.changeFolder(target)

	case "pwd":
		fmt.Fprintf(s.out, "/%s\n", st.GetCurrentFolder())

	case "sort":
		if len(args) == 0 {
			by, asc := st.GetSort()
			fmt.Fprintf(s.out, "Sorted by %s (ascending: %t)\n", by, asc)
			return nil
		}
		st.SetSort(args[0], !(len(args) > 1 && args[1] == "desc"))

	case "star":
		if len(args) != 1 {
			return errors.New("usage: star <name>")
		}
		starred, err := files.ToggleStar(s.resolve(args[0]))
		if err != nil {
			return err
		}
		if starred {
			fmt.Fprintf(s.out, "Starred %s\n", args[0])
		} else {
			fmt.Fprintf(s.out, "Unstarred %s\n", args[0])
		}

	case "starred":
		printFileList(s.out, st.Starred())

	case "upload":
		if len(args) == 0 {
			return errors.New("usage: upload <path...>")
		}
		return executeUpload(ctx, s.app, args, st.GetCurrentFolder(), s.out, s.errOut)

	case "get":
		if len(args) == 0 || len(args) > 2 {
			return errors.New("usage: get <name> [output]")
		}
		output := ""
		if len(args) == 2 {
			output = args[1]
		}
		return executeDownload(ctx, s.app, s.resolve(args[0]), output, s.out, s.errOut)

	case "mkdir":
		if len(args) != 1 {
			return errors.New("usage: mkdir <name>")
		}
		// Folders are top-level; names with a slash are rejected.
		return files.CreateFolder(ctx, args[0])

	case "rm":
		if len(args) != 1 {
			return errors.New("usage: rm <name>")
		}
		return files.Delete(ctx, s.resolve(args[0]))

	case "backup":
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		resp, err := files.Backup(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Backup %s: %s\n", resp.BackupName, resp.Status)

	case "restore":
		if len(args) != 1 {
			return errors.New("usage: restore <name>")
		}
		resp, err := files.Restore(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Restored %d files, %d failed\n", resp.RestoredCount, resp.FailedCount)

	case "refresh":
		if err := files.Refresh(ctx); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%d items\n", st.Count())

	case "whoami":
		printSession(s.out, s.app.session.Snapshot())

	case "logout":
		s.app.session.Logout()
		fmt.Fprintln(s.out, "Logged out")
		return errShellExit

	default:
		return fmt.Errorf("unknown command %q (type 'help')", name)
	}
	return nil
}

// changeFolder moves into target relative to the current folder. The folder
// must exist in the loaded list.
func (s *shell) changeFolder(target string) error {
	st := s.app.files.State()
	current := st.GetCurrentFolder()

	switch {
	case target == "" || target == "/":
		st.SetCurrentFolder("")
		return nil
	case target == "..":
		if i := strings.LastIndex(current, "/"); i >= 0 {
			st.SetCurrentFolder(current[:i])
		} else {
			st.SetCurrentFolder("")
		}
		return nil
	}

	folder := strings.Trim(s.resolve(target), "/")
	for _, rec := range st.Items() {
		if rec.IsFolder() && rec.FolderPath() == folder {
			st.SetCurrentFolder(folder)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", state.ErrNotFound, target)
}

// resolve turns a name typed in the shell into a vault name. Names starting
// with / are absolute; others are relative to the current folder.
func (s *shell) resolve(name string) string {
	if strings.HasPrefix(name, "/") {
		return strings.TrimPrefix(name, "/")
	}
	if folder := s.app.files.State().GetCurrentFolder(); folder != "" {
		return folder + "/" + name
	}
	return name
}

// sessionEnded drains pending session events and reports whether the session
// stopped being authenticated, with the reason.
func sessionEnded(ch <-chan events.Event) (bool, string) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false, ""
			}
			if sc, ok := ev.(*events.SessionChangedEvent); ok && !sc.Authenticated {
				return true, sc.Reason
			}
		default:
			return false, ""
		}
	}
}
