package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/pkg/config"
	"github.com/marmos91/nfsgate/pkg/filesystem"
	"github.com/marmos91/nfsgate/pkg/stream"
	"github.com/spf13/pflag"
)

// env is what a command runs against.
type env struct {
	fsys   *filesystem.FileSystem
	stdin  io.Reader
	stdout io.Writer
}

type command struct {
	name    string
	usage   string
	summary string

	// run executes the command against a connected filesystem.
	run func(ctx context.Context, env *env, args []string) error

	// standalone commands run without loading configuration.
	standalone func(stdout io.Writer, args []string) error
}

var commands = []command{
	{name: "ls", usage: "ls <path>", summary: "list a directory", run: runList},
	{name: "stat", usage: "stat <path>...", summary: "show file status", run: runStat},
	{name: "cat", usage: "cat <path>...", summary: "print remote files", run: runCat},
	{name: "get", usage: "get <remote> <local>", summary: "download a file", run: runGet},
	{name: "put", usage: "put [-f] <local|-> <remote>", summary: "upload a file, - reads stdin", run: runPut},
	{name: "append", usage: "append <local|-> <remote>", summary: "append to a remote file", run: runAppend},
	{name: "mkdir", usage: "mkdir <path>...", summary: "create directories and their parents", run: runMkdir},
	{name: "rm", usage: "rm [-r] <path>...", summary: "delete files or directories", run: runRemove},
	{name: "mv", usage: "mv <src> <dst>", summary: "rename a file or directory", run: runMove},
	{name: "init-config", usage: "init-config [--force]", summary: "write the default config file", standalone: runInitConfig},
}

func lookupCommand(name string) (command, bool) {
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func parseArgs(name string, args []string, n int, setup func(*pflag.FlagSet)) ([]string, error) {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	if setup != nil {
		setup(flagSet)
	}
	if err := flagSet.Parse(args); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	rest := flagSet.Args()
	switch {
	case n > 0 && len(rest) != n:
		return nil, fmt.Errorf("%s: expected %d arguments, got %d", name, n, len(rest))
	case n < 0 && len(rest) == 0:
		return nil, fmt.Errorf("%s: expected at least one path", name)
	}
	return rest, nil
}

func runList(ctx context.Context, env *env, args []string) error {
	args, err := parseArgs("ls", args, 1, nil)
	if err != nil {
		return err
	}

	statuses, err := env.fsys.ListStatus(ctx, args[0])
	if err != nil {
		return err
	}
	for _, status := range statuses {
		fmt.Fprintln(env.stdout, status)
	}
	return nil
}

func runStat(ctx context.Context, env *env, args []string) error {
	args, err := parseArgs("stat", args, -1, nil)
	if err != nil {
		return err
	}

	for _, p := range args {
		status, err := env.fsys.GetFileStatus(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "Path:     %s\n", status.Path)
		fmt.Fprintf(env.stdout, "Size:     %d\n", status.Size)
		fmt.Fprintf(env.stdout, "Mode:     %s (%04o)\n", status.FileMode(), status.Mode)
		fmt.Fprintf(env.stdout, "Owner:    %d:%d\n", status.UID, status.GID)
		fmt.Fprintf(env.stdout, "Modified: %s\n", status.ModTime.Format("2006-01-02 15:04:05.000"))
		fmt.Fprintf(env.stdout, "FileID:   %d\n", status.FileID)
	}
	return nil
}

func runCat(ctx context.Context, env *env, args []string) error {
	args, err := parseArgs("cat", args, -1, nil)
	if err != nil {
		return err
	}

	for _, p := range args {
		if err := download(ctx, env.fsys, p, env.stdout); err != nil {
			return err
		}
	}
	return nil
}

func runGet(ctx context.Context, env *env, args []string) error {
	args, err := parseArgs("get", args, 2, nil)
	if err != nil {
		return err
	}

	local, err := os.Create(args[1])
	if err != nil {
		return err
	}
	if err := download(ctx, env.fsys, args[0], local); err != nil {
		_ = local.Close()
		return err
	}
	return local.Close()
}

func download(ctx context.Context, fsys *filesystem.FileSystem, p string, dst io.Writer) error {
	r, err := fsys.Open(ctx, p)
	if err != nil {
		return err
	}

	n, copyErr := io.Copy(dst, r)
	logStats("read", p, r.Stats())

	var result *multierror.Error
	if copyErr != nil {
		result = multierror.Append(result, fmt.Errorf("read %s after %d bytes: %w", p, n, copyErr))
	}
	if err := r.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func runPut(ctx context.Context, env *env, args []string) error {
	var overwrite bool
	args, err := parseArgs("put", args, 2, func(fs *pflag.FlagSet) {
		fs.BoolVarP(&overwrite, "force", "f", false, "overwrite an existing file")
	})
	if err != nil {
		return err
	}

	return upload(ctx, env, args[0], args[1], func(ctx context.Context, p string) (*stream.Writer, error) {
		return env.fsys.Create(ctx, p, overwrite)
	})
}

func runAppend(ctx context.Context, env *env, args []string) error {
	args, err := parseArgs("append", args, 2, nil)
	if err != nil {
		return err
	}

	return upload(ctx, env, args[0], args[1], env.fsys.Append)
}

func upload(ctx context.Context, env *env, local, remote string, open func(context.Context, string) (*stream.Writer, error)) error {
	src := env.stdin
	if local != "-" {
		f, err := os.Open(local)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	w, err := open(ctx, remote)
	if err != nil {
		return err
	}

	n, copyErr := io.Copy(w, src)

	var result *multierror.Error
	if copyErr != nil {
		result = multierror.Append(result, fmt.Errorf("write %s after %d bytes: %w", remote, n, copyErr))
	}
	// Close flushes and commits; write-back failures surface here.
	if err := w.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	logStats("write", remote, w.Stats())
	return result.ErrorOrNil()
}

func logStats(direction, p string, s stream.Snapshot) {
	logger.Debug("%s %s: %s", direction, p, s)
}

func runMkdir(ctx context.Context, env *env, args []string) error {
	args, err := parseArgs("mkdir", args, -1, nil)
	if err != nil {
		return err
	}

	for _, p := range args {
		if err := env.fsys.Mkdirs(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func runRemove(ctx context.Context, env *env, args []string) error {
	var recursive bool
	args, err := parseArgs("rm", args, -1, func(fs *pflag.FlagSet) {
		fs.BoolVarP(&recursive, "recursive", "r", false, "delete directories and their contents")
	})
	if err != nil {
		return err
	}

	var missing []string
	for _, p := range args {
		deleted, err := env.fsys.Delete(ctx, p, recursive)
		if err != nil {
			return err
		}
		if !deleted {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("rm: no such file or directory: %s", strings.Join(missing, ", "))
	}
	return nil
}

func runMove(ctx context.Context, env *env, args []string) error {
	args, err := parseArgs("mv", args, 2, nil)
	if err != nil {
		return err
	}

	return env.fsys.Rename(ctx, args[0], args[1])
}

func runInitConfig(stdout io.Writer, args []string) error {
	var force bool
	var path string
	_, err := parseArgs("init-config", args, 0, func(fs *pflag.FlagSet) {
		fs.BoolVar(&force, "force", false, "overwrite an existing config file")
		fs.StringVar(&path, "path", "", "write to this path instead of the default location")
	})
	if err != nil {
		return err
	}

	if path == "" {
		if path, err = config.InitConfig(force); err != nil {
			return err
		}
	} else if err := config.InitConfigToPath(path, force); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Configuration written to %s\n", path)
	return nil
}
