// Command nfsgate runs file operations against an NFSv3 export without
// mounting it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/nfsgate/internal/logger"
	"github.com/marmos91/nfsgate/pkg/config"
	"github.com/oklog/run"
	"github.com/spf13/pflag"
)

const usageHeader = `nfsgate - NFSv3 client gateway

Usage:
  nfsgate [flags] <command> [arguments]

Commands:
`

func main() {
	if err := execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet("nfsgate", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	// Flags after the command name belong to the command.
	flagSet.SetInterspersed(false)

	configPath := flagSet.StringP("config", "c", "", "path to config file (default: "+config.GetDefaultConfigPath()+")")
	flagSet.String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	flagSet.String("host", "", "NFS server host")
	flagSet.String("export", "", "export path to mount")
	flagSet.String("store", "", "store type: nfs3 or memory")
	flagSet.Bool("metrics", false, "serve Prometheus metrics while the command runs")
	flagSet.String("metrics-address", "", "metrics listen address")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return errors.New("no command given")
	}

	cmd, ok := lookupCommand(rest[0])
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}

	if cmd.standalone != nil {
		return cmd.standalone(stdout, rest[1:])
	}

	cfg, err := config.LoadWithFlags(*configPath, flagSet)
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return err
	}

	metricsResult, err := config.InitializeMetrics(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fsys, err := config.CreateFileSystem(ctx, cfg, metricsResult)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() {
		if err := fsys.Close(); err != nil {
			logger.Warn("Close: %v", err)
		}
	}()

	var group run.Group

	// command
	{
		cmdEnv := &env{fsys: fsys, stdin: stdin, stdout: stdout}
		group.Add(func() error {
			return cmd.run(ctx, cmdEnv, rest[1:])
		}, func(error) {
			cancel()
		})
	}

	// metrics server
	if metricsResult.Server != nil {
		serverCtx, serverCancel := context.WithCancel(context.Background())
		group.Add(func() error {
			return metricsResult.Server.Start(serverCtx)
		}, func(error) {
			serverCancel()
		})
	}

	// signals
	{
		signalCtx, signalCancel := context.WithCancel(context.Background())
		group.Add(func() error {
			ch := make(chan os.Signal, 2)
			signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(ch)

			select {
			case sig := <-ch:
				logger.Info("Received %s, stopping", sig)
				return fmt.Errorf("interrupted by %s", sig)
			case <-signalCtx.Done():
				return nil
			}
		}, func(error) {
			signalCancel()
		})
	}

	return group.Run()
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, usageHeader)
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-34s %s\n", cmd.usage, cmd.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flagSet.FlagUsages())
}
