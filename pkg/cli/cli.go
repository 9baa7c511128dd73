package cli

import (
	"context"
	"flag"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/finwise/finmig/pkg/cmd/migrate"
	"github.com/finwise/finmig/pkg/cmd/revision"
	"github.com/finwise/finmig/pkg/cmd/status"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet("finmig", flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: "finmig [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newRevisionCommand(),
			newMergeCommand(),
			newUpgradeCommand(),
			newDowngradeCommand(),
			newStampCommand(),
			newCurrentCommand(),
			newHistoryCommand(),
			newHeadsCommand(),
		},
	}
}

// Args prepares raw command-line arguments for parsing. A relative
// revision target like -1 would otherwise be read as an unknown flag
// and abort parsing, so the flag terminator is inserted ahead of the
// first such token.
func Args(args []string) []string {
	for i, arg := range args {
		if arg == "--" {
			return args
		}
		if !relativeTarget(arg) {
			continue
		}
		out := make([]string, 0, len(args)+1)
		out = append(out, args[:i]...)
		out = append(out, "--")
		out = append(out, args[i:]...)
		return out
	}
	return args
}

func relativeTarget(s string) bool {
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "finmig version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func newRevisionCommand() *ffcli.Command {
	cmd := "revision"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &revision.Config{}

	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Dir, "dir", "migrations", "revision script directory")
	fs.StringVar(&cfg.Message, "m", "", "revision description")
	fs.BoolVar(&cfg.Autogenerate, "autogenerate", false, "derive the revision body from the model registry diff")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("finmig %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("FINMIG"),
		},
		ShortHelp: "generate a new revision script",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return revision.Run(ctx, cfg)
		},
	}
}

func newMergeCommand() *ffcli.Command {
	cmd := "merge"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &revision.Config{}

	fs.StringVar(&cfg.Dir, "dir", "migrations", "revision script directory")
	fs.StringVar(&cfg.Message, "m", "", "revision description")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("finmig %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("FINMIG"),
		},
		ShortHelp: "author a merge revision joining diverged heads",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return revision.RunMerge(ctx, cfg)
		},
	}
}

func newUpgradeCommand() *ffcli.Command {
	cmd := "upgrade"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}
	migrateFlags(fs, cfg)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("finmig %s [flags] <head|revision|+N>", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("FINMIG"),
		},
		ShortHelp: "apply migrations forward",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			target, err := targetArg(cmd, args)
			if err != nil {
				return err
			}
			return migrate.Run(ctx, cfg, target)
		},
	}
}

func newDowngradeCommand() *ffcli.Command {
	cmd := "downgrade"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}
	migrateFlags(fs, cfg)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("finmig %s [flags] <base|revision|-N>", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("FINMIG"),
		},
		ShortHelp: "revert migrations",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			target, err := targetArg(cmd, args)
			if err != nil {
				return err
			}
			return migrate.RunDown(ctx, cfg, target)
		},
	}
}

func newStampCommand() *ffcli.Command {
	cmd := "stamp"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}
	migrateFlags(fs, cfg)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("finmig %s [flags] <base|head|revision>", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("FINMIG"),
		},
		ShortHelp: "set the current-revision marker without running scripts",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			target, err := targetArg(cmd, args)
			if err != nil {
				return err
			}
			return migrate.RunStamp(ctx, cfg, target)
		},
	}
}

func newCurrentCommand() *ffcli.Command {
	cmd := "current"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &status.Config{}
	statusFlags(fs, cfg)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("finmig %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("FINMIG"),
		},
		ShortHelp: "print the current-revision marker",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return status.RunCurrent(ctx, cfg)
		},
	}
}

func newHistoryCommand() *ffcli.Command {
	cmd := "history"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &status.Config{}
	statusFlags(fs, cfg)

	var verbose bool
	var csvPath string
	fs.BoolVar(&verbose, "verbose", false, "print full revision metadata")
	fs.StringVar(&csvPath, "csv", "", "export the history to a csv file")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("finmig %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("FINMIG"),
		},
		ShortHelp: "print the chain of revisions",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return status.RunHistory(ctx, cfg, verbose, csvPath)
		},
	}
}

func newHeadsCommand() *ffcli.Command {
	cmd := "heads"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &status.Config{}
	statusFlags(fs, cfg)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("finmig %s [flags]", cmd),
		Options: []ff.Option{
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ffyaml.Parser),
			ff.WithEnvVarPrefix("FINMIG"),
		},
		ShortHelp: "list the heads of the script chain",
		FlagSet:   fs,
		Exec: func(ctx context.Context, args []string) error {
			return status.RunHeads(ctx, cfg)
		},
	}
}

func migrateFlags(fs *flag.FlagSet, cfg *migrate.Config) {
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Dir, "dir", "migrations", "revision script directory")
	fs.StringVar(&cfg.SourceType, "source-type", "", "script source type (local, s3)")
	fs.StringVar(&cfg.SourceConn, "source-conn", "", "path for local, key:secret@bucket.region for s3")
}

func statusFlags(fs *flag.FlagSet, cfg *status.Config) {
	fs.BoolVar(&cfg.Debug, "debug", false, "debug mode")
	fs.StringVar(&cfg.DBType, "db-type", "", "db type (sqlite, mysql, postgres)")
	fs.StringVar(&cfg.DBConn, "db-conn", "", "path for sqlite, dsn for mysql or postgres")
	fs.StringVar(&cfg.Dir, "dir", "migrations", "revision script directory")
	fs.StringVar(&cfg.SourceType, "source-type", "", "script source type (local, s3)")
	fs.StringVar(&cfg.SourceConn, "source-conn", "", "path for local, key:secret@bucket.region for s3")
}

func targetArg(cmd string, args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("cli: %s requires exactly one target argument", cmd)
	}
	return args[0], nil
}
