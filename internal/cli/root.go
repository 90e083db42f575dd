// Package cli implements the linkrepo command-line interface: one command per
// catalog operation, over a store chosen by config.yaml and global flags.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/linkrepo/internal/catalog"
	"github.com/mesh-intelligence/linkrepo/internal/logging"
	"github.com/mesh-intelligence/linkrepo/internal/paths"
	"github.com/mesh-intelligence/linkrepo/pkg/store"
	"github.com/mesh-intelligence/linkrepo/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	backend   string
	agent     string
	logLevel  string
	yaml      bool
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags   rootFlags
	logger  *zap.Logger
	handle  store.Handle
	catalog *catalog.Catalog
}

// sysError marks failures of the environment rather than of the request.
type sysError struct{ err error }

func (e sysError) Error() string { return e.err.Error() }
func (e sysError) Unwrap() error { return e.err }

// NewRootCmd creates the top-level "linkrepo" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   paths.AppName,
		Short: "Typed, rule-maintained links over a content-addressed entry store",
		Long: `linkrepo keeps named objects and the links between them in repos whose
rules (reciprocal tags, singular tags, predicates) keep related links in step.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsStore(cmd) {
				return nil
			}
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/linkrepo)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/linkrepo)")
	pf.StringVar(&a.flags.backend, "backend", "", "store backend: sqlite or memory")
	pf.StringVar(&a.flags.agent, "agent", "", "agent identity the catalog is rooted at")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&a.flags.yaml, "yaml", false, "print structured output as YAML instead of JSON")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newObjectCmd(a))
	root.AddCommand(newRepoCmd(a))
	root.AddCommand(newLinkCmd(a), newUnlinkCmd(a))
	root.AddCommand(newReciprocalCmd(a), newPredicateCmd(a), newSingularCmd(a))
	root.AddCommand(newQueryCmd(a))
	root.AddCommand(newDumpCmd(a))

	return root, a
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}

// run executes one invocation and closes the store whether or not the
// command succeeded.
func run(args []string, stdout, stderr io.Writer) int {
	root, a := newRoot()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(stderr, "linkrepo:", err)
		return exitCode(err)
	}
	return exitSuccess
}

func exitCode(err error) int {
	var se sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}

// skipsStore reports whether cmd runs without an open store.
func skipsStore(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "init", "help", "completion":
		return true
	}
	return false
}

// open loads the configuration and opens the store and catalog.
func (a *app) open() error {
	cfg, level, err := a.config()
	if err != nil {
		return sysError{err}
	}
	if a.logger, err = logging.New(level); err != nil {
		return sysError{err}
	}
	h, err := store.Open(cfg, a.logger)
	if err != nil {
		return sysError{fmt.Errorf("opening store: %w", err)}
	}
	a.handle = h
	a.catalog = catalog.New(h, cfg.GetAgent(), catalog.WithLogger(a.logger))
	a.logger.Debug("store opened",
		zap.String("backend", cfg.Backend),
		zap.String("data_dir", cfg.DataDir),
		zap.String("agent", cfg.GetAgent()))
	return nil
}

func (a *app) close() error {
	if a.handle == nil {
		return nil
	}
	err := a.handle.Close()
	a.handle = nil
	_ = a.logger.Sync()
	if err != nil {
		return sysError{fmt.Errorf("closing store: %w", err)}
	}
	return nil
}

// config resolves the store configuration and log level: flags over
// environment over config.yaml over defaults.
func (a *app) config() (types.Config, string, error) {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return types.Config{}, "", err
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return types.Config{}, "", err
	}
	overrideString(v, cfgKeyBackend, a.flags.backend)
	overrideString(v, cfgKeyAgent, a.flags.agent)
	overrideString(v, cfgKeyLogLevel, a.flags.logLevel)

	cfg := types.Config{
		Backend:       v.GetString(cfgKeyBackend),
		Agent:         v.GetString(cfgKeyAgent),
		SyncStrategy:  v.GetString(cfgKeySyncStrategy),
		BatchSize:     v.GetInt(cfgKeyBatchSize),
		BatchInterval: v.GetInt(cfgKeyBatchInterval),
	}
	if cfg.Backend != types.BackendMemory {
		if cfg.DataDir, err = paths.ResolveDataDir(a.flags.dataDir, v.GetString(cfgKeyDataDir)); err != nil {
			return types.Config{}, "", err
		}
	}
	return cfg, v.GetString(cfgKeyLogLevel), nil
}
