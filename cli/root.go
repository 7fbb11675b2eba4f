/*
root.go - icomp command tree and shared wiring

PURPOSE:
  Builds the cobra command tree, resolves configuration and constructs the
  logger and store each subcommand needs.

CONFIGURATION (highest to lowest priority):
  1. CLI flags           --db, -v, --json-logs, --addr
  2. Environment         ICOMP_DB, ICOMP_VERBOSE, ICOMP_JSON_LOGS, ICOMP_ADDR, ICOMP_CORS_ORIGINS
  3. Config file         --config, or $HOME/.icomp/config.yaml when present
  4. Defaults            see setDefaults

SEE ALSO:
  - ingest.go, print.go, serve.go, config.go: subcommands
  - cmd/icomp/main.go: entry point
*/
package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/claim-ledger/logger"
	"github.com/warp/claim-ledger/store/sqlite"
)

const (
	DefaultDB   = "icompdb.sqlite"
	DefaultAddr = ":8080"
	EnvPrefix   = "ICOMP"
)

// Config is the effective configuration after all sources are merged.
type Config struct {
	DB          string   `yaml:"db"`
	Verbose     int      `yaml:"verbose"`
	JSONLogs    bool     `yaml:"json_logs"`
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// app carries state shared by one invocation of the command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     Config
	log     *zap.Logger
}

// Execute runs the icomp command tree against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds a fresh command tree with its own configuration.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New(), log: zap.NewNop()}
	setDefaults(a.v)

	root := &cobra.Command{
		Use:   "icomp",
		Short: "Intervenor compensation claim ledger",
		Long: `icomp reconciles periodic intervenor compensation claim listings into a
ledger of claims, tracking when each claim first appeared, how its status
changed and when it was resolved.

Examples:
  icomp ingest reports/*.xlsx        # Ingest quarterly listings (any order)
  icomp ingest --list reports.txt    # Ingest the files named in a list
  icomp print --status Pending       # Show pending claims
  icomp export ledger.xlsx           # Export the ledger to a spreadsheet
  icomp serve --addr :9090           # Serve the ledger read-only over HTTP`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.icomp/config.yaml)")
	flags.String("db", DefaultDB, "SQLite database path, created if missing")
	flags.CountP("verbose", "v", "increase log verbosity (-v debug, -vv trace)")
	flags.Bool("json-logs", false, "emit structured JSON logs")

	_ = a.v.BindPFlag("db", flags.Lookup("db"))
	_ = a.v.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = a.v.BindPFlag("json_logs", flags.Lookup("json-logs"))

	root.AddCommand(
		newIngestCmd(a),
		newPrintCmd(a),
		newExportCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", DefaultDB)
	v.SetDefault("verbose", 0)
	v.SetDefault("json_logs", false)
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("cors_origins", []string{})
}

// init reads the config file and environment, then builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config %s", a.cfgFile)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(filepath.Join(home, ".icomp"))
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
		if err := a.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return errors.Wrap(err, "failed to read config")
			}
		}
	}

	a.cfg = Config{
		DB:          a.v.GetString("db"),
		Verbose:     a.v.GetInt("verbose"),
		JSONLogs:    a.v.GetBool("json_logs"),
		Addr:        a.v.GetString("addr"),
		CORSOrigins: a.v.GetStringSlice("cors_origins"),
	}

	a.log = logger.New(logger.Options{
		Verbosity: a.cfg.Verbose,
		JSON:      a.cfg.JSONLogs,
		Output:    cmd.ErrOrStderr(),
	})
	if used := a.v.ConfigFileUsed(); used != "" {
		a.log.Debug("using config file", zap.String("file", used))
	}
	return nil
}

// openStore opens (or creates) the configured database.
func (a *app) openStore() (*sqlite.Store, error) {
	s, err := sqlite.New(a.cfg.DB)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %s", a.cfg.DB)
	}
	a.log.Debug("database opened", zap.String(logger.FieldDatabase, a.cfg.DB))
	return s, nil
}
