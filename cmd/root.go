package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/agubarev/chapi/internal/config"
	"github.com/agubarev/chapi/internal/core"
	"github.com/agubarev/chapi/pkg/fault"
	"github.com/agubarev/chapi/pkg/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// session is what a single invocation runs with
type session struct {
	viper      *viper.Viper
	configFile string
	core       *core.Core
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	s := &session{viper: config.New()}

	rootCmd := &cobra.Command{
		Use:   "chapi",
		Short: "Users, groups and applications kept consistent with each other.",
		Long: `Every write validates the references it makes and updates the
opposite side of each relationship: organization and group membership,
group hierarchy and application access.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: s.open,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&s.configFile, "config", "", "config file (default is $HOME/.chapi.yaml)")
	flags.String("backend", "", "store backend: bolt, badger or memory")
	flags.String("path", "", "store file or directory")
	flags.Bool("debug", false, "verbose logging")

	for key, flag := range map[string]string{
		"store.backend": "backend",
		"store.path":    "path",
		"log.debug":     "debug",
	} {
		if err := s.viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(
		usersCommand(s),
		groupsCommand(s),
		applicationsCommand(s),
	)

	return rootCmd
}

func (s *session) open(cmd *cobra.Command, _ []string) error {
	conf, err := config.Load(s.viper, s.configFile)
	if err != nil {
		return err
	}

	logger, err := util.DefaultLogger(conf.Log.Debug, conf.Log.Dir)
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	if s.core, err = core.New(conf); err != nil {
		return err
	}

	s.core.SetLogger(logger)

	return s.core.Init(contextOf(cmd))
}

func (s *session) close() error {
	if s.core == nil {
		return nil
	}

	err := s.core.Close()
	s.core = nil

	return err
}

// run releases the core once fn is done, whatever its outcome
func (s *session) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() { err = multierr.Append(err, s.close()) }()

		return fn(cmd, args)
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

// Execute runs the command line and exits with 1 on failure
func Execute() {
	rootCmd := NewRootCommand()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error (%s): %s\n", fault.KindOf(err), err)
		os.Exit(1)
	}
}
