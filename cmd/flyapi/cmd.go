package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cosarberk/flyapi"
)

const (
	flagConfig  = "config"
	flagVerbose = "verbose"
)

// options carries what every subcommand needs.
type options struct {
	v      *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (o *options) logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(o.errOut)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if o.v.GetBool(flagVerbose) {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.WarnLevel)
	}
	return l
}

func (o *options) loadConfig() (*flyapi.FileConfig, error) {
	path := o.v.GetString(flagConfig)
	if path == "" {
		return nil, fmt.Errorf("no config file given, use --%s", flagConfig)
	}
	return flyapi.LoadConfig(path)
}

// NewDefaultFlyapiCommand creates the `flyapi` command with default arguments.
func NewDefaultFlyapiCommand() *cobra.Command {
	return NewFlyapiCommand(os.Stdin, os.Stdout, os.Stderr)
}

// NewFlyapiCommand builds the root command writing to the given streams.
func NewFlyapiCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	o := &options{v: viper.New(), in: in, out: out, errOut: errOut}

	cmds := &cobra.Command{
		Use:           "flyapi",
		Short:         "Inspect and call the endpoints of a flyapi registry",
		SilenceUsage:  true,
		SilenceErrors: false,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmds.SetIn(in)
	cmds.SetOut(out)
	cmds.SetErr(errOut)

	flags := cmds.PersistentFlags()
	flags.StringP(flagConfig, "c", "flyapi.yaml", "Path to the config file (yaml, json or toml)")
	flags.BoolP(flagVerbose, "v", false, "Log requests and responses")
	_ = o.v.BindPFlags(flags)
	o.v.SetEnvPrefix(flyapi.EnvPrefix)
	o.v.AutomaticEnv()

	cmds.AddCommand(
		newVersionCommand(o),
		newEndpointsCommand(o),
		newCheckCommand(o),
		newCallCommand(o),
	)
	return cmds
}

func newVersionCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(o.out, flyapi.GetVersion())
		},
	}
}
