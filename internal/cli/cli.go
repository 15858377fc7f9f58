// Package cli defines the redbridge command tree and turns argv into a
// Parsed invocation for the app runner.
package cli

import (
	"io"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandServe   Command = "serve"
	CommandCall    Command = "call"
	CommandStatus  Command = "status"
	CommandWatch   Command = "watch"
	CommandProbe   Command = "probe"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	// Args holds positional arguments for call: the bridge command followed
	// by its JSON arguments.
	Args    []string
	NoReply bool

	// Addr and Service select the probe target.
	Addr    string
	Service string
}

// Parse runs the cobra tree over args. Help requested by flag or by the help
// command is written to out and reported through ShowHelp.
func Parse(args []string, out io.Writer) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	root := newRoot(&parsed)
	root.SetOut(out)
	root.SetErr(io.Discard)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

// HelpText renders root usage for error output.
func HelpText() string {
	return newRoot(&Parsed{}).UsageString()
}

func newRoot(parsed *Parsed) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:           "redbridge",
		Short:         "Bridge a local host process to Redis over a unix socket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				set(parsed, CommandVersion)
				return nil
			}
			return cmd.Help()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVar(&showVersion, "version", false, "Show version")
	root.PersistentFlags().StringVar(&parsed.ConfigPath, "config", "", "Config file path (default: $XDG_CONFIG_HOME/redbridge/config.jsonc)")

	root.AddCommand(
		simple(parsed, CommandServe, "Connect to Redis and serve the host socket"),
		simple(parsed, CommandStatus, "Print connection state of the running bridge"),
		simple(parsed, CommandWatch, "Stream bridge events as JSON lines"),
		simple(parsed, CommandDoctor, "Run configuration and environment checks"),
		simple(parsed, CommandVersion, "Print version information"),
		callCommand(parsed),
		probeCommand(parsed),
	)
	return root
}

func set(parsed *Parsed, command Command) {
	parsed.Command = command
	parsed.ShowHelp = false
}

func simple(parsed *Parsed, command Command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(command),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			set(parsed, command)
			return nil
		},
	}
}

func callCommand(parsed *Parsed) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <command> [json-arg...]",
		Short: "Forward one operation to the running bridge",
		Long: `Forward one operation to the running bridge.

Each argument is sent as JSON when it parses as JSON and as a plain
string otherwise:

  redbridge call execute get '["greeting"]'
  redbridge call publish news '{"id":1}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			set(parsed, CommandCall)
			parsed.Args = append([]string(nil), args...)
			return nil
		},
	}
	cmd.Flags().BoolVar(&parsed.NoReply, "no-reply", false, "Do not wait for the operation result")
	return cmd
}

func probeCommand(parsed *Parsed) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Query the bridge gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			set(parsed, CommandProbe)
			return nil
		},
	}
	cmd.Flags().StringVar(&parsed.Addr, "addr", "", "Health address (default: health.listen from config)")
	cmd.Flags().StringVar(&parsed.Service, "service", "", "Health service name (empty means overall)")
	return cmd
}
