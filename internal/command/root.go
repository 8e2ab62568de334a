package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "covey"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Covey - peer-to-peer chat rooms over per-device logs",
		Long:          "Covey merges per-device append-only logs into one shared room timeline.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("room", ".", "room directory")
	cmd.PersistentFlags().String("identity", "", "identity key file (default <room>/identity.json)")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().String("passphrase", "", "encrypt the identity key file with this passphrase")

	cmd.AddCommand(
		NewInitCmd(),
		NewJoinCmd(),
		NewInviteCmd(),
		NewPostCmd(),
		NewShowCmd(),
		NewHistoryCmd(),
		NewWatchCmd(),
		NewAddWriterCmd(),
		NewChannelsCmd(),
		NewChannelAddCmd(),
		NewStateCmd(),
		NewCallStartCmd(),
		NewCallEndCmd(),
		NewCallsCmd(),
	)

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd(Version).Execute()
}
