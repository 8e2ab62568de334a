package command

import (
	"github.com/spf13/cobra"
)

// NewCallStartCmd opens a call session in the room.
func NewCallStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call-start",
		Short: "Start a call session",
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, _ := cmd.Flags().GetString("channel")

			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			callID, err := r.StartCall(channel)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]string{"call_id": callID})
			}
			cmd.Printf("call started: %s\n", callID)
			return nil
		},
	}
	cmd.Flags().String("channel", "", "channel id hosting the call")
	return cmd
}

// NewCallEndCmd closes a call session.
func NewCallEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call-end <call-id>",
		Short: "End a call session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.EndCall(args[0]); err != nil {
				return err
			}
			cmd.Printf("call ended: %s\n", args[0])
			return nil
		},
	}
}

// NewCallsCmd lists calls currently open.
func NewCallsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calls",
		Short: "List active call sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			calls, err := r.ActiveCalls()
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, calls)
			}
			for id, channel := range calls {
				if channel == "" {
					cmd.Println(id)
					continue
				}
				cmd.Printf("%s (in %s)\n", id, channel)
			}
			return nil
		},
	}
}
