package command

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coveychat/covey/internal/types"
)

// NewPostCmd appends a text message to this device's writer log.
func NewPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post <text>...",
		Short: "Post a text message to the room",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, _ := cmd.Flags().GetString("channel")
			name, _ := cmd.Flags().GetString("as")

			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			var channelID *string
			if channel != "" {
				channelID = &channel
			}

			// Authorization is a read against the projections, checked here
			// before the append; the engine itself never blocks a writer.
			ok, err := r.CanPost(r.WriterKey(), channel)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("not authorized to post in this channel")
			}

			msg, err := types.NewText(r.WriterKey(), name, strings.Join(args, " "), channelID, r.Now())
			if err != nil {
				return err
			}
			if err := r.Append(msg); err != nil {
				return err
			}
			if err := refreshCache(cmd, r); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, msg)
			}
			cmd.Printf("posted %s\n", msg.ID)
			return nil
		},
	}
	cmd.Flags().String("channel", "", "channel id to post into")
	cmd.Flags().String("as", "", "display name to attach")
	return cmd
}

// NewAddWriterCmd appends the membership mutation admitting another device.
func NewAddWriterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-writer <writer-key>",
		Short: "Admit another device's writer log into the room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := requireArg(args, "writer key")
			if err != nil {
				return err
			}

			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.AddWriter(key); err != nil {
				return err
			}

			writers, err := r.Writers()
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]any{"writers": writers})
			}
			cmd.Printf("writer set now has %d members\n", len(writers))
			return nil
		},
	}
}
