package command

import (
	"github.com/spf13/cobra"

	"github.com/coveychat/covey/internal/db"
	"github.com/coveychat/covey/internal/types"
)

// NewChannelsCmd lists the channel catalog.
func NewChannelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List the room's channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			channels, err := r.Channels()
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, channels)
			}
			for _, ch := range channels {
				mod := ""
				if ch.ModOnly {
					mod = " [mod-only]"
				}
				cmd.Printf("%s  %s (%s)%s\n", ch.ID, ch.Name, ch.Kind, mod)
			}
			return nil
		},
	}
}

// NewChannelAddCmd appends a channel-add system message.
func NewChannelAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel-add <name>",
		Short: "Add a channel to the room catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			voice, _ := cmd.Flags().GetBool("voice")
			modOnly, _ := cmd.Flags().GetBool("mod-only")

			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := types.NewChannelID()
			if err != nil {
				return err
			}
			kind := types.ChannelText
			if voice {
				kind = types.ChannelVoice
			}
			channel := types.Channel{ID: id, Name: args[0], Kind: kind, ModOnly: modOnly}

			msg, err := types.NewSystem(r.WriterKey(), types.ActionChannelAdd, types.SystemData{Channel: &channel}, r.Now())
			if err != nil {
				return err
			}
			if err := r.Append(msg); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, channel)
			}
			cmd.Printf("added channel %s (%s)\n", channel.Name, channel.ID)
			return nil
		},
	}
	cmd.Flags().Bool("voice", false, "create a voice channel")
	cmd.Flags().Bool("mod-only", false, "restrict posting to admins")
	return cmd
}

// NewStateCmd dumps the derived room state.
func NewStateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the derived room state",
		RunE: func(cmd *cobra.Command, args []string) error {
			offline, _ := cmd.Flags().GetBool("offline")
			if offline {
				return offlineState(cmd)
			}

			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			state, err := r.State()
			if err != nil {
				return err
			}
			if err := refreshCache(cmd, r); err != nil {
				return err
			}
			return printJSON(cmd, state)
		},
	}
	cmd.Flags().Bool("offline", false, "read the cached state rows without merging logs")
	return cmd
}

// offlineState dumps the cached state rows as last written by refreshCache.
func offlineState(cmd *cobra.Command) error {
	conn, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	out := make(map[string]string)
	for _, key := range []string{"owner", "room_name", "profile", "admins", "channels", "room_bans", "room_kicks", "channel_bans", "emoji"} {
		value, err := db.StateValue(conn, key)
		if err != nil {
			return err
		}
		if value != "" {
			out[key] = value
		}
	}
	return printJSON(cmd, out)
}
