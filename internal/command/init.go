package command

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/coveychat/covey/internal/invite"
	"github.com/coveychat/covey/internal/room"
	"github.com/coveychat/covey/internal/types"
)

// NewInitCmd creates a new room in the room directory.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new room with this device as creator",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")

			id, err := loadIdentity(cmd)
			if err != nil {
				return err
			}
			r, err := room.Create(room.Config{
				Dir:      roomDir(cmd),
				Identity: id,
				Now:      func() int64 { return time.Now().UnixMilli() },
			})
			if err != nil {
				return err
			}
			defer r.Close()

			if name != "" {
				msg, err := types.NewSystem(r.WriterKey(), types.ActionRoomRename, types.SystemData{Name: &name}, r.Now())
				if err != nil {
					return err
				}
				if err := r.Append(msg); err != nil {
					return err
				}
			}

			link, err := invite.Encode(r.Key())
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]string{
					"writer_key":  r.WriterKey(),
					"fingerprint": id.Fingerprint(),
					"invite":      link,
				})
			}
			cmd.Printf("room created\nwriter: %s (%s)\ninvite: %s\n", r.WriterKey(), id.Fingerprint(), link)
			return nil
		},
	}
	cmd.Flags().String("name", "", "initial room name")
	return cmd
}

// NewJoinCmd initializes a room directory from an invite link.
func NewJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <invite>",
		Short: "Join a room from an invite link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomKey, err := invite.Parse(args[0])
			if err != nil {
				return err
			}
			id, err := loadIdentity(cmd)
			if err != nil {
				return err
			}
			r, err := room.Join(room.Config{
				Dir:      roomDir(cmd),
				Identity: id,
				RoomKey:  roomKey,
				Now:      func() int64 { return time.Now().UnixMilli() },
			})
			if err != nil {
				return err
			}
			defer r.Close()

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]string{
					"writer_key":  r.WriterKey(),
					"fingerprint": id.Fingerprint(),
				})
			}
			cmd.Printf("joined room\nwriter: %s (%s)\n", r.WriterKey(), id.Fingerprint())
			cmd.Println("ask an existing member to add-writer this key before posting")
			return nil
		},
	}
}

// NewInviteCmd prints the room's invite link.
func NewInviteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invite",
		Short: "Print the room invite link",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			link, err := invite.Encode(r.Key())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]string{"invite": link})
			}
			cmd.Println(link)
			return nil
		},
	}
}
