package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coveychat/covey/internal/db"
)

// NewShowCmd looks one message up in the local cache by id.
func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <message-id>",
		Short: "Show one cached message by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			entry, err := db.MessageByID(conn, args[0])
			if err != nil {
				return err
			}
			if entry == nil {
				return fmt.Errorf("message %s not in the cache; run history first", args[0])
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, entry)
			}
			renderEntry(cmd, *entry)
			return nil
		},
	}
}
