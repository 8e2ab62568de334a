package command

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coveychat/covey/internal/db"
	"github.com/coveychat/covey/internal/types"
)

// NewHistoryCmd pages backward through the merged view.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent room history",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			before, _ := cmd.Flags().GetUint64("before")
			offline, _ := cmd.Flags().GetBool("offline")
			channel, _ := cmd.Flags().GetString("channel")

			if offline {
				return offlineHistory(cmd, limit, channel)
			}

			r, err := openRoom(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			var beforeSeq *uint64
			if cmd.Flags().Changed("before") {
				beforeSeq = &before
			}

			page, err := r.HistoryPage(limit, beforeSeq)
			if err != nil {
				return err
			}
			if err := refreshCache(cmd, r); err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, page)
			}
			for _, entry := range page.Messages {
				renderEntry(cmd, entry)
			}
			if page.NextBeforeSeq != nil {
				cmd.Printf("-- older: --before %d\n", *page.NextBeforeSeq)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "page size")
	cmd.Flags().Uint64("before", 0, "exclusive upper seq bound")
	cmd.Flags().Bool("offline", false, "read the local cache without merging logs")
	cmd.Flags().String("channel", "", "restrict to one channel id")
	return cmd
}

// offlineHistory serves the most recent cached rows without touching the
// logs, for use when the room directory is only partially replicated.
func offlineHistory(cmd *cobra.Command, limit int, channel string) error {
	conn, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	var channelID *string
	if channel != "" {
		channelID = &channel
	}
	entries, err := db.LatestMessages(conn, channelID, limit)
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(cmd, entries)
	}
	for _, entry := range entries {
		renderEntry(cmd, entry)
	}
	return nil
}

// NewWatchCmd tails the room live until interrupted.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Tail new room messages live",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := loadIdentity(cmd)
			if err != nil {
				return err
			}
			r, err := openWatchedRoom(cmd, id)
			if err != nil {
				return err
			}
			defer r.Close()

			unsubscribe, err := r.Watch(func(entry types.ViewEntry) {
				renderEntry(cmd, entry)
			})
			if err != nil {
				return err
			}
			defer unsubscribe()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}
}
