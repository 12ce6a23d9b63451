package cmd

import (
	"soundscene/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the SoundScene HTTP server",
	Long:  `Starts the workflow API server, the autosave beacon listener and the optional drop-folder watcher.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
