// Package tui renders the progress view shown while long cluster operations
// run in an interactive terminal.
//
// The view is a Bubble Tea program with a spinner, the operation title and the
// most recent log line. Log lines arrive on the channel returned by
// logging.InitForTUI, so nothing else writes to the terminal while the
// program owns it.
//
// Usage:
//
//	logs := logging.InitForTUI(logging.LevelInfo)
//	err := tui.Run(ctx, "Creating cluster e2e", logs, func(ctx context.Context) error {
//		return mgr.Create(ctx, cluster.CreateOptions{})
//	})
//	logging.CloseTUIChannel()
package tui
