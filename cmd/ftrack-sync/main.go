// Command ftrack-sync runs the tracker/hub synchronization services:
// the processor (tracker to hub), the transmitter (hub to tracker),
// the leecher (tracker event relay), and a one-shot full project
// pull.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	flagConfig string
	flagDebug  bool
)

func main() {
	root := &cobra.Command{
		Use:           "ftrack-sync",
		Short:         "Synchronize a production tracker with the hub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to ftrack-sync.yaml")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(newProcessorCmd())
	root.AddCommand(newTransmitterCmd())
	root.AddCommand(newLeecherCmd())
	root.AddCommand(newPullCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger: JSON records to stderr and,
// when a log path is configured, to a size-rotated file.
func newLogger(logPath string) *slog.Logger {
	var w io.Writer = os.Stderr
	if logPath != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
