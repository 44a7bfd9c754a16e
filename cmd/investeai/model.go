package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/newthinker/investeai/internal/app"
	"github.com/spf13/cobra"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage model files in the configured store",
}

var modelListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List model files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		store, err := app.NewModelStore(cfg)
		if err != nil {
			return err
		}

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		names, err := store.List(cmd.Context(), prefix)
		if err != nil {
			return fmt.Errorf("listing models: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(names) == 0 {
			fmt.Fprintln(w, "No model files found.")
			return nil
		}
		for _, name := range names {
			marker := " "
			if name == cfg.Backtest.ModelFile {
				marker = "*"
			}
			fmt.Fprintf(w, "%s %s\n", marker, name)
		}
		return nil
	},
}

var modelUploadName string

var modelUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Copy a local model file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		store, err := app.NewModelStore(cfg)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading model: %w", err)
		}

		name := modelUploadName
		if name == "" {
			name = filepath.Base(args[0])
		}
		if err := store.Write(cmd.Context(), name, data); err != nil {
			return fmt.Errorf("uploading model: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes)\n", name, len(data))
		return nil
	},
}

func init() {
	modelUploadCmd.Flags().StringVar(&modelUploadName, "name", "", "name in the store (default: file base name)")

	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelUploadCmd)
	rootCmd.AddCommand(modelCmd)
}
