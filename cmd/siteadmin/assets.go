package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dopemusic/dopesite/assets"
	"github.com/dopemusic/dopesite/store"
	"github.com/dopemusic/dopesite/utils"
)

func newAssetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Maintain uploaded images",
	}
	cmd.AddCommand(newAssetsSweepCmd(a))
	return cmd
}

func newAssetsSweepCmd(a *app) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove upload files no post references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("grace") {
				grace = time.Duration(a.cfg.OrphanGraceMinutes) * time.Minute
			}
			am, err := assets.NewManager(a.cfg.UploadDir, 0, utils.Logger.With(zap.String("component", "assets")))
			if err != nil {
				return err
			}
			removed, err := utils.SweepOrphans(cmd.Context(), store.NewPostStore(a.db), am, grace)
			if err != nil {
				return err
			}
			for _, name := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s)\n", len(removed))
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", time.Hour, "keep orphans younger than this (default from ORPHAN_GRACE_MINUTES)")
	return cmd
}
