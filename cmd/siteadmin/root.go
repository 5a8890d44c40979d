package main

import (
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/dopemusic/dopesite/config"
	"github.com/dopemusic/dopesite/models"
	"github.com/dopemusic/dopesite/utils"
)

// app is the state shared by all subcommands.
type app struct {
	configPath string
	verbose    bool

	cfg config.AppConfig
	db  *gorm.DB
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "siteadmin",
		Short:         "Administer the Dope Music site",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "JSON config file (default config/config.json)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log to stdout")

	root.AddCommand(newUserCmd(a), newAssetsCmd(a), newMigrateCmd(a))
	return root
}

func (a *app) open() error {
	if a.configPath != "" {
		cfg, err := config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	} else {
		a.cfg = config.Load()
	}
	if a.verbose {
		if err := utils.InitLogger(a.cfg); err != nil {
			return err
		}
	}

	db, err := config.InitDatabase(a.cfg, models.All()...)
	if err != nil {
		return err
	}
	a.db = db
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
