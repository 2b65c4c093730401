package main

import (
	"time"

	"labcaja/internal/config"
	"labcaja/internal/infra"
	"labcaja/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm/clause"
)

var (
	demoBranch    = uuid.MustParse("6f1c1f52-9a57-4a40-8d8b-6d1e2f0a7c00")
	demoMain      = uuid.MustParse("6f1c1f52-9a57-4a40-8d8b-6d1e2f0a7c01")
	demoReception = uuid.MustParse("6f1c1f52-9a57-4a40-8d8b-6d1e2f0a7c11")
)

// seedCmd creates (or renames) a demo branch with its main register and one reception register.
func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Crea las registradoras de demostración",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadStorage()
			if err != nil {
				return err
			}
			db, err := infra.NewDatabase(cfg.DatabaseURL)
			if err != nil {
				return err
			}

			registers := []model.CashRegister{
				{ID: demoMain, BranchID: demoBranch, DisplayName: "Caja principal", Main: true, UpdatedAt: time.Now()},
				{ID: demoReception, BranchID: demoBranch, DisplayName: "Caja recepción", UpdatedAt: time.Now()},
			}
			// Totals are never reset: re-running the seed only refreshes names.
			err = db.WithContext(cmd.Context()).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"display_name", "main"}),
				}).
				Create(&registers).Error
			if err != nil {
				return err
			}
			for _, r := range registers {
				log.Info().Str("id", r.ID.String()).Str("nombre", r.DisplayName).Bool("principal", r.Main).Msg("registradora lista")
			}
			return nil
		},
	}
}
