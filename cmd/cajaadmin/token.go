package main

import (
	"fmt"
	"time"

	"labcaja/internal/config"
	"labcaja/internal/middleware"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		operator string
		username string
		rol      string
		branch   string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un token JWT para un operador de caja",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if _, err := uuid.Parse(operator); err != nil {
				return fmt.Errorf("--operator debe ser un UUID: %w", err)
			}
			switch rol {
			case middleware.RoleCajero, middleware.RoleSupervisor, middleware.RoleAdministrador:
			default:
				return fmt.Errorf("rol desconocido: %q", rol)
			}
			if ttl == 0 {
				ttl = time.Duration(cfg.JWTExpirationHours) * time.Hour
			}
			tok, err := middleware.IssueToken(cfg.JWTSecret, middleware.JWTClaims{
				OperatorID: operator,
				Username:   username,
				Rol:        rol,
				BranchID:   branch,
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "ID del operador (UUID)")
	cmd.Flags().StringVar(&username, "username", "", "nombre de usuario")
	cmd.Flags().StringVar(&rol, "rol", middleware.RoleCajero, "cajero | supervisor | administrador")
	cmd.Flags().StringVar(&branch, "branch", "", "ID de sucursal")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "vigencia del token (por defecto JWT_EXPIRATION_HOURS)")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
