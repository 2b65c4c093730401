// Command cajactl drives a cash register session against the labcaja backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"labcaja/internal/apierror"
	"labcaja/internal/cashdesk"
	"labcaja/internal/client"
	"labcaja/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	output     string
	registerID string
	operatorID string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errorText(err))
		os.Exit(1)
	}
}

// errorText prefers the message meant for the operator; local failures (flags, parsing,
// config) are printed as they are.
func errorText(err error) string {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apierror.UserMessage(err)
	}
	return err.Error()
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "cajactl",
		Short:         "Caja de recepción: sesiones, movimientos y vaciado de registradoras",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := newPrinter(g.output, cmd.OutOrStdout())
			return err
		},
	}

	cmd.PersistentFlags().StringVarP(&g.output, "output", "o", "json", "formato de salida: json o yaml")
	cmd.PersistentFlags().StringVar(&g.registerID, "register", "", "ID de la caja (reemplaza CAJA_REGISTER_ID)")
	cmd.PersistentFlags().StringVar(&g.operatorID, "operator", "", "ID del operador (reemplaza CAJA_OPERATOR_ID)")

	cmd.AddCommand(
		statusCmd(g),
		openCmd(g),
		closeCmd(g),
		depositCmd(g),
		withdrawCmd(g),
		liquidationCmd(g),
		cancelCmd(g),
		movementsCmd(g),
		summaryCmd(g),
		transferCmd(g),
		registerCmd(g),
	)
	return cmd
}

// desk builds a Desk for the configured register. Flags win over the environment.
func (g *globalFlags) desk() (*cashdesk.Desk, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.registerID != "" {
		cfg.RegisterID = g.registerID
	}
	if g.operatorID != "" {
		cfg.OperatorID = g.operatorID
	}

	registerID, err := uuid.Parse(cfg.RegisterID)
	if err != nil {
		return nil, fmt.Errorf("register ID inválido %q: %w", cfg.RegisterID, err)
	}
	operatorID, err := uuid.Parse(cfg.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("operator ID inválido %q: %w", cfg.OperatorID, err)
	}

	t := client.NewHTTPTransport(client.Options{
		BaseURL: cfg.APIURL,
		Token:   cfg.Token,
		Timeout: cfg.HTTPTimeout,
	})
	return cashdesk.NewDesk(t, registerID, operatorID), nil
}

// loadedDesk builds the desk and loads the register's current session.
func (g *globalFlags) loadedDesk(ctx context.Context) (*cashdesk.Desk, error) {
	d, err := g.desk()
	if err != nil {
		return nil, err
	}
	if _, err := d.LoadCurrent(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (g *globalFlags) printer(cmd *cobra.Command) *printer {
	p, _ := newPrinter(g.output, cmd.OutOrStdout())
	return p
}
