// cmd/cajaadmin: operational tasks of the labcaja backend.
// Uso:
//
//	JWT_SECRET=... go run ./cmd/cajaadmin token --operator <uuid> --rol cajero
//	go run ./cmd/cajaadmin seed
//	go run ./cmd/cajaadmin dlq replay --queue jobs:cierre_caja
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cajaadmin",
		Short:         "Tareas de administración del backend de caja",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(tokenCmd(), seedCmd(), dlqCmd())
	return cmd
}
