package main

import (
	"fmt"

	"labcaja/internal/config"
	"labcaja/internal/infra"
	"labcaja/internal/worker"

	"github.com/spf13/cobra"
)

func dlqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspecciona y reencola trabajos fallidos",
	}
	cmd.AddCommand(dlqLenCmd(), dlqReplayCmd())
	return cmd
}

func dlqLenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "len",
		Short: "Cantidad de trabajos en cada cola de fallidos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadStorage()
			if err != nil {
				return err
			}
			rdb, err := infra.NewRedis(cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			for _, q := range []string{worker.QueueClosingReport, worker.QueueEmail} {
				n, err := rdb.LLen(cmd.Context(), worker.DLQPrefix+q).Result()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", q, n)
			}
			return nil
		},
	}
}

func dlqReplayCmd() *cobra.Command {
	var (
		queue string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Reencola los trabajos fallidos de una cola",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch queue {
			case worker.QueueClosingReport, worker.QueueEmail:
			default:
				return fmt.Errorf("cola desconocida: %q", queue)
			}
			cfg, err := config.LoadStorage()
			if err != nil {
				return err
			}
			rdb, err := infra.NewRedis(cfg.RedisURL)
			if err != nil {
				return err
			}
			defer rdb.Close()

			moved, err := worker.Replay(cmd.Context(), rdb, queue, limit)
			fmt.Fprintf(cmd.OutOrStdout(), "%d trabajos reencolados en %s\n", moved, queue)
			return err
		},
	}
	cmd.Flags().StringVar(&queue, "queue", worker.QueueClosingReport, "cola de origen")
	cmd.Flags().IntVar(&limit, "limit", 100, "máximo de trabajos a reencolar")
	return cmd
}
