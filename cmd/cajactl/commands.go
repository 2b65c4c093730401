package main

import (
	"errors"

	"labcaja/internal/cashdesk"
	"labcaja/internal/model"
	"labcaja/internal/money"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func statusCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "actual",
		Short: "Muestra la sesión abierta de la caja y su resumen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := g.loadedDesk(cmd.Context())
			if err != nil {
				return err
			}
			st := d.State()
			if st.Current == nil {
				return g.printer(cmd).print(statusView{RegisterID: st.RegisterID.String()})
			}
			sum, err := d.RefreshSummary(cmd.Context())
			if err != nil {
				return err
			}
			return g.printer(cmd).print(statusView{
				RegisterID: st.RegisterID.String(),
				Session:    newSessionView(st.Current),
				Summary:    newSummaryView(sum),
			})
		},
	}
}

func openCmd(g *globalFlags) *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "abrir",
		Short: "Abre una sesión con el efectivo inicial contado",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initial, err := money.Parse(amount)
			if err != nil {
				return err
			}
			d, err := g.loadedDesk(cmd.Context())
			if err != nil {
				return err
			}
			sess, err := d.Open(cmd.Context(), initial)
			if err != nil {
				return err
			}
			return g.printer(cmd).print(newSessionView(sess))
		},
	}
	cmd.Flags().StringVar(&amount, "monto", "", "monto inicial")
	_ = cmd.MarkFlagRequired("monto")
	return cmd
}

func closeCmd(g *globalFlags) *cobra.Command {
	var (
		declared     string
		observations string
	)
	cmd := &cobra.Command{
		Use:   "cerrar",
		Short: "Cierra la sesión abierta con el arqueo declarado",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := money.Parse(declared)
			if err != nil {
				return err
			}
			d, err := g.loadedDesk(cmd.Context())
			if err != nil {
				return err
			}
			if !d.CanAcceptMovements() {
				return cashdesk.ErrNoOpenSession
			}
			// The summary must be known before closing so the reconciliation can be reported.
			if _, err := d.RefreshSummary(cmd.Context()); err != nil {
				return err
			}
			res, err := d.Close(cmd.Context(), amount, optional(observations))
			if err != nil {
				return err
			}
			return g.printer(cmd).print(newCloseView(res))
		},
	}
	cmd.Flags().StringVar(&declared, "declarado", "", "monto declarado en el arqueo")
	cmd.Flags().StringVar(&observations, "observaciones", "", "observaciones del cierre")
	_ = cmd.MarkFlagRequired("declarado")
	return cmd
}

// movementFlags are shared by deposits, withdrawals and liquidation deposits.
type movementFlags struct {
	method       string
	amount       string
	concept      string
	observations string
	destination  string
	clinical     bool
}

func (f *movementFlags) bind(cmd *cobra.Command, clinical bool) {
	cmd.Flags().StringVar(&f.method, "medio", string(model.Cash), "medio de pago: CASH, DEBIT_CARD, CREDIT_CARD, TRANSFER o QR")
	cmd.Flags().StringVar(&f.amount, "monto", "", "monto")
	cmd.Flags().StringVar(&f.concept, "concepto", "", "concepto")
	cmd.Flags().StringVar(&f.observations, "observaciones", "", "observaciones")
	cmd.Flags().StringVar(&f.destination, "destino", string(model.BranchRegister), "destino: BRANCH_REGISTER o MAIN_REGISTER")
	if clinical {
		cmd.Flags().BoolVar(&f.clinical, "atencion", false, "el depósito proviene de una atención")
	}
	_ = cmd.MarkFlagRequired("monto")
	_ = cmd.MarkFlagRequired("concepto")
}

func (f *movementFlags) input() (cashdesk.MovementInput, error) {
	method, err := model.ParsePaymentMethod(f.method)
	if err != nil {
		return cashdesk.MovementInput{}, err
	}
	dest, err := model.ParseDestination(f.destination)
	if err != nil {
		return cashdesk.MovementInput{}, err
	}
	amount, err := money.Parse(f.amount)
	if err != nil {
		return cashdesk.MovementInput{}, err
	}
	return cashdesk.MovementInput{
		PaymentMethod:         method,
		Amount:                amount,
		Concept:               f.concept,
		Observations:          optional(f.observations),
		Destination:           dest,
		FromClinicalAttention: f.clinical,
	}, nil
}

func depositCmd(g *globalFlags) *cobra.Command {
	f := &movementFlags{}
	cmd := &cobra.Command{
		Use:   "deposito",
		Short: "Registra un depósito en la sesión abierta",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}
			d, err := g.loadedDesk(cmd.Context())
			if err != nil {
				return err
			}
			m, err := d.RecordDeposit(cmd.Context(), in)
			if err != nil {
				return err
			}
			return g.printer(cmd).print(newMovementView(*m))
		},
	}
	f.bind(cmd, true)
	return cmd
}

func withdrawCmd(g *globalFlags) *cobra.Command {
	f := &movementFlags{}
	cmd := &cobra.Command{
		Use:   "extraccion",
		Short: "Registra una extracción de la sesión abierta",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}
			d, err := g.loadedDesk(cmd.Context())
			if err != nil {
				return err
			}
			m, err := d.RecordWithdrawal(cmd.Context(), in)
			if err != nil {
				return err
			}
			return g.printer(cmd).print(newMovementView(*m))
		},
	}
	f.bind(cmd, false)
	return cmd
}

func liquidationCmd(g *globalFlags) *cobra.Command {
	f := &movementFlags{}
	var liquidationID string
	cmd := &cobra.Command{
		Use:   "liquidacion",
		Short: "Registra el depósito que salda una liquidación",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}
			d, err := g.loadedDesk(cmd.Context())
			if err != nil {
				return err
			}
			m, err := d.RecordLiquidationDeposit(cmd.Context(), in, liquidationID)
			if err != nil {
				return err
			}
			return g.printer(cmd).print(newMovementView(*m))
		},
	}
	f.bind(cmd, false)
	cmd.Flags().StringVar(&liquidationID, "liquidacion", "", "ID de la liquidación")
	_ = cmd.MarkFlagRequired("liquidacion")
	return cmd
}

func cancelCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "anular <movement-id>",
		Short: "Anula un movimiento de la sesión abierta",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return errors.New("ID de movimiento inválido")
			}
			d, err := g.loadedDesk(cmd.Context())
			if err != nil {
				return err
			}
			if err := d.CancelMovement(cmd.Context(), id); err != nil {
				return err
			}
			sum, err := d.RefreshSummary(cmd.Context())
			if err != nil {
				return err
			}
			return g.printer(cmd).print(newSummaryView(sum))
		},
	}
}

func movementsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "movimientos",
		Short: "Lista los movimientos de la sesión abierta",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := g.loadedDesk(cmd.Context())
			if err != nil {
				return err
			}
			cur := d.State().Current
			if cur == nil {
				return cashdesk.ErrNoOpenSession
			}
			ms, err := d.ListMovements(cmd.Context(), cur.ID)
			if err != nil {
				return err
			}
			views := make([]movementView, 0, len(ms))
			for _, m := range ms {
				views = append(views, newMovementView(m))
			}
			return g.printer(cmd).print(views)
		},
	}
}

func summaryCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resumen",
		Short: "Muestra el resumen de la sesión abierta",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := g.loadedDesk(cmd.Context())
			if err != nil {
				return err
			}
			if d.State().Current == nil {
				return cashdesk.ErrNoOpenSession
			}
			sum, err := d.RefreshSummary(cmd.Context())
			if err != nil {
				return err
			}
			return g.printer(cmd).print(newSummaryView(sum))
		},
	}
}

func transferCmd(g *globalFlags) *cobra.Command {
	var (
		amount string
		source string
	)
	cmd := &cobra.Command{
		Use:   "vaciar",
		Short: "Vacía una caja en la caja principal de la sucursal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := money.Parse(amount)
			if err != nil {
				return err
			}
			d, err := g.desk()
			if err != nil {
				return err
			}
			var res *cashdesk.TransferResult
			if source == "" {
				res, err = d.Transfer(cmd.Context(), value)
			} else {
				id, perr := uuid.Parse(source)
				if perr != nil {
					return errors.New("ID de registradora inválido")
				}
				res, err = d.TransferFrom(cmd.Context(), id, value)
			}
			if err != nil {
				return err
			}
			return g.printer(cmd).print(newTransferView(res))
		},
	}
	cmd.Flags().StringVar(&amount, "monto", "", "monto a transferir")
	cmd.Flags().StringVar(&source, "origen", "", "ID de la caja de origen (por defecto --register)")
	_ = cmd.MarkFlagRequired("monto")
	return cmd
}

func registerCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "registradora [register-id]",
		Short: "Muestra el total confirmado de una caja",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := g.desk()
			if err != nil {
				return err
			}
			id := d.RegisterID()
			if len(args) == 1 {
				if id, err = uuid.Parse(args[0]); err != nil {
					return errors.New("ID de registradora inválido")
				}
			}
			total, err := d.RefreshRegister(cmd.Context(), id)
			if err != nil {
				return err
			}
			return g.printer(cmd).print(newRegisterView(id, total))
		},
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
