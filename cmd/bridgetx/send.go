package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bridgetx/internal/blockchain"
	"github.com/rovshanmuradov/bridgetx/internal/blockchain/solbc"
	"github.com/rovshanmuradov/bridgetx/internal/logger"
	"github.com/rovshanmuradov/bridgetx/internal/transaction"
	"github.com/rovshanmuradov/bridgetx/internal/ui"
	"github.com/rovshanmuradov/bridgetx/internal/ui/component"
	"github.com/rovshanmuradov/bridgetx/internal/wallet"
)

type sendOptions struct {
	txPath      string
	commitment  string
	signers     []string
	tui         bool
	metricsAddr string
	recordPath  string
}

func newSendCmd(global *globalOptions) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Estimate fees, sign, submit and confirm a transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd, global, opts)
		},
	}
	cmd.Flags().StringVar(&opts.txPath, "tx", "-", "encoded unsigned transaction file, - for stdin")
	cmd.Flags().StringVar(&opts.commitment, "commitment", "", "processed, confirmed or finalized (default from config)")
	cmd.Flags().StringArrayVar(&opts.signers, "signer", nil, "co-signer keypair file, repeatable")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "show the progress view")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	cmd.Flags().StringVar(&opts.recordPath, "record", "", "append the outcome to this CSV file")
	return cmd
}

func runSend(cmd *cobra.Command, global *globalOptions, opts *sendOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var logBuf *logger.LogBuffer
	if opts.tui {
		logBuf = logger.NewLogBuffer(500)
	}
	a, err := newApp(global, logBuf)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.ready(ctx); err != nil {
		return err
	}

	req, err := buildRequest(cmd.InOrStdin(), opts)
	if err != nil {
		return err
	}
	payer, err := a.loadWallet()
	if err != nil {
		return err
	}

	metricsAddr := opts.metricsAddr
	if metricsAddr == "" {
		metricsAddr = a.cfg.MetricsAddr
	}
	a.serveMetrics(ctx, metricsAddr)

	recordPath := opts.recordPath
	if recordPath == "" {
		recordPath = a.cfg.RecordFile
	}
	rec, err := newRecorder(recordPath, a.logger)
	if err != nil {
		return err
	}
	defer rec.close()

	a.logger.Info("Submitting transaction",
		zap.String("payer", payer.PublicKey().String()),
		zap.Int("co_signers", len(req.CoSigners)))

	var sig solana.Signature
	if opts.tui {
		sig, err = sendWithProgress(ctx, a, payer, req, rec)
	} else {
		sub := transaction.NewSubmitter(a.client, payer, submitterConfig(a.cfg), a.logger,
			transaction.WithMetrics(a.metrics),
			transaction.WithObserver(rec.observe),
		)
		sig, err = sub.SignAndSend(ctx, req)
	}
	rec.write(sig, err)

	if err != nil {
		printFailure(cmd.ErrOrStderr(), a.logger, err)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), sig.String())
	return nil
}

func buildRequest(stdin io.Reader, opts *sendOptions) (transaction.Request, error) {
	tx, err := readTransaction(opts.txPath, stdin)
	if err != nil {
		return transaction.Request{}, err
	}
	req := transaction.Request{Transaction: tx}

	switch opts.commitment {
	case "":
	case "processed", "confirmed", "finalized":
		req.Commitment = solanarpc.CommitmentType(opts.commitment)
	default:
		return transaction.Request{}, fmt.Errorf("invalid commitment %q", opts.commitment)
	}

	for _, path := range opts.signers {
		w, err := wallet.LoadKeypairFile(path)
		if err != nil {
			return transaction.Request{}, fmt.Errorf("co-signer: %w", err)
		}
		req.CoSigners = append(req.CoSigners, w)
	}
	return req, nil
}

// sendWithProgress runs the submission behind the progress view. Closing the
// view does not cancel the submission.
func sendWithProgress(
	ctx context.Context,
	a *app,
	payer *wallet.Wallet,
	req transaction.Request,
	rec *recorder,
) (solana.Signature, error) {
	bus := ui.NewStageBus(64)
	toView := bus.Observer()
	sub := transaction.NewSubmitter(a.client, payer, submitterConfig(a.cfg), a.logger,
		transaction.WithMetrics(a.metrics),
		transaction.WithObserver(func(ev transaction.Event) {
			rec.observe(ev)
			toView(ev)
		}),
	)

	variant := "legacy"
	if req.Transaction.Message.IsVersioned() {
		variant = "v0"
	}
	commitment := string(req.Commitment)
	if commitment == "" {
		commitment = a.cfg.Commitment
	}
	view := ui.NewProgress(bus.C(), component.HeaderInfo{
		Wallet:     payer.PublicKey().String(),
		Network:    a.cfg.Network,
		Commitment: commitment,
		Variant:    variant,
	}, a.logBuf)
	program := tea.NewProgram(view, tea.WithContext(ctx))

	type result struct {
		sig solana.Signature
		err error
	}
	done := make(chan result, 1)
	go func() {
		sig, err := sub.SignAndSend(ctx, req)
		program.Send(ui.DoneMsg{Signature: sig, Err: err})
		done <- result{sig: sig, err: err}
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		a.logger.Warn("Progress view stopped", zap.Error(err))
	}
	r := <-done
	if n := bus.Dropped(); n > 0 {
		a.logger.Debug("Progress view skipped stage updates", zap.Uint64("dropped", n))
	}
	return r.sig, r.err
}

// printFailure explains a failed submission on w.
func printFailure(w io.Writer, log *zap.Logger, err error) {
	var txErr *transaction.Error
	if !errors.As(err, &txErr) {
		return
	}
	analyzer := solbc.NewErrorAnalyzer(log)

	switch txErr.Kind {
	case transaction.KindSimulation:
		if len(txErr.Logs) > 0 || txErr.Detail != nil {
			a := analyzer.AnalyzeSimulation(&blockchain.SimulationResult{Err: txErr.Detail, Logs: txErr.Logs})
			fmt.Fprintln(w, a.Format())
			return
		}
		fmt.Fprintln(w, analyzer.AnalyzeRPCError(txErr.Err).Format())
	case transaction.KindSubmit:
		fmt.Fprintln(w, analyzer.AnalyzeRPCError(txErr.Err).Format())
	case transaction.KindExpired:
		fmt.Fprintln(w, "blockhash expired before confirmation, rebuild the transaction and retry")
	}
	if !txErr.Signature.IsZero() {
		fmt.Fprintln(w, "signature:", txErr.Signature.String())
	}
}

var recordHeader = []string{"time", "signature", "outcome", "kind", "resends", "unit_limit", "unit_price", "error"}

// recorder appends one CSV row per submission. A nil writer disables it.
type recorder struct {
	w   *logger.SafeCSVWriter
	log *zap.Logger

	mu      sync.Mutex
	resends int
	budget  *transaction.Budget
}

func newRecorder(path string, log *zap.Logger) (*recorder, error) {
	if path == "" {
		return &recorder{}, nil
	}
	w, err := logger.NewSafeCSVWriter(path, recordHeader)
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	return &recorder{w: w, log: log.With(zap.String("record_file", path))}, nil
}

func (r *recorder) observe(ev transaction.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Resends > r.resends {
		r.resends = ev.Resends
	}
	if ev.Budget != nil {
		r.budget = ev.Budget
	}
}

func (r *recorder) row(sig solana.Signature, err error) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome, kind, msg := "confirmed", "", ""
	if err != nil {
		outcome = "failed"
		msg = err.Error()
		if k := transaction.KindOf(err); k != 0 {
			kind = k.String()
		}
		var txErr *transaction.Error
		if errors.As(err, &txErr) && !txErr.Signature.IsZero() {
			sig = txErr.Signature
		}
	}
	sigText := ""
	if !sig.IsZero() {
		sigText = sig.String()
	}
	var limit, price string
	if r.budget != nil {
		limit = strconv.FormatUint(uint64(r.budget.UnitLimit), 10)
		price = strconv.FormatUint(r.budget.UnitPrice, 10)
	}
	return []string{
		time.Now().UTC().Format(time.RFC3339),
		sigText,
		outcome,
		kind,
		strconv.Itoa(r.resends),
		limit,
		price,
		msg,
	}
}

func (r *recorder) write(sig solana.Signature, err error) {
	if r.w == nil {
		return
	}
	if werr := r.w.WriteRecord(r.row(sig, err)); werr != nil {
		r.log.Warn("Failed to write outcome record", zap.Error(werr))
	}
}

func (r *recorder) close() {
	if r.w != nil {
		if err := r.w.Close(); err != nil {
			r.log.Warn("Failed to close record file", zap.Error(err))
		}
	}
}
