package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alejandrodnm/parimut/config"
	"github.com/alejandrodnm/parimut/internal/adapters/notify"
	"github.com/alejandrodnm/parimut/internal/adapters/storage"
	"github.com/alejandrodnm/parimut/internal/application/engine"
	"github.com/alejandrodnm/parimut/internal/domain"
	"github.com/alejandrodnm/parimut/internal/ports"
)

const usage = `usage: parimut [flags] <command> [args]

commands:
  create <question> <close-rfc3339> <fee-bps> [resolver]   crear mercado (authority = -as)
  deposit <owner> <amount>                                 acreditar saldo externo
  stake <market> <yes|no> <amount>                         apostar (-as = staker)
  close <market>                                           cerrar mercado vencido
  resolve <market> <yes|no|void>                           fijar outcome (-as = resolver)
  claim <market> <yes|no>                                  cobrar payout o reembolso (-as = owner)
  withdraw-fee <market> <amount>                           retirar fees (-as = authority)
  list                                                     tabla de mercados
  show <market>                                            detalle de mercado y vaults
  events <market> [after-seq]                              volcar el event log
  watch <market> [after-seq]                               seguir el event log en vivo

flags:
  -config path   archivo de configuración YAML
  -as name       principal que firma la operación (default "admin")
  -format f      formato de log: text|json
  -verbose       nivel de log debug
`

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	as := flag.String("as", "admin", "principal signing the operation")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ledger, err := storage.NewSQLiteLedger(cfg.Ledger.DSN)
	if err != nil {
		slog.Error("failed to open ledger", "err", err, "dsn", cfg.Ledger.DSN)
		os.Exit(1)
	}
	defer ledger.Close()

	console := notify.NewConsole()
	sinks := []ports.EventSink{console}
	if cfg.Events.RedisAddr != "" {
		rsink := notify.NewRedis(cfg.Events.RedisAddr, cfg.Events.Channel)
		defer rsink.Close()
		sinks = append(sinks, rsink)
	}

	eng := engine.New(ledger, ports.SystemClock{}, sinks...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, eng, ledger, console, *as, flag.Args()); err != nil {
		slog.Error("command failed", "cmd", flag.Arg(0), "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, eng *engine.Engine, ledger ports.Ledger, console *notify.Console, as string, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "create":
		if len(rest) < 3 {
			return fmt.Errorf("create: expected <question> <close-rfc3339> <fee-bps> [resolver]")
		}
		closeTime, err := time.Parse(time.RFC3339, rest[1])
		if err != nil {
			return fmt.Errorf("create: parse close time: %w", err)
		}
		feeBps, err := strconv.ParseUint(rest[2], 10, 32)
		if err != nil {
			return fmt.Errorf("create: parse fee bps: %w", err)
		}
		resolver := as
		if len(rest) > 3 {
			resolver = rest[3]
		}
		m, err := eng.CreateMarket(ctx, engine.CreateMarketRequest{
			Question:  rest[0],
			Authority: as,
			Resolver:  resolver,
			CloseTime: closeTime,
			FeeBps:    uint32(feeBps),
		})
		if err != nil {
			return err
		}
		fmt.Printf("market %s created, closes %s\n", m.ID, m.CloseTime.Format(time.RFC3339))
		return nil

	case "deposit":
		if len(rest) != 2 {
			return fmt.Errorf("deposit: expected <owner> <amount>")
		}
		amount, err := parseAmount(rest[1])
		if err != nil {
			return err
		}
		if err := eng.Deposit(ctx, rest[0], amount); err != nil {
			return err
		}
		balance, err := ledger.AccountBalance(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s balance: %d\n", rest[0], balance)
		return nil

	case "stake":
		if len(rest) != 3 {
			return fmt.Errorf("stake: expected <market> <yes|no> <amount>")
		}
		side, err := domain.ParseOutcome(rest[1])
		if err != nil {
			return err
		}
		amount, err := parseAmount(rest[2])
		if err != nil {
			return err
		}
		pos, err := eng.Stake(ctx, rest[0], side, amount, as)
		if err != nil {
			return err
		}
		fmt.Printf("%s staked %d on %s (position total %d)\n", as, amount, side, pos.Amount)
		return nil

	case "close":
		if len(rest) != 1 {
			return fmt.Errorf("close: expected <market>")
		}
		if err := eng.CloseMarket(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Println("market closed")
		return nil

	case "resolve":
		if len(rest) != 2 {
			return fmt.Errorf("resolve: expected <market> <yes|no|void>")
		}
		winner, err := domain.ParseOutcome(rest[1])
		if err != nil {
			return err
		}
		if err := eng.ResolveMarket(ctx, rest[0], winner, as); err != nil {
			return err
		}
		fmt.Printf("market resolved: %s\n", winner)
		return nil

	case "claim":
		if len(rest) != 2 {
			return fmt.Errorf("claim: expected <market> <yes|no>")
		}
		side, err := domain.ParseOutcome(rest[1])
		if err != nil {
			return err
		}
		s, err := eng.Claim(ctx, rest[0], side, as)
		if err != nil {
			return err
		}
		if s.Refund {
			fmt.Printf("%s refunded %d\n", as, s.Payout)
		} else {
			fmt.Printf("%s paid %d (fee retained %d)\n", as, s.Payout, s.Fee)
		}
		return nil

	case "withdraw-fee":
		if len(rest) != 2 {
			return fmt.Errorf("withdraw-fee: expected <market> <amount>")
		}
		amount, err := parseAmount(rest[1])
		if err != nil {
			return err
		}
		if err := eng.WithdrawFee(ctx, rest[0], amount, as); err != nil {
			return err
		}
		fmt.Printf("%s withdrew %d\n", as, amount)
		return nil

	case "list":
		markets, err := eng.ListMarkets(ctx)
		if err != nil {
			return err
		}
		console.PrintMarkets(markets)
		return nil

	case "show":
		if len(rest) != 1 {
			return fmt.Errorf("show: expected <market>")
		}
		return show(ctx, eng, ledger, rest[0])

	case "events":
		if len(rest) < 1 {
			return fmt.Errorf("events: expected <market> [after-seq]")
		}
		afterSeq, err := parseAfterSeq(rest)
		if err != nil {
			return err
		}
		events, err := eng.Events(ctx, rest[0], afterSeq)
		if err != nil {
			return err
		}
		for _, ev := range events {
			_ = console.Emit(ctx, ev)
		}
		return nil

	case "watch":
		if len(rest) < 1 {
			return fmt.Errorf("watch: expected <market> [after-seq]")
		}
		afterSeq, err := parseAfterSeq(rest)
		if err != nil {
			return err
		}
		err = eng.Watch(ctx, rest[0], afterSeq, func(ev domain.Event) {
			_ = console.Emit(ctx, ev)
		})
		if ctx.Err() != nil {
			return nil // Ctrl-C
		}
		return err

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func show(ctx context.Context, eng *engine.Engine, ledger ports.Ledger, marketID string) error {
	m, err := eng.GetMarket(ctx, marketID)
	if err != nil {
		return err
	}

	fmt.Printf("market    %s\n", m.ID)
	fmt.Printf("question  %s\n", m.Question)
	fmt.Printf("status    %s\n", m.Status)
	fmt.Printf("authority %s\n", m.Authority)
	fmt.Printf("resolver  %s\n", m.Resolver)
	fmt.Printf("fee bps   %d\n", m.FeeBps)
	fmt.Printf("closes    %s\n", m.CloseTime.Format(time.RFC3339))
	fmt.Printf("total yes %d\n", m.TotalYes)
	fmt.Printf("total no  %d\n", m.TotalNo)
	if m.Status == domain.StatusResolved {
		fmt.Printf("winner    %s\n", m.Winner)
	}

	for _, role := range []domain.VaultRole{domain.VaultYes, domain.VaultNo, domain.VaultFee} {
		balance, err := ledger.VaultBalance(ctx, m.ID, role)
		if err != nil {
			return err
		}
		fmt.Printf("vault %-9s %d\n", role.Seed(), balance)
	}
	return nil
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

func parseAfterSeq(rest []string) (int64, error) {
	if len(rest) < 2 {
		return 0, nil
	}
	v, err := strconv.ParseInt(rest[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse after-seq %q: %w", rest[1], err)
	}
	return v, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     14, // días
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
}
