package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"battleship-near/internal/app"
	"battleship-near/internal/codec"
	"battleship-near/internal/config"
	"battleship-near/internal/game"
	"battleship-near/internal/near"
	"battleship-near/internal/prover"
)

const (
	exitLocal    = 1
	exitProver   = 2
	exitRPC      = 3
	exitContract = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(exitLocal)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	boardFlag := &cli.StringFlag{Name: "board", Aliases: []string{"b"}, Value: "board.json", Usage: "board state file (.json or .yaml)"}
	nameFlag := &cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "game name"}

	return &cli.App{
		Name:      "battleship",
		Usage:     "play zero-knowledge battleship against a NEAR contract",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "network", Usage: "NEAR network id (overrides NEAR_NETWORK_ID)"},
			&cli.StringFlag{Name: "node-url", Usage: "RPC endpoint, http(s) or ws(s) (overrides NEAR_NODE_URL)"},
			&cli.StringFlag{Name: "account", Usage: "signer account id (overrides NEAR_ACCOUNT_ID)"},
			&cli.StringFlag{Name: "contract", Usage: "battleship contract account (overrides NEAR_CONTRACT_ID)"},
			&cli.StringFlag{Name: "prover-url", Usage: "proving service base URL (overrides PROVER_URL)"},
			&cli.StringFlag{Name: "credentials-dir", Usage: "key store root (overrides NEAR_CREDENTIALS_DIR)"},
			&cli.Uint64Flag{Name: "gas", Usage: "gas attached to the call (overrides MAX_GAS)"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error (overrides LOG_LEVEL)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "verify-seal",
				Usage: "submit a raw seal to the contract's verify method",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "seal", Aliases: []string{"s"}, Value: "seal.bin", Usage: "seal file"},
				},
				Action: func(c *cli.Context) error {
					return run(c, func(ctx context.Context, svc *app.Service) (*app.Result, error) {
						return svc.SubmitSeal(ctx, c.String("seal"))
					})
				},
			},
			{
				Name:  "new-game",
				Usage: "prove a board and open a new game",
				Flags: []cli.Flag{boardFlag, nameFlag},
				Action: func(c *cli.Context) error {
					st, err := codec.LoadState(c.String("board"))
					if err != nil {
						return cli.Exit(err, exitLocal)
					}
					name := c.String("name")
					if name == "" {
						name = uuid.NewString()
					}
					fmt.Fprintln(c.App.Writer, "Game:", name)
					return run(c, func(ctx context.Context, svc *app.Service) (*app.Result, error) {
						return svc.NewGame(ctx, name, st)
					})
				},
			},
			{
				Name:  "join-game",
				Usage: "prove a board, join an open game and fire the first shot",
				Flags: []cli.Flag{
					boardFlag,
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "game name"},
					&cli.UintFlag{Name: "x", Required: true, Usage: "shot column"},
					&cli.UintFlag{Name: "y", Required: true, Usage: "shot row"},
				},
				Action: func(c *cli.Context) error {
					st, err := codec.LoadState(c.String("board"))
					if err != nil {
						return cli.Exit(err, exitLocal)
					}
					shot := game.Position{X: uint32(c.Uint("x")), Y: uint32(c.Uint("y"))}
					return run(c, func(ctx context.Context, svc *app.Service) (*app.Result, error) {
						return svc.JoinGame(ctx, c.String("name"), st, shot)
					})
				},
			},
			{
				Name:  "turn",
				Usage: "prove the result of the opponent's shot and fire back",
				Flags: []cli.Flag{
					boardFlag,
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "game name"},
					&cli.UintFlag{Name: "x", Required: true, Usage: "column of the incoming shot"},
					&cli.UintFlag{Name: "y", Required: true, Usage: "row of the incoming shot"},
					&cli.UintFlag{Name: "next-x", Usage: "column to fire at (defaults to --x)"},
					&cli.UintFlag{Name: "next-y", Usage: "row to fire at (defaults to --y)"},
					&cli.BoolFlag{Name: "save", Usage: "write the proved board state back to --board"},
				},
				Action: turnAction,
			},
			{
				Name:   "game-state",
				Usage:  "print the contract's view of a game",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "game name"}},
				Action: gameStateAction,
			},
			{
				Name:   "balance",
				Usage:  "print the signer account balance",
				Action: balanceAction,
			},
			{
				Name:  "board",
				Usage: "write a random valid board state file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "board.json", Usage: "output file (.json or .yaml)"},
					&cli.BoolFlag{Name: "default-salt", Usage: "use salt 0xDEADBEEF instead of a random one"},
				},
				Action: boardAction,
			},
		},
	}
}

// env is everything a command needs after config and flags are merged.
type env struct {
	cfg *config.Config
	log zerolog.Logger
}

func loadEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v := c.String("network"); v != "" {
		cfg.UseNetwork(v)
	}
	if v := c.String("node-url"); v != "" {
		cfg.Network.NodeURL = v
	}
	if v := c.String("account"); v != "" {
		cfg.AccountID = v
		if !c.IsSet("contract") && os.Getenv("NEAR_CONTRACT_ID") == "" {
			cfg.ContractID = v
		}
	}
	if v := c.String("contract"); v != "" {
		cfg.ContractID = v
	}
	if v := c.String("prover-url"); v != "" {
		cfg.ProverURL = v
	}
	if v := c.String("credentials-dir"); v != "" {
		cfg.CredentialsDir = v
	}
	if c.IsSet("gas") {
		cfg.Gas = c.Uint64("gas")
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: c.App.ErrWriter, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return &env{cfg: cfg, log: log}, nil
}

// session loads the signer key and builds a service whose chain connects lazily.
func (e *env) session() (*app.Service, *app.NearChain, error) {
	key, err := near.LoadKey(e.cfg.CredentialsDir, e.cfg.Network.ID, e.cfg.AccountID)
	if err != nil {
		return nil, nil, err
	}
	chain := &app.NearChain{
		NodeURL:   e.cfg.Network.NodeURL,
		NetworkID: e.cfg.Network.ID,
		Key:       key,
		Log:       e.log,
	}
	svc := &app.Service{
		Prover:     prover.New(e.cfg.ProverURL, e.log),
		Chain:      chain,
		ContractID: e.cfg.ContractID,
		Gas:        e.cfg.Gas,
		Log:        e.log.With().Str("contract", e.cfg.ContractID).Logger(),
	}
	return svc, chain, nil
}

func run(c *cli.Context, op func(context.Context, *app.Service) (*app.Result, error)) error {
	e, err := loadEnv(c)
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	svc, chain, err := e.session()
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	defer chain.Close()

	res, err := op(c.Context, svc)
	if res != nil {
		e.printResult(c.App.Writer, res)
	}
	return exitErr(err)
}

func turnAction(c *cli.Context) error {
	boardPath := c.String("board")
	st, err := codec.LoadState(boardPath)
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	shot := game.Position{X: uint32(c.Uint("x")), Y: uint32(c.Uint("y"))}
	var next *game.Position
	if c.IsSet("next-x") || c.IsSet("next-y") {
		next = &game.Position{X: shot.X, Y: shot.Y}
		if c.IsSet("next-x") {
			next.X = uint32(c.Uint("next-x"))
		}
		if c.IsSet("next-y") {
			next.Y = uint32(c.Uint("next-y"))
		}
	}

	e, err := loadEnv(c)
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	svc, chain, err := e.session()
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	defer chain.Close()

	res, err := svc.Turn(c.Context, c.String("name"), st, shot, next)
	if res == nil {
		return exitErr(err)
	}
	if res.Round != nil {
		fmt.Fprintf(c.App.Writer, "Incoming shot %s: %s\n", shot, res.Round.HitKind())
		if c.Bool("save") {
			if serr := codec.SaveState(boardPath, res.Round.State); serr != nil {
				e.log.Error().Err(serr).Str("path", boardPath).Msg("saving board state")
			}
		}
	}
	fmt.Fprintf(c.App.Writer, "Fired at %s\n", res.Shot)
	e.printResult(c.App.Writer, &res.Result)
	return exitErr(err)
}

func gameStateAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	svc, chain, err := e.session()
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	defer chain.Close()

	g, err := svc.GameState(c.Context, c.String("name"))
	if err != nil {
		return exitErr(err)
	}
	w := c.App.Writer
	switch g.NextTurn {
	case 0:
		fmt.Fprintln(w, "Waiting for a second player")
	default:
		fmt.Fprintf(w, "Next turn: P%d\n", g.NextTurn)
	}
	for i, p := range []codec.PlayerState{g.P1, g.P2} {
		fmt.Fprintf(w, "P%d %s  last shot (%d, %d)  board %v\n", i+1, p.ID, p.ShotX, p.ShotY, p.Board)
	}
	return nil
}

func balanceAction(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	_, chain, err := e.session()
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	defer chain.Close()

	acct, err := chain.Account(c.Context)
	if err != nil {
		return exitErr(err)
	}
	b, err := acct.Balance(c.Context)
	if err != nil {
		return exitErr(err)
	}
	w := c.App.Writer
	fmt.Fprintln(w, "Account:", acct.ID())
	fmt.Fprintln(w, "Total:", near.FormatAmount(b.Total, 5))
	fmt.Fprintln(w, "State staked:", near.FormatAmount(b.StateStaked, 5))
	fmt.Fprintln(w, "Staked:", near.FormatAmount(b.Staked, 5))
	fmt.Fprintln(w, "Available:", near.FormatAmount(b.Available, 5))
	return nil
}

func boardAction(c *cli.Context) error {
	st, err := game.RandomState()
	if err != nil {
		return cli.Exit(err, exitLocal)
	}
	if c.Bool("default-salt") {
		st.Salt = game.DefaultSalt
	}
	out := c.String("out")
	if err := codec.SaveState(out, st); err != nil {
		return cli.Exit(err, exitLocal)
	}
	fmt.Fprintln(c.App.Writer, "✓ wrote", out)
	return nil
}

func (e *env) printResult(w io.Writer, res *app.Result) {
	fmt.Fprintln(w, "Total GAS:", res.Totals.Gas)
	fmt.Fprintln(w, "Total Tokens:", res.Totals.TokensNEAR())
	if u := e.cfg.TxURL(res.Outcome.TxHash()); u != "" {
		fmt.Fprintln(w, "Transaction:", u)
	}
}

// exitErr maps an operation error to the process exit code for its kind.
func exitErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, prover.ErrUnreachable), errors.Is(err, prover.ErrRejected):
		return cli.Exit(err, exitProver)
	case errors.Is(err, near.ErrExecution):
		return cli.Exit(err, exitContract)
	case errors.Is(err, near.ErrRPC):
		return cli.Exit(err, exitRPC)
	default:
		return cli.Exit(err, exitLocal)
	}
}
