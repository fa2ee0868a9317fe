package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gregLibert/hce-card/pkg/bridge"
	"github.com/gregLibert/hce-card/pkg/config"
	"github.com/gregLibert/hce-card/pkg/emv"
	"github.com/gregLibert/hce-card/pkg/hce"
	"github.com/gregLibert/hce-card/pkg/iso7816"
	"github.com/gregLibert/hce-card/pkg/journal"
	"github.com/gregLibert/hce-card/pkg/logging"
	"github.com/gregLibert/hce-card/pkg/pcsc"
	"github.com/gregLibert/hce-card/pkg/terminal"
	"github.com/gregLibert/hce-card/pkg/tlv"
)

const usage = `usage: hce-card <command> [flags]

commands:
  serve         emulate the card behind a serial or TCP NFC front end
  dispatch HEX  print the response to one command frame
  selftest      probe the emulated card in process
  probe         probe the card on a PC/SC reader
  discover      walk the payment directory of the card on a PC/SC reader
  remote        probe a card served by another hce-card over TCP
  journal       list recent exchanges
  readers       list PC/SC readers and serial ports
  init-config   write a default configuration file
`

type command func(args []string) error

func main() {
	commands := map[string]command{
		"serve":       runServe,
		"dispatch":    runDispatch,
		"selftest":    runSelftest,
		"probe":       runProbe,
		"discover":    runDiscover,
		"remote":      runRemote,
		"journal":     runJournal,
		"readers":     runReaders,
		"init-config": runInitConfig,
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "hce-card %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

// setup parses the common -config flag, then loads and validates the file.
func setup(fs *flag.FlagSet, args []string) (config.Config, *zap.Logger, error) {
	path := fs.String("config", "", "configuration file (JSON)")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, errors.Wrap(err, "invalid configuration")
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func newResponder(cfg config.Config, log *zap.Logger) (*hce.Responder, error) {
	return hce.NewResponder(
		hce.WithCardNumber(cfg.Card.Number),
		hce.WithLogger(log.Named("responder")),
	)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, log, err := setup(fs, args)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	responder, err := newResponder(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []bridge.ServerOption{bridge.WithServerLogger(log.Named("bridge"))}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()

		rec := journal.NewRecorder(j, responder.Classify, log.Named("journal"), 0)
		rec.Start(context.Background())
		defer rec.Close()
		opts = append(opts, bridge.WithObserver(rec))
	}
	srv := bridge.NewServer(responder, opts...)

	log.Info("emulating card",
		zap.String("aid", tlv.FormatHex(emv.DemoAID)),
		zap.String("card_number", responder.CardNumber()),
		zap.String("mode", string(cfg.Bridge.Mode)),
	)

	switch cfg.Bridge.Mode {
	case config.BridgeSerial:
		link, err := bridge.OpenSerial(cfg.Bridge.SerialPort, cfg.Bridge.SerialBaud)
		if err != nil {
			return err
		}
		return srv.Serve(ctx, link)
	default:
		ln, err := bridge.ListenTCP(cfg.Bridge.Listen)
		if err != nil {
			return err
		}
		defer func() { _ = ln.Close() }()
		return srv.ServeTCP(ctx, ln)
	}
}

func runDispatch(args []string) error {
	fs := flag.NewFlagSet("dispatch", flag.ExitOnError)
	cfg, log, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("missing command frame (hex)")
	}

	frame, err := hex.DecodeString(strings.ReplaceAll(strings.Join(fs.Args(), ""), " ", ""))
	if err != nil {
		return errors.Wrap(err, "decode command frame")
	}

	responder, err := newResponder(cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\n", responder.Classify(frame), tlv.FormatHex(responder.Dispatch(frame)))
	return nil
}

func runSelftest(args []string) error {
	fs := flag.NewFlagSet("selftest", flag.ExitOnError)
	cfg, log, err := setup(fs, args)
	if err != nil {
		return err
	}

	responder, err := newResponder(cfg, log)
	if err != nil {
		return err
	}
	report, err := terminal.Probe(iso7816.NewClient(hce.NewLoopback(responder)), emv.DemoAID)
	if err != nil {
		return err
	}
	fmt.Println(report.Describe())

	if got := string(report.Track2()); got != responder.CardNumber() {
		return errors.Errorf("card answered track 2 %q, want %q", got, responder.CardNumber())
	}
	fmt.Println("\n>> Self-test passed")
	return nil
}

func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	aidHex := fs.String("aid", tlv.FormatHex(emv.DemoAID), "application to select (hex)")
	reader := fs.String("reader", "", "PC/SC reader (overrides the configuration)")
	cfg, _, err := setup(fs, args)
	if err != nil {
		return err
	}

	aid, err := hex.DecodeString(strings.ReplaceAll(*aidHex, " ", ""))
	if err != nil {
		return errors.Wrap(err, "decode aid")
	}

	return withReader(cfg, *reader, func(card iso7816.Transmitter) error {
		report, err := terminal.Probe(iso7816.NewClient(card), aid)
		if report != nil {
			fmt.Println(report.Describe())
		}
		return err
	})
}

func runDiscover(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	pse := fs.String("pse", emv.PPSEName, "payment system environment to select")
	reader := fs.String("reader", "", "PC/SC reader (overrides the configuration)")
	cfg, _, err := setup(fs, args)
	if err != nil {
		return err
	}

	return withReader(cfg, *reader, func(card iso7816.Transmitter) error {
		d, err := terminal.Discover(iso7816.NewClient(card), *pse)
		if d != nil {
			fmt.Println(d.Describe())
		}
		return err
	})
}

func withReader(cfg config.Config, override string, fn func(iso7816.Transmitter) error) error {
	name := cfg.Reader.Name
	if override != "" {
		name = override
	}

	r, err := pcsc.Connect(name)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}()

	fmt.Printf(">> Using reader: %s\n", r.Name())
	return fn(r)
}

func runRemote(args []string) error {
	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	addr := fs.String("addr", config.DefaultListenAddr, "address of the serving hce-card")
	timeout := fs.Duration("timeout", bridge.DefaultExchangeTimeout, "per exchange timeout")
	if _, _, err := setup(fs, args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	link, err := bridge.DialTCP(ctx, *addr)
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = link.Close() }()

	remote := bridge.NewRemote(link)
	remote.Timeout = *timeout

	report, err := terminal.Probe(iso7816.NewClient(remote), emv.DemoAID)
	if report != nil {
		fmt.Println(report.Describe())
	}
	if err != nil {
		return err
	}

	ctx, cancel = context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return remote.Deactivate(ctx, hce.DeactivationDeselected)
}

func runJournal(args []string) error {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	limit := fs.Int("n", 20, "number of entries")
	prune := fs.Duration("prune", 0, "delete entries older than this before listing")
	cfg, _, err := setup(fs, args)
	if err != nil {
		return err
	}
	if cfg.Journal.Path == "" {
		return errors.New("journal.path is not configured")
	}

	ctx := context.Background()
	j, err := journal.Open(ctx, cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	if *prune > 0 {
		n, err := j.Prune(ctx, time.Now().Add(-*prune))
		if err != nil {
			return err
		}
		fmt.Printf(">> Pruned %d entries\n", n)
	}

	entries, err := j.Recent(ctx, *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLINK\tKIND\tCOMMAND\tRESPONSE")
	for _, e := range entries {
		resp := tlv.FormatHex(e.Response)
		if e.Reason != "" {
			resp = e.Reason
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.At.Format(time.RFC3339), e.Link, e.Kind, tlv.FormatHex(e.Command), resp)
	}
	return w.Flush()
}

func runReaders(args []string) error {
	fs := flag.NewFlagSet("readers", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("PC/SC readers:")
	if readers, err := pcsc.Readers(); err != nil {
		fmt.Printf("  (%v)\n", err)
	} else {
		for _, r := range readers {
			fmt.Printf("  %s\n", r)
		}
	}

	fmt.Println("Serial ports:")
	ports, err := bridge.SerialPorts()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func runInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: hce-card init-config PATH")
	}
	return config.Save(fs.Arg(0), config.Default())
}
