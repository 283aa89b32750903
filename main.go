package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"vox/audio"
	"vox/beep"
	"vox/client"
	"vox/config"
	"vox/credential"
	"vox/doctor"
	"vox/encoder"
	"vox/hotkey"
	"vox/inject"
	"vox/log"
	"vox/notify"
	"vox/session"
	"vox/shutdown"
	"vox/usage"
)

var version = "dev"

const credentialPoll = 2 * time.Second

type command struct {
	name  string
	usage string
	run   func(args []string) int
}

var commands []command

func init() {
	commands = []command{
		{"serve", "run the accounting and transcription service", runServe},
		{"register", "create an account and sign in", runRegister},
		{"login", "sign in and store the credential", runLogin},
		{"logout", "sign out and forget the credential", runLogout},
		{"activate", "bind a license key to your account", runActivate},
		{"status", "show plan and weekly usage", runStatus},
		{"keygen", "print new license keys (operator)", runKeygen},
		{"devices", "list capture devices", runDevices},
		{"version", "print version", func([]string) int { fmt.Printf("vox %s\n", version); return 0 }},
	}
}

// run dispatches to a subcommand when the first argument names one, and to
// the dictation client otherwise.
func run(args []string) int {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		for _, c := range commands {
			if c.name == args[0] {
				return c.run(args[1:])
			}
		}
		if args[0] == "help" {
			printUsage(os.Stdout)
			return 0
		}
		fmt.Fprintf(os.Stderr, "vox: unknown command %q\n\n", args[0])
		printUsage(os.Stderr)
		return 2
	}
	return runClient(args)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: vox [flags]            start dictating")
	fmt.Fprintln(w, "       vox <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'vox -h' for client flags.")
}

// initCrashLog sends runtime crash output to crash_log.txt in the log
// directory so panics in cgo callbacks are not lost with the terminal.
func initCrashLog() {
	if log.Dir() == "" {
		return
	}
	if err := os.MkdirAll(log.Dir(), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(log.Dir(), "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

type clientFlags struct {
	logPath     string
	setup       bool
	doctor      bool
	test        bool
	tui         bool
	showVersion bool
}

// parseClientFlags layers command-line flags over the environment defaults
// in cfg.
func parseClientFlags(cfg *config.Client, args []string) (*clientFlags, []string, error) {
	var f clientFlags
	fs := flag.NewFlagSet("vox", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "service base URL")
	fs.StringVar(&cfg.Hotkey, "hotkey", cfg.Hotkey, "trigger chord, e.g. ctrl+shift+space")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "artifact format: wav or flac")
	fs.StringVar(&cfg.InjectMode, "mode", cfg.InjectMode, "text delivery: type or paste")
	fs.StringVar(&cfg.Device, "device", cfg.Device, "use the capture device whose name contains this")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "upload timeout")
	fs.BoolVar(&cfg.Beep, "beep", cfg.Beep, "play start/stop cues")
	fs.BoolVar(&cfg.Notify, "notify", cfg.Notify, "show desktop notifications for warnings")
	fs.BoolVar(&cfg.SpeechGate, "vad", cfg.SpeechGate, "skip uploading recordings with no detected speech")
	fs.StringVar(&f.logPath, "logpath", "", "log directory (default: OS-specific location, use ./ for current dir)")
	fs.BoolVar(&f.setup, "setup", false, "pick the capture device interactively")
	fs.BoolVar(&f.doctor, "doctor", false, "run system diagnostics and exit")
	fs.BoolVar(&f.test, "test", false, "test mode (headless, stdin-driven, replays a WAV file)")
	fs.BoolVar(&f.tui, "tui", true, "run with terminal UI")
	fs.BoolVar(&f.showVersion, "version", false, "print version and exit")
	fs.Usage = func() {
		printUsage(fs.Output())
		fmt.Fprintln(fs.Output(), "\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &f, fs.Args(), nil
}

func runClient(args []string) int {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	flags, rest, err := parseClientFlags(cfg, args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if flags.showVersion {
		fmt.Printf("vox %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(flags.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	initCrashLog()
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	// Validate accepted these already.
	keys, _ := hotkey.ParseChord(cfg.Hotkey)
	format, _ := encoder.ParseFormat(cfg.Format)
	mode, _ := inject.ParseMode(cfg.InjectMode)

	creds, err := credential.NewStore(cfg.CredentialPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	c := client.New(cfg.ServerURL, cfg.RequestTimeout)

	sigCtx, stopSignals := shutdown.Context(context.Background())
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	if flags.doctor {
		tok, _ := creds.Load()
		return doctor.Run(ctx, os.Stdout, doctor.Checks(doctor.Options{
			Keys:        keys,
			Device:      cfg.Device,
			Format:      format,
			Client:      c,
			Credential:  tok,
			Interactive: true,
		}))
	}

	if !cfg.Beep {
		beep.Disable()
	}

	if flags.test {
		if len(rest) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: vox -test <wav-file>")
			return 2
		}
		return runTestMode(ctx, rest[0], c, creds, format)
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	var dev *audio.DeviceInfo
	if flags.setup && cfg.Device == "" {
		dev, err = audio.PickDevice(actx, os.Stdout)
		if errors.Is(err, audio.ErrPickCancelled) {
			return 0
		}
	} else {
		dev, err = audio.FindDevice(actx, cfg.Device)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	rec := audio.NewRecorder(actx, dev, format)
	if cfg.SpeechGate {
		vd, err := audio.NewVoiceDetector()
		if err != nil {
			log.Warnf("voice detector unavailable: %v", err)
		} else {
			rec.DetectVoice(vd)
		}
	}

	inj, err := inject.New(mode)
	if err != nil {
		log.Errorf("injector init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: text injection unavailable: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'vox -doctor' for details.")
		return 1
	}

	hk := hotkey.New(keys)
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey: %v\n", err)
		return 1
	}
	defer hk.Unregister()

	info := clientInfo{
		device: rec.DeviceName(),
		server: c.BaseURL(),
		chord:  hotkey.FormatChord(keys),
		format: string(format),
	}
	log.SessionStart(info.device, info.format, info.server, info.chord)

	var ctrl *session.Controller
	var ui uiSink
	var prog *tuiProgram
	if flags.tui {
		prog = newTUIProgram(info, func() string { return ctrl.LastTranscript() })
		ui = prog
	} else {
		ui = newLineSink(os.Stdout)
	}
	sinks := session.MultiSink{session.LogSink{}, ui}
	if cfg.Notify {
		sinks = append(sinks, notify.New())
	}

	ctrl, err = session.New(session.Config{
		Recorder:     rec,
		Client:       c,
		Injector:     inj,
		Credentials:  creds,
		Sink:         sinks,
		AuthRequired: ui.AuthRequired,
		WeeklyLimit:  usage.DefaultWeeklyLimit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { log.SessionEnd(ctrl.Count()) }()

	stop := hotkey.Listen(hk, ctrl.Trigger)
	defer stop()
	go watchCredential(ctx, creds, ctrl, credentialPoll)

	if prog == nil {
		fmt.Printf("vox %s: press %s to dictate, ctrl+c to quit\n", version, info.chord)
		ctrl.Run(ctx)
		return 0
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		ctrl.Run(ctx)
	}()
	go func() {
		<-ctx.Done()
		prog.Quit()
	}()
	if _, err := prog.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
	}
	cancel()
	<-runDone
	return 0
}

// watchCredential hands a token saved by 'vox login' in another terminal to
// the running controller.
func watchCredential(ctx context.Context, creds *credential.Store, ctrl *session.Controller, every time.Duration) {
	last, _ := creds.Load()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		tok, err := creds.Load()
		if err != nil || tok == last {
			continue
		}
		last = tok
		if tok != "" {
			log.Info("credential updated")
			ctrl.SetCredential(tok)
		}
	}
}
