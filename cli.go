package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"vox/api"
	"vox/audio"
	"vox/client"
	"vox/config"
	"vox/credential"
	"vox/shutdown"
	"vox/usage"
)

// account bundles what the account subcommands share.
type account struct {
	client *client.Client
	creds  *credential.Store
	in     *bufio.Reader
	out    io.Writer
}

// newAccount parses the common -server flag plus any extra flags the caller
// registered on fs.
func newAccount(fs *flag.FlagSet, args []string) (*account, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "service base URL")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	creds, err := credential.NewStore(cfg.CredentialPath)
	if err != nil {
		return nil, err
	}
	return &account{
		client: client.New(cfg.ServerURL, cfg.RequestTimeout),
		creds:  creds,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

func (a *account) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// password reads without echo on a terminal and as a plain line otherwise.
func (a *account) password(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return a.prompt(label)
	}
	fmt.Fprint(a.out, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// credential returns the stored token or a hint to sign in.
func (a *account) credential() (string, error) {
	tok, err := a.creds.Load()
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", errors.New("not signed in (run: vox login)")
	}
	return tok, nil
}

func fail(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func runRegister(args []string) int {
	fs := flag.NewFlagSet("vox register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	a, err := newAccount(fs, args)
	if err != nil {
		return fail(err)
	}
	if *email == "" {
		if *email, err = a.prompt("Email: "); err != nil {
			return fail(err)
		}
	}
	pw, err := a.password("Password: ")
	if err != nil {
		return fail(err)
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		confirm, err := a.password("Confirm password: ")
		if err != nil {
			return fail(err)
		}
		if confirm != pw {
			return fail(errors.New("passwords do not match"))
		}
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	res, err := a.client.Register(ctx, *email, pw, *name)
	if errors.Is(err, client.ErrEmailTaken) {
		return fail(fmt.Errorf("%s is already registered (run: vox login)", *email))
	}
	if err != nil {
		return fail(err)
	}
	return a.signedIn(res)
}

func runLogin(args []string) int {
	fs := flag.NewFlagSet("vox login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	a, err := newAccount(fs, args)
	if err != nil {
		return fail(err)
	}
	if *email == "" {
		if *email, err = a.prompt("Email: "); err != nil {
			return fail(err)
		}
	}
	pw, err := a.password("Password: ")
	if err != nil {
		return fail(err)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	res, err := a.client.Login(ctx, *email, pw)
	if errors.Is(err, client.ErrUnauthorized) {
		return fail(errors.New("invalid email or password"))
	}
	if err != nil {
		return fail(err)
	}
	return a.signedIn(res)
}

func (a *account) signedIn(res *api.AuthResponse) int {
	if err := a.creds.Save(res.Token); err != nil {
		return fail(fmt.Errorf("save credential: %w", err))
	}
	fmt.Fprintf(a.out, "Signed in as %s.\n", res.User.Email)
	fmt.Fprintln(a.out, planLine(res.User.LicenseActive, res.User.WordsThisWeek, res.User.WordsRemaining))
	return 0
}

func runLogout(args []string) int {
	a, err := newAccount(flag.NewFlagSet("vox logout", flag.ContinueOnError), args)
	if err != nil {
		return fail(err)
	}
	tok, err := a.creds.Load()
	if err != nil {
		return fail(err)
	}
	if tok != "" {
		ctx, stop := shutdown.Context(context.Background())
		defer stop()
		if err := a.client.Logout(ctx, tok); err != nil && !errors.Is(err, client.ErrUnauthorized) {
			fmt.Fprintf(os.Stderr, "Warning: could not revoke session on server: %v\n", err)
		}
	}
	if err := a.creds.Clear(); err != nil {
		return fail(err)
	}
	fmt.Fprintln(a.out, "Signed out.")
	return 0
}

func runActivate(args []string) int {
	fs := flag.NewFlagSet("vox activate", flag.ContinueOnError)
	a, err := newAccount(fs, args)
	if err != nil {
		return fail(err)
	}
	if fs.NArg() != 1 {
		return fail(errors.New("usage: vox activate VOX-XXXX-XXXX-XXXX"))
	}
	key := usage.NormalizeKey(fs.Arg(0))
	if !usage.ValidKey(key) {
		return fail(fmt.Errorf("%q is not a license key (want VOX-XXXX-XXXX-XXXX)", fs.Arg(0)))
	}
	tok, err := a.credential()
	if err != nil {
		return fail(err)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	res, err := a.client.ActivateLicense(ctx, tok, key)
	switch {
	case errors.Is(err, client.ErrKeyAlreadyUsed):
		return fail(errors.New("this license key is already bound to another account"))
	case errors.Is(err, client.ErrUnauthorized):
		return fail(errors.New("session expired (run: vox login)"))
	case err != nil:
		return fail(err)
	}
	fmt.Fprintln(a.out, res.Message)
	return 0
}

func runStatus(args []string) int {
	a, err := newAccount(flag.NewFlagSet("vox status", flag.ContinueOnError), args)
	if err != nil {
		return fail(err)
	}
	tok, err := a.credential()
	if err != nil {
		return fail(err)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	me, err := a.client.Me(ctx, tok)
	if errors.Is(err, client.ErrUnauthorized) {
		return fail(errors.New("session expired (run: vox login)"))
	}
	if err != nil {
		return fail(err)
	}
	lic, err := a.client.LicenseStatus(ctx, tok)
	if err != nil {
		return fail(err)
	}

	fmt.Fprintf(a.out, "Account:  %s\n", me.Email)
	if me.Name != "" {
		fmt.Fprintf(a.out, "Name:     %s\n", me.Name)
	}
	fmt.Fprintf(a.out, "Server:   %s\n", a.client.BaseURL())
	if lic.LicenseActive {
		fmt.Fprintf(a.out, "License:  %s\n", lic.LicenseKey)
	}
	fmt.Fprintf(a.out, "Week of:  %s\n", me.WeekStart)
	fmt.Fprintln(a.out, planLine(me.LicenseActive, me.WordsThisWeek, me.WordsRemaining))
	return 0
}

func planLine(licensed bool, used, remaining int) string {
	if licensed || remaining < 0 {
		return fmt.Sprintf("Plan:     licensed, unlimited (%d words this week)", used)
	}
	return fmt.Sprintf("Plan:     free, %d words used, %d left this week", used, remaining)
}

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("vox keygen", flag.ContinueOnError)
	n := fs.Int("n", 1, "number of keys")
	if err := fs.Parse(args); err != nil {
		return fail(err)
	}
	for range *n {
		fmt.Println(usage.NewLicenseKey())
	}
	return 0
}

func runDevices(args []string) int {
	if err := flag.NewFlagSet("vox devices", flag.ContinueOnError).Parse(args); err != nil {
		return fail(err)
	}
	actx, err := audio.NewContext()
	if err != nil {
		return fail(fmt.Errorf("initializing audio: %w", err))
	}
	defer actx.Close()
	devices, err := actx.Devices()
	if err != nil {
		return fail(err)
	}
	if len(devices) == 0 {
		fmt.Println("No capture devices found.")
		return 1
	}
	for _, d := range devices {
		fmt.Println(d.Name)
	}
	return 0
}
