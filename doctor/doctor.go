// Package doctor runs interactive environment checks for the dictation
// client.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"vox/audio"
	"vox/client"
	"vox/encoder"
	"vox/hotkey"
	"vox/inject"
)

// Check is one diagnostic. Run returns a one-line detail on success.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

type Options struct {
	Keys       []hotkey.Key
	Device     string
	Format     encoder.Format
	Client     *client.Client
	Credential string
	// Interactive enables checks that wait for the user.
	Interactive bool
}

// Checks builds the standard sequence.
func Checks(opts Options) []Check {
	checks := []Check{
		{Name: "Server", Run: func(ctx context.Context) (string, error) { return checkServer(ctx, opts.Client) }},
		{Name: "Account", Run: func(ctx context.Context) (string, error) { return checkAccount(ctx, opts.Client, opts.Credential) }},
		{Name: "Hotkey access", Run: func(context.Context) (string, error) { return hotkey.Diagnose(opts.Keys) }},
	}
	if opts.Interactive {
		checks = append(checks, Check{Name: "Hotkey press", Run: func(ctx context.Context) (string, error) {
			return checkPress(ctx, hotkey.New(opts.Keys), hotkey.FormatChord(opts.Keys), 10*time.Second)
		}})
	}
	checks = append(checks,
		Check{Name: "Microphone", Run: func(ctx context.Context) (string, error) { return checkMic(ctx, opts.Device, opts.Format) }},
		Check{Name: "Text injection", Run: func(context.Context) (string, error) { return inject.Verify() }},
	)
	return checks
}

// Run executes checks in order and returns 0 when all pass, 1 otherwise.
func Run(ctx context.Context, out io.Writer, checks []Check) int {
	resetTerminal()
	fmt.Fprintln(out, "vox doctor")
	fmt.Fprintln(out, "==========")

	failed := 0
	for i, c := range checks {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "\nInterrupted")
			return 1
		}
		fmt.Fprintf(out, "\n[%d/%d] %s\n", i+1, len(checks), c.Name)
		detail, err := c.Run(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(out, "  FAIL: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  PASS: %s\n", detail)
	}

	fmt.Fprintln(out)
	if failed > 0 {
		fmt.Fprintf(out, "%d of %d checks failed.\n", failed, len(checks))
		return 1
	}
	fmt.Fprintln(out, "All checks passed!")
	return 0
}

func checkServer(ctx context.Context, c *client.Client) (string, error) {
	h, err := c.Health(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.BaseURL(), err)
	}
	if h.Status != "ok" {
		return "", fmt.Errorf("%s reports %q", c.BaseURL(), h.Status)
	}
	return fmt.Sprintf("%s is up (engine %s)", c.BaseURL(), h.Engine), nil
}

func checkAccount(ctx context.Context, c *client.Client, credential string) (string, error) {
	if credential == "" {
		return "", errors.New("not signed in (run: vox login)")
	}
	me, err := c.Me(ctx, credential)
	if errors.Is(err, client.ErrUnauthorized) {
		return "", errors.New("session expired (run: vox login)")
	}
	if err != nil {
		return "", err
	}
	if me.LicenseActive {
		return fmt.Sprintf("%s, licensed", me.Email), nil
	}
	return fmt.Sprintf("%s, %d words left this week", me.Email, me.WordsRemaining), nil
}

func checkPress(ctx context.Context, hk hotkey.Hotkey, label string, timeout time.Duration) (string, error) {
	if err := hk.Register(); err != nil {
		return "", fmt.Errorf("could not register hotkey: %w", err)
	}
	defer hk.Unregister()
	fmt.Printf("  Press %s...\n", label)

	select {
	case <-hk.Keydown():
	case <-time.After(timeout):
		return "", errors.New("timeout waiting for hotkey")
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case <-hk.Keyup():
	case <-time.After(5 * time.Second):
	case <-ctx.Done():
	}
	resetTerminal()
	return "hotkey detected", nil
}

func checkMic(ctx context.Context, device string, format encoder.Format) (string, error) {
	actx, err := audio.NewContext()
	if err != nil {
		return "", fmt.Errorf("cannot connect to audio: %w", err)
	}
	defer actx.Close()

	dev, err := audio.FindDevice(actx, device)
	if err != nil {
		return "", err
	}
	return sampleMic(ctx, audio.NewRecorder(actx, dev, format), 2*time.Second)
}

// sampleMic records for d and reports the captured duration and peak level.
func sampleMic(ctx context.Context, rec *audio.Recorder, d time.Duration) (string, error) {
	if err := rec.Start(); err != nil {
		return "", err
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}

	dst := filepath.Join(os.TempDir(), fmt.Sprintf("vox-doctor-%d%s", os.Getpid(), rec.Format().Ext()))
	art, err := rec.Stop(dst)
	if err != nil {
		return "", err
	}
	defer art.Remove()

	peak, err := peakLevel(art)
	if err != nil {
		return "", err
	}
	detail := fmt.Sprintf("%s from %s, peak %.0f dBFS", art.Duration.Round(10*time.Millisecond), rec.DeviceName(), peak)
	if math.IsInf(peak, -1) {
		return "", fmt.Errorf("%s: only silence captured", detail)
	}
	return detail, nil
}
