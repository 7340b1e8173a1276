package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/pipervoice/internal/audio"
	"github.com/dgnsrekt/pipervoice/internal/session"
	"github.com/dgnsrekt/pipervoice/internal/text"
)

var errTerminalOutput = errors.New("refusing to write audio to a terminal: use --out or --play")

var (
	sayVoice     string
	sayOut       string
	sayPlay      bool
	sayFile      string
	sayClipboard bool

	sayCmd = &cobra.Command{
		Use:   "say [TEXT...]",
		Short: "Speak text",
		Long: paragraph(fmt.Sprintf("\n%s text given as arguments, read from a file, the clipboard or a pipe. "+
			"The voice is downloaded first if it isn't installed. Audio is written as WAV.", keyword("Speak"))),
		Example: paragraph("pipervoice say Hello there -p\n" +
			"pipervoice say -v glados 'The cake is a lie' -o cake.wav\n" +
			"pipervoice say -l de-DE -v karlsson -f notes.md -p\n" +
			"echo hi | pipervoice say -v 'arctic#3' > hi.wav"),
		RunE: runSay,
	}
)

func init() {
	sayCmd.Flags().StringVarP(&sayVoice, "voice", "v", "", "voice, or voice#speaker for this phrase only")
	sayCmd.Flags().StringVarP(&sayOut, "out", "o", "", "write WAV to file")
	sayCmd.Flags().BoolVarP(&sayPlay, "play", "p", false, "play through the default audio device")
	sayCmd.Flags().StringVarP(&sayFile, "file", "f", "", "read text or Markdown from file")
	sayCmd.Flags().BoolVar(&sayClipboard, "clipboard", false, "read text from the clipboard")
}

func runSay(cmd *cobra.Command, args []string) error {
	phrase, err := readPhrase(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(phrase) == "" {
		return errors.New("nothing to say")
	}

	stdout := cmd.OutOrStdout()
	if sayOut == "" && !sayPlay && isTerminal(stdout) {
		return errTerminalOutput
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck

	sel := session.ParseSelector(sayVoice)
	sess, err := rt.openSession(ctx, sel.Voice)
	if err != nil {
		return err
	}
	defer sess.Close() //nolint:errcheck

	wav, err := sess.Say(ctx, session.Request{Phrase: phrase, Selector: sel.String()})
	if err != nil {
		return err
	}

	return deliver(ctx, wav, stdout)
}

// deliver writes or plays audio according to the say flags.
func deliver(ctx context.Context, wav []byte, stdout io.Writer) error {
	if sayOut != "" {
		if err := os.WriteFile(sayOut, wav, 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("unable to write audio: %w", err)
		}
		log.Info("Wrote audio", "path", sayOut, "bytes", len(wav))
	}
	if sayPlay {
		return audio.NewPlayer(log.Default().WithPrefix("audio")).Play(ctx, wav)
	}
	if sayOut == "" {
		if _, err := stdout.Write(wav); err != nil {
			return fmt.Errorf("unable to write to writer: %w", err)
		}
	}
	return nil
}

// readPhrase picks the single text source among args, --file, --clipboard
// and a stdin pipe.
func readPhrase(args []string) (string, error) {
	sources := 0
	for _, set := range []bool{len(args) > 0, sayFile != "", sayClipboard} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return "", errors.New("give text as arguments, --file or --clipboard, not several")
	}

	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case sayFile != "":
		return readTextFile(sayFile)
	case sayClipboard:
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		return s, nil
	}

	if yes, err := stdinIsPipe(); err != nil {
		return "", err
	} else if yes {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("unable to read from reader: %w", err)
		}
		return string(b), nil
	}
	return "", errors.New("missing text: give it as arguments, --file, --clipboard or a pipe")
}

// readTextFile reads path, stripping Markdown files down to speakable text.
func readTextFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("unable to open file: %w", err)
	}
	if text.IsMarkdownFile(filepath.Base(path)) {
		return text.Speakable(string(b)), nil
	}
	return string(b), nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec
}
