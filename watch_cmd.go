package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/pipervoice/internal/audio"
	"github.com/dgnsrekt/pipervoice/internal/session"
)

// Editors often write a file in several steps.
const watchDebounce = 250 * time.Millisecond

var (
	watchVoice string

	watchCmd = &cobra.Command{
		Use:   "watch FILE",
		Short: "Speak a file every time it is saved",
		Long: paragraph(fmt.Sprintf("\n%s FILE whenever it is written. Markdown files are read without their markup. "+
			"The voice stays loaded between saves.", keyword("Speak"))),
		Example: paragraph("pipervoice watch draft.md\npipervoice watch -v amy_medium notes.txt"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("unable to get absolute path: %w", err)
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("unable to open file: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			sel := session.ParseSelector(watchVoice)
			sess, err := rt.openSession(ctx, sel.Voice)
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			w := &fileWatcher{
				path:     path,
				selector: sel.String(),
				session:  sess,
				player:   audio.NewPlayer(log.Default().WithPrefix("audio")),
				logger:   log.Default().WithPrefix("watch"),
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s, press ctrl+c to stop\n", keyword(args[0]))
			return w.run(ctx)
		},
	}
)

func init() {
	watchCmd.Flags().StringVarP(&watchVoice, "voice", "v", "", "voice, or voice#speaker")
}

type player interface {
	Play(ctx context.Context, wav []byte) error
}

type fileWatcher struct {
	path     string
	selector string
	session  *session.Session
	player   player
	logger   *log.Logger
}

// run blocks until ctx is done. The directory is watched rather than the
// file so saves that replace the file are seen.
func (w *fileWatcher) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to watch: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("unable to watch: %w", err)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watch error", "err", err)

		case <-fire:
			fire = nil
			if err := w.speak(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				// A bad save shouldn't end the watch.
				w.logger.Error("Could not speak file", "path", w.path, "err", err)
			}
		}
	}
}

func (w *fileWatcher) speak(ctx context.Context) error {
	phrase, err := readTextFile(w.path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(phrase) == "" {
		return nil
	}

	wav, err := w.session.Say(ctx, session.Request{Phrase: phrase, Selector: w.selector})
	if err != nil {
		return err
	}
	return w.player.Play(ctx, wav)
}
