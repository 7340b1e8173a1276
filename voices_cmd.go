package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pipervoice/internal/artifact"
	"github.com/dgnsrekt/pipervoice/internal/catalog"
)

var (
	voicesAll bool

	voicesCmd = &cobra.Command{
		Use:   "voices",
		Short: "List the voices of a locale",
		Long: paragraph(fmt.Sprintf("\n%s the catalog voices for --language. Installed voices show their size on disk; "+
			"the default voice is marked.", keyword("List"))),
		Example: paragraph("pipervoice voices\npipervoice voices -l de-DE\npipervoice voices --all"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}

			locales := []string{rt.locale}
			if voicesAll {
				locales = rt.installer.Catalog().Locales()
			}
			for _, locale := range locales {
				if err := printVoices(cmd.OutOrStdout(), rt.installer, locale, viper.GetString("piper.voice")); err != nil {
					return err
				}
			}
			return nil
		},
	}
)

func init() {
	voicesCmd.Flags().BoolVarP(&voicesAll, "all", "a", false, "list every locale")
}

func printVoices(w io.Writer, installer *artifact.Installer, locale, defaultVoice string) error {
	voices, err := installer.Catalog().Voices(locale)
	if err != nil {
		return err
	}
	canonical, err := catalog.NormalizeLocale(locale)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, keyword(canonical))
	for _, voice := range voices {
		var b strings.Builder
		b.WriteString("  ")
		if voice == defaultVoice {
			b.WriteString(defaultMark("* "))
		} else {
			b.WriteString("  ")
		}
		b.WriteString(voice)

		if installer.Installed(locale, voice) {
			b.WriteString(faint("  installed"))
			if size, ok := installedSize(installer, locale, voice); ok {
				b.WriteString(faint(", " + humanize.Bytes(size)))
			}
		}
		fmt.Fprintln(w, b.String())
	}
	return nil
}

// installedSize is the on-disk size of the voice's model, when the store
// is a directory.
func installedSize(installer *artifact.Installer, locale, voice string) (uint64, bool) {
	ref, err := installer.ModelRef(locale, voice)
	if err != nil {
		return 0, false
	}
	st, err := os.Stat(installer.Store().Locate(ref))
	if err != nil {
		return 0, false
	}
	return uint64(st.Size()), true //nolint:gosec
}
