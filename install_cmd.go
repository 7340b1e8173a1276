package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	installAll bool

	installCmd = &cobra.Command{
		Use:   "install [VOICE...]",
		Short: "Download voices",
		Long: paragraph(fmt.Sprintf("\n%s the model and config of each VOICE, the default voice, or with --all every voice of --language. "+
			"Files already present are not downloaded again.", keyword("Download"))),
		Example: paragraph("pipervoice install\npipervoice install amy_low danny\npipervoice install -l de-DE --all"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if installAll && len(args) > 0 {
				return errors.New("give voices or --all, not both")
			}

			rt, err := newRuntime()
			if err != nil {
				return err
			}

			voices := args
			switch {
			case installAll:
				voices, err = rt.installer.Catalog().Voices(rt.locale)
				if err != nil {
					return err
				}
			case len(voices) == 0:
				voices = []string{viper.GetString("piper.voice")}
			}

			for _, voice := range voices {
				if rt.installer.Installed(rt.locale, voice) {
					fmt.Fprintln(cmd.OutOrStdout(), faint(voice+" already installed"))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Installing %s...\n", keyword(voice))
				if err := rt.installer.EnsureInstalled(cmd.Context(), rt.locale, voice); err != nil {
					return err
				}
			}
			return nil
		},
	}
)

func init() {
	installCmd.Flags().BoolVarP(&installAll, "all", "a", false, "install every voice of the locale")
}
