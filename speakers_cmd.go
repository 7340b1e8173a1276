package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var speakersCmd = &cobra.Command{
	Use:   "speakers [VOICE]",
	Short: "List the speakers of a voice",
	Long: paragraph(fmt.Sprintf("\n%s the speakers of VOICE, or of the default voice, in the order the voice defines them. "+
		"Single-speaker voices list %s. The voice is downloaded if it isn't installed.", keyword("List"), keyword("Default"))),
	Example: paragraph("pipervoice speakers\npipervoice speakers hfc_female"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		voice := viper.GetString("piper.voice")
		if len(args) == 1 {
			voice = args[0]
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}

		if !rt.installer.Installed(rt.locale, voice) {
			fmt.Fprintln(cmd.ErrOrStderr(), faint(fmt.Sprintf("Downloading %s to read its speakers...", voice)))
		}

		speakers, err := rt.resolver.Speakers(cmd.Context(), rt.locale, voice)
		if err != nil {
			return err
		}

		current := viper.GetString("piper.speaker")
		for _, name := range speakers {
			if name == current {
				fmt.Fprintln(cmd.OutOrStdout(), defaultMark("* ")+name)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), "  "+name)
		}
		return nil
	},
}
