package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	cacheClear bool

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Show or clear the phrase audio cache",
		Long: paragraph(fmt.Sprintf("\n%s how much synthesized audio is kept on disk. "+
			"With --clear every cached phrase is removed and will be synthesized again.", keyword("Show"))),
		Example: paragraph("pipervoice cache\npipervoice cache --clear"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openCache()
			if err != nil {
				return err
			}
			defer m.Close() //nolint:errcheck

			if cacheClear {
				if err := m.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
				return nil
			}

			_, disk := m.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d phrases, %s of %s\n",
				keyword("disk"), disk.Items, humanize.Bytes(uint64(disk.Size)), humanize.Bytes(uint64(disk.Capacity))) //nolint:gosec
			return nil
		},
	}
)

func init() {
	cacheCmd.Flags().BoolVar(&cacheClear, "clear", false, "remove every cached phrase")
}
