// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the embedcli version and the configured board identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := app.stdout
			fmt.Fprintf(w, "%s %s\n", TitleStyle.Render("embedcli"), getVersionString())

			cfg, _, err := app.resolveConfig(cmd.Context())
			if err != nil {
				fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, app.verbose))
				return nil
			}
			id, err := identityFrom(cfg.Identity)
			if err != nil {
				return err
			}

			fmt.Fprintln(w)
			fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Product         "), id.ProductName)
			fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Board Version   "), id.BoardVersion)
			fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Firmware Version"), id.FirmwareVersion)
			fmt.Fprintf(w, "%s: %s\n", KeyStyle.Render("Firmware Date   "), id.BuildDate())
			return nil
		},
	}
}
