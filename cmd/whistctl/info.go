package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DoyleJ11/whist-client/internal/api"
	"github.com/DoyleJ11/whist-client/internal/session"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what the server reports and whether this client accepts it",
	RunE: func(cmd *cobra.Command, args []string) error {
		scfg, err := sessionConfig()
		if err != nil {
			return err
		}
		m := session.NewMachine(scfg, nil)
		defer m.Close()

		res := m.Handle(cmd.Context(), session.Connect{URL: cfg.ServerURL})[0].(session.ConnectResult)
		var ce *api.ConnectError
		if errors.As(res.Err, &ce) && ce.Kind != api.ConnectIncompatible {
			return res.Err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "game:   %s\ncore:   %s\nserver: %s\n", res.Info.Game, res.Info.CoreVersion, res.Info.ServerVersion)
		if res.Err != nil {
			fmt.Fprintf(out, "incompatible: %v\n", errors.Unwrap(res.Err))
			return nil
		}
		fmt.Fprintln(out, "compatible")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
