// File: cmd/demo.go
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/authflow/internal/demo"
	"github.com/xkilldash9x/authflow/internal/observability"
)

func newDemoCmd(v *viper.Viper) *cobra.Command {
	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Serve the demo JSON API (GET / and POST /echo)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return demo.NewServer(cfg.Demo, observability.GetLogger()).Run(cmd.Context())
		},
	}

	demoCmd.Flags().String("addr", ":5000", "address to listen on")
	_ = v.BindPFlag("demo.addr", demoCmd.Flags().Lookup("addr"))
	return demoCmd
}
