package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "kamishibai <script>",
		Short:        "Render a narrated long-form video from a script file",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.Flags().String("config", "config.yaml", "Config file path")
	root.Flags().String("out", "", "Output directory (overrides config)")
	root.Flags().String("bgm", "", "Background music file (overrides config)")
	root.Flags().Int("workers", 0, "Parallel scene renders (0 = physical cores)")
	root.Flags().Bool("clean", false, "Remove intermediate artefacts after a successful run")
	root.Flags().Bool("typing", false, "Force the typing caption animation")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
