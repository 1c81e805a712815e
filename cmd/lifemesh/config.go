package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/lifemesh/config"
	"github.com/hupe1980/lifemesh/logging"
)

func newConfigCmd() *cobra.Command {
	var (
		flags  projectFlags
		client bool
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the prepared project configuration",
		Long: `Config runs the configuration pipeline and prints the result as YAML.

With --client only the client-visible subset is printed. With --watch the
configuration is printed again after every change of the project file until
the command is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := flags.prepare(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			show := func(p *config.Prepared) error {
				if client {
					return writeYAML(out, p.Client)
				}
				return writeYAML(out, p.Server)
			}
			if err := show(p); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			store := config.NewStore(p)
			store.OnChange(func(p *config.Prepared) {
				fmt.Fprintln(out, "---")
				_ = show(p)
			})

			w, err := config.NewWatcher(store, func() (*config.Prepared, error) {
				return flags.prepare(cmd)
			}, []string{flags.file}, func(o *config.WatcherOptions) {
				o.Logger = logging.New("warn", "text", cmd.ErrOrStderr())
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			w.Start(ctx)
			<-ctx.Done()
			return w.Stop()
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&client, "client", false, "print the client configuration")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reprint on changes of the configuration file")
	return cmd
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
