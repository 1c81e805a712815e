package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/lifemesh/config"
	"github.com/hupe1980/lifemesh/effect"
	"github.com/hupe1980/lifemesh/effect/wsgateway"
)

// effectStatus is the printed answer to the six effect queries.
type effectStatus struct {
	Effect        string `yaml:"effect"`
	HasMounted    bool   `yaml:"hasMounted"`
	HasUnmounted  bool   `yaml:"hasUnmounted"`
	MountedInMs   *int64 `yaml:"mountedInMs"`
	UnmountedInMs *int64 `yaml:"unmountedInMs"`
	MountError    string `yaml:"mountError,omitempty"`
	UnmountError  string `yaml:"unmountError,omitempty"`
}

func newEffectCmd() *cobra.Command {
	var (
		token   string
		timeout time.Duration
		follow  bool
	)

	cmd := &cobra.Command{
		Use:   "effect <url> <effect>",
		Short: "Query the lifecycle of a remote effect",
		Long: `Effect connects to an agent's effect gateway, for example
ws://localhost:3003/agents/companion/rpc, and prints the lifecycle state of
the named effect. With --follow, lifecycle events are printed as they happen
until the command is interrupted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, name := args[0], args[1]

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c, err := wsgateway.Dial(ctx, url, func(o *wsgateway.DialOptions) {
				if token != "" {
					o.Header = http.Header{"Authorization": []string{"Bearer " + token}}
				}
			})
			if err != nil {
				return err
			}
			defer c.Close()

			tracker := effect.NewTracker(c, name)
			defer tracker.Close()

			st, err := queryStatus(ctx, tracker)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := writeYAML(out, st); err != nil {
				return err
			}
			if !follow {
				return nil
			}

			for _, kind := range effect.Kinds {
				if _, err := tracker.On(kind, func(ev effect.Event) {
					fmt.Fprintf(out, "%s %s\n", ev.At.Format(time.RFC3339), ev.Name())
				}); err != nil {
					return err
				}
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			select {
			case <-sigCtx.Done():
			case <-c.Done():
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", os.Getenv(config.EnvServerToken), "bearer token")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "connect and query timeout")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "print lifecycle events until interrupted")
	return cmd
}

func queryStatus(ctx context.Context, t *effect.Tracker) (*effectStatus, error) {
	st := &effectStatus{Effect: t.Name()}
	var err error
	if st.HasMounted, err = t.HasMounted(ctx); err != nil {
		return nil, err
	}
	if st.HasUnmounted, err = t.HasUnmounted(ctx); err != nil {
		return nil, err
	}
	if st.MountedInMs, err = t.MountedInMs(ctx); err != nil {
		return nil, err
	}
	if st.UnmountedInMs, err = t.UnmountedInMs(ctx); err != nil {
		return nil, err
	}
	if st.MountError, err = t.MountError(ctx); err != nil {
		return nil, err
	}
	if st.UnmountError, err = t.UnmountError(ctx); err != nil {
		return nil, err
	}
	return st, nil
}
