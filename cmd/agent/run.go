package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"script-agent/internal/di"
	"script-agent/internal/domain/entity"
	"script-agent/internal/infrastructure/events"
	"script-agent/internal/infrastructure/userinteraction"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		inputs    []string
		sessionID string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Play a script file in auto mode and print the Script Context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}
			script, err := entity.ParseScript(data)
			if err != nil {
				return err
			}
			values, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, script, values, sessionID, verbose)
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "input parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID, reuses a persisted Script Context")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print timing lines")
	return cmd
}

func run(ctx context.Context, opts *rootOptions, script *entity.Script, inputs map[string]string, sessionID string, verbose bool) error {
	container, err := di.NewContainer(ctx, opts.cfg, di.Overrides{})
	if err != nil {
		return err
	}
	defer container.Close()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	console := userinteraction.NewConsole(os.Stdout, verbose)
	feed, unsubscribe := container.Bus.Subscribe(events.ForSession(sessionID))
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		userinteraction.Watch(ctx, feed, console)
	}()

	res, err := container.Runner(sessionID).Run(ctx, script, inputs)
	// closes feed; Watch prints what is still buffered before returning
	unsubscribe()
	<-watched
	if err != nil {
		return err
	}

	console.ShowSummary(ctx, res.Steps, res.Failed, res.Context)
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d steps failed", res.Failed, res.Steps)
	}
	return nil
}

func parseInputs(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(name), "{{"), "}}"))
		if !ok {
			return nil, fmt.Errorf("invalid input %q, want name=value", p)
		}
		if !entity.ValidParameterName(name) {
			return nil, fmt.Errorf("invalid input %q: %w", p, entity.ErrParameterName)
		}
		values[name] = value
	}
	return values, nil
}
