package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"telecare-sos/internal/bootstrap"
	"telecare-sos/internal/config"
	"telecare-sos/internal/models"
	"telecare-sos/internal/services"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "sosagent",
		Short:         "Device-side SOS dispatcher with offline queueing",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(sosCmd())
	rootCmd.AddCommand(drainCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(locateCmd())
	rootCmd.AddCommand(contactsCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(selfTestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withAgent loads configuration, builds the agent and runs fn with a context
// cancelled on SIGINT or SIGTERM.
func withAgent(cmd *cobra.Command, interactive bool, fn func(ctx context.Context, a *agent) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	log.SetOutput(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var terminal *terminalPrompt
	var prompt services.UserPrompt
	if interactive {
		terminal = newTerminalPrompt(cmd.InOrStdin(), cmd.OutOrStdout())
		prompt = terminal
	}

	a, err := newAgent(ctx, cfg, log, prompt)
	if err != nil {
		return err
	}
	a.terminal = terminal
	defer a.Close()

	return fn(ctx, a)
}

func sendCmd() *cobra.Command {
	var input services.SOSInput
	var emergencyType string
	var interactive bool

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one SOS alert, queueing it when the backend is unreachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			input.EmergencyType = models.EmergencyType(emergencyType)
			return withAgent(cmd, interactive, func(ctx context.Context, a *agent) error {
				result := a.dispatcher.SendSOSAlert(ctx, &input)
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringVarP(&emergencyType, "type", "t", string(models.EmergencyTypeGeneral), "Emergency type: general, medical, police, fire")
	cmd.Flags().StringVarP(&input.Message, "message", "m", "", "Free-text message for responders")
	cmd.Flags().BoolVar(&input.ContactAllServices, "all-services", false, "Alert police, ambulance and fire")
	cmd.Flags().StringVar(&input.UserID, "user", "", "User ID (defaults to EMERGENCY_USER_ID)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Answer permission and call prompts on the terminal")
	return cmd
}

func sosCmd() *cobra.Command {
	var emergencyType string
	var message string

	cmd := &cobra.Command{
		Use:   "sos",
		Short: "Run the SOS screen flow: arm, dispatch, then wait for confirm-safe or timeout",
		Long: "Activates an SOS and prints every state transition. Press Enter to confirm you are safe; " +
			"interrupt to cancel. The flow ends when it returns to idle.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, true, func(ctx context.Context, a *agent) error {
				return runSOSFlow(ctx, cmd, a, &services.SOSInput{
					EmergencyType: models.EmergencyType(emergencyType),
					Message:       message,
				})
			})
		},
	}

	cmd.Flags().StringVarP(&emergencyType, "type", "t", string(models.EmergencyTypeGeneral), "Emergency type")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Free-text message for responders")
	return cmd
}

func runSOSFlow(ctx context.Context, cmd *cobra.Command, a *agent, input *services.SOSInput) error {
	machine := services.NewSOSStateMachine(a.cfg.Emergency, a.dispatcher, a.logger)

	done := make(chan struct{})
	var once sync.Once
	machine.OnTransition(func(t services.Transition) {
		printJSON(cmd.OutOrStdout(), t)
		if t.To == services.SOSStateIdle {
			once.Do(func() { close(done) })
		}
	})

	if err := machine.Activate(ctx, input); err != nil {
		return err
	}

	// Lines answered to a fallback prompt never reach this channel.
	var confirmations <-chan string
	if a.terminal != nil {
		confirmations = a.terminal.Lines()
	}

	for {
		select {
		case <-done:
			return nil
		case <-confirmations:
			if err := machine.ConfirmSafe(); err != nil {
				a.logger.WithError(err).Warn("Confirm safe ignored")
			}
		case <-ctx.Done():
			if err := machine.Cancel(); err != nil {
				return ctx.Err()
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return nil
		}
	}
}

func drainCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "drain",
		Aliases: []string{"process"},
		Short:   "Deliver queued alerts if the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, false, func(ctx context.Context, a *agent) error {
				return printJSON(cmd.OutOrStdout(), a.dispatcher.ProcessOfflineQueue(ctx))
			})
		},
	}
}

func workerCmd() *cobra.Command {
	var schedule string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Drain the offline queue on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, false, func(ctx context.Context, a *agent) error {
				if schedule == "" {
					schedule = a.cfg.Emergency.DrainSchedule
				}
				worker, err := services.NewQueueWorker(a.dispatcher, schedule, 0, a.logger)
				if err != nil {
					return err
				}

				if metricsAddr != "" {
					addr, err := serveMetrics(ctx, metricsAddr, a.metrics, a.logger)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on http://%s/metrics\n", addr)
				}

				worker.RunOnce(ctx)
				worker.Start()
				<-ctx.Done()

				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				worker.Stop(stopCtx)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule (defaults to EMERGENCY_QUEUE_DRAIN_SCHEDULE)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
	return cmd
}

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or clear the offline queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print queued alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, false, func(ctx context.Context, a *agent) error {
				pending, err := a.queue.Pending(ctx)
				if err != nil {
					return err
				}
				if pending == nil {
					pending = []*models.Alert{}
				}
				return printJSON(cmd.OutOrStdout(), pending)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Discard every queued alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, false, func(ctx context.Context, a *agent) error {
				a.queue.Clear(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "offline queue cleared")
				return nil
			})
		},
	})

	return cmd
}

func locateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "Resolve the emergency location the next alert would carry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, true, func(ctx context.Context, a *agent) error {
				position, err := a.location.GetEmergencyLocation(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), position)
			})
		},
	}
}

func contactsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contacts [user-id]",
		Short: "Fetch emergency contacts, falling back to the built-in numbers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, false, func(ctx context.Context, a *agent) error {
				userID := a.cfg.Emergency.UserID
				if len(args) == 1 {
					userID = args[0]
				}
				return printJSON(cmd.OutOrStdout(), a.dispatcher.GetEmergencyContacts(ctx, userID))
			})
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the emergency backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, false, func(ctx context.Context, a *agent) error {
				online := a.dispatcher.CheckConnectivity(ctx)
				if err := printJSON(cmd.OutOrStdout(), map[string]bool{"online": online}); err != nil {
					return err
				}
				if !online {
					return services.ErrOffline
				}
				return nil
			})
		},
	}
}

func selfTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the backend's emergency system self-check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, false, func(ctx context.Context, a *agent) error {
				return printJSON(cmd.OutOrStdout(), a.dispatcher.TestEmergencySystem(ctx))
			})
		},
	}
}
