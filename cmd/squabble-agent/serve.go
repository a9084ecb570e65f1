package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/builders-garden/squabble-agent-xmtp/agent"
	"github.com/builders-garden/squabble-agent-xmtp/audit"
	"github.com/builders-garden/squabble-agent-xmtp/dispatch"
	"github.com/builders-garden/squabble-agent-xmtp/httpapi"
	"github.com/builders-garden/squabble-agent-xmtp/internal/logutil"
	"github.com/builders-garden/squabble-agent-xmtp/internal/retryutil"
	"github.com/builders-garden/squabble-agent-xmtp/internal/statepaths"
	"github.com/builders-garden/squabble-agent-xmtp/mesh"
	"github.com/builders-garden/squabble-agent-xmtp/providers/openai"
	"github.com/builders-garden/squabble-agent-xmtp/session"
	"github.com/builders-garden/squabble-agent-xmtp/trigger"
	"github.com/builders-garden/squabble-agent-xmtp/wallet"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: join the mesh, watch messages, answer triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			apiKey := strings.TrimSpace(viper.GetString("llm.api_key"))
			if apiKey == "" {
				return fmt.Errorf("missing llm.api_key (set via SQUABBLE_LLM_API_KEY)")
			}
			agentSecret := strings.TrimSpace(flagOrViperString(cmd, "agent-secret", "server.agent_secret"))
			if agentSecret == "" {
				return fmt.Errorf("missing server.agent_secret (set via --agent-secret or SQUABBLE_SERVER_AGENT_SECRET)")
			}

			identityPath := statepaths.IdentityPath()
			identity, ok, err := mesh.LoadIdentity(identityPath)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("identity not found at %s; run `squabble-agent init`", identityPath)
			}

			p, err := loadPersona(flagOrViperString(cmd, "persona", "persona.path"))
			if err != nil {
				return err
			}

			client := openai.New(viper.GetString("llm.endpoint"), apiKey)
			runner := agent.NewLLMRunner(
				client,
				viper.GetString("llm.model"),
				p.SystemPrompt,
				viper.GetInt("agent.history_max"),
			)

			node, err := mesh.NewNode(identity, mesh.Options{
				ListenAddrs: viper.GetStringSlice("mesh.listen_addrs"),
				Logger:      logger,
			})
			if err != nil {
				return err
			}
			defer func() { _ = node.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			for _, addr := range viper.GetStringSlice("mesh.bootstrap_peers") {
				addr = strings.TrimSpace(addr)
				if addr == "" {
					continue
				}
				if err := node.Connect(ctx, addr); err != nil {
					logger.Warn("mesh_bootstrap_error", "addr", addr, "error", err.Error())
					peerAddr := addr
					retryutil.AsyncRetry(logger, "mesh_bootstrap", 0, 0, func(ctx context.Context) error {
						return node.Connect(ctx, peerAddr)
					})
				}
			}

			sessions := session.NewManager(
				session.NewMemoryStore(),
				flagOrViperDuration(cmd, "state-timeout", "session.state_timeout"),
				flagOrViperInt(cmd, "max-context-messages", "session.max_context_messages"),
			)
			eval := trigger.NewEvaluator(trigger.Config{
				Keywords:      flagOrViperStringArray(cmd, "trigger-keyword", "trigger.keywords"),
				ContextWindow: flagOrViperDuration(cmd, "context-window", "trigger.context_window"),
			}, node.PeerID())

			wallets := wallet.NewFileStore(statepaths.WalletsDir())

			var auditSink *audit.JSONLSink
			if viper.GetBool("audit.enabled") {
				auditSink, err = audit.NewJSONLSink(statepaths.AuditPath(), viper.GetInt64("audit.rotate_max_bytes"))
				if err != nil {
					return err
				}
				defer func() { _ = auditSink.Close() }()
			}

			cfg := dispatch.Config{
				BotID:        node.PeerID(),
				HelpHint:     p.HelpHint,
				Apology:      p.Apology,
				Welcome:      p.Welcome,
				WelcomeDelay: viper.GetDuration("welcome.delay"),
			}
			if auditSink != nil {
				cfg.Audit = auditSink
			}
			d := dispatch.New(node, sessions, eval.Evaluate, runner, wallets, logger, cfg)

			app := httpapi.New(node, httpapi.Config{
				AgentSecret: agentSecret,
				Logger:      logger,
			})
			bind := viper.GetString("server.bind")
			port := viper.GetInt("server.port")
			go func() {
				if err := app.Listen(fmt.Sprintf("%s:%d", bind, port)); err != nil {
					logger.Error("api_listen_error", "error", err.Error())
				}
			}()
			go func() {
				<-ctx.Done()
				_ = app.Shutdown()
			}()

			logger.Info("serve_start",
				"peer_id", node.PeerID(),
				"addrs", strings.Join(node.AddrStrings(), ","),
				"bind", bind,
				"port", port,
			)

			if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("agent-secret", "", "Shared secret for the send-message API.")
	cmd.Flags().String("persona", "", "Persona YAML path (optional).")
	cmd.Flags().StringArray("trigger-keyword", nil, "Trigger keyword(s), case-insensitive substring match.")
	cmd.Flags().Duration("state-timeout", session.DefaultStateTimeout, "Conversation state expiry.")
	cmd.Flags().Int("max-context-messages", session.DefaultMaxContextMessages, "Turn ceiling before a conversation resets.")
	cmd.Flags().Duration("context-window", trigger.DefaultContextWindow, "How long untriggered messages stay admitted after a bot send.")

	return cmd
}
