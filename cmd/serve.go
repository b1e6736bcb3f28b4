// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pocketd/internal/observability"
	"github.com/xkilldash9x/pocketd/internal/server"
	"github.com/xkilldash9x/pocketd/internal/service"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	var (
		host     string
		port     int
		headless bool
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local API server with every component attached",
		Long: `Starts the HTTP/websocket API and assembles the full assistant behind
it: the model clients, conversation history, speech, smart home control,
web search, the news briefing and the browser agent. Graphical clients
connect to this server. The process runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			// Flags beat the config file when given explicitly.
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = headless
			}

			hub := server.NewHub(logger)
			components, err := service.Build(cfg, hub, logger, service.Options{
				WithHistory: true,
				WithSpeech:  true,
				WithBrowser: true,
			})
			if err != nil {
				return err
			}
			defer components.Shutdown()

			// Preload the model in the background; the routes work before it
			// finishes, just with a slower first response.
			go components.Warmup(ctx, hub)

			deps := server.Deps{
				Assistant: components.Assistant,
				Agent:     components.Agent,
				Briefing:  components.Briefing,
				Search:    components.Search,
				Devices:   components.Home,
				Hub:       hub,
				Logger:    logger,
			}
			if components.History != nil {
				deps.History = components.History
			}

			return server.New(cfg.Server, deps).Run(ctx)
		},
	}

	serveCmd.Flags().StringVar(&host, "host", "", "Listen address. (Overrides config/env)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port. (Overrides config/env)")
	serveCmd.Flags().BoolVar(&headless, "headless", false, "Run the agent's browser without a window. (Overrides config/env)")

	return serveCmd
}
