// The agent runs on a developer workstation: it captures errors into the
// local store, answers similarity queries offline, and syncs with the central
// registry in the background.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"errorshare/backend/internal/config"
	"errorshare/backend/internal/localstore"
	"errorshare/backend/internal/logging"
	"errorshare/backend/internal/mcp"
	"errorshare/backend/internal/normalize"
	"errorshare/backend/internal/similarity"
	syncengine "errorshare/backend/internal/sync"
	"errorshare/backend/pkg/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type agent struct {
	cfg   *config.Config
	store *localstore.Store
	log   *logging.Logger
}

func newRootCmd() *cobra.Command {
	var configFile string
	var a agent

	root := &cobra.Command{
		Use:           "errorshare-agent",
		Short:         "Local error knowledge base with background registry sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			store, err := localstore.Open(cfg.Local.Path)
			if err != nil {
				return err
			}
			a = agent{cfg: cfg, store: store, log: logging.NewDevelopment()}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store != nil {
				return a.store.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	root.AddCommand(
		newRegisterCmd(&a),
		newCaptureCmd(&a),
		newSimilarCmd(&a),
		newSolutionCmd(&a),
		newFeedbackCmd(&a),
		newSyncCmd(&a),
		newServeCmd(&a),
	)
	return root
}

func (a *agent) client(ctx context.Context) (*syncengine.HTTPClient, error) {
	if a.cfg.Sync.URL == "" {
		return nil, fmt.Errorf("sync.url is not configured")
	}
	key, err := a.store.Setting(ctx, localstore.SettingAPIKey)
	if err != nil {
		return nil, err
	}
	return syncengine.NewHTTPClient(a.cfg.Sync.URL, key, a.cfg.Sync.Timeout()), nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newRegisterCmd(a *agent) *cobra.Command {
	var name, ideVersion string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this instance with the central registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.client(ctx)
			if err != nil {
				return err
			}

			resp, err := client.Register(ctx, syncengine.RegisterRequest{
				InstanceName: name,
				IDEVersion:   ideVersion,
				Capabilities: []string{"capture", "similarity", "sync"},
			})
			if err != nil {
				return err
			}

			if err := a.store.SetSetting(ctx, localstore.SettingInstanceID, resp.InstanceID); err != nil {
				return err
			}
			if err := a.store.SetSetting(ctx, localstore.SettingInstanceName, name); err != nil {
				return err
			}
			if err := a.store.SetSetting(ctx, localstore.SettingAPIKey, resp.APIKey); err != nil {
				return err
			}

			a.log.Info("registered", "instance_id", resp.InstanceID)
			return printJSON(map[string]string{"instance_id": resp.InstanceID})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "declared instance name")
	cmd.Flags().StringVar(&ideVersion, "ide-version", "unknown", "IDE version string")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newCaptureCmd(a *agent) *cobra.Command {
	var category, language, framework string
	cmd := &cobra.Command{
		Use:   "capture [message]",
		Short: "Anonymize and record an error message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := &models.Pattern{
				Signature:   normalize.Signature(category, args[0]),
				Category:    category,
				Language:    language,
				Description: normalize.Message(args[0]),
				Anonymized:  true,
				Severity:    models.SeverityMedium,
			}
			if framework != "" {
				pattern.Framework = &framework
			}

			stored, err := a.store.Capture(cmd.Context(), pattern)
			if err != nil {
				return err
			}
			return printJSON(stored)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "error category")
	cmd.Flags().StringVar(&language, "language", "", "programming language")
	cmd.Flags().StringVar(&framework, "framework", "", "framework, if relevant")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("language")
	return cmd
}

func newSimilarCmd(a *agent) *cobra.Command {
	var language string
	var limit int
	cmd := &cobra.Command{
		Use:   "similar [message]",
		Short: "Find locally known patterns similar to a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scorer := similarity.Scorer{
				CategoryBonus:  a.cfg.Similarity.CategoryBonus,
				LanguageBonus:  a.cfg.Similarity.LanguageBonus,
				FrameworkBonus: a.cfg.Similarity.FrameworkBonus,
			}
			matcher := similarity.NewMatcher(a.store, scorer,
				a.cfg.Similarity.MinScore, a.cfg.Similarity.CandidatePool)

			matches, err := matcher.Match(cmd.Context(), similarity.Query{
				Description: normalize.Message(args[0]),
				Language:    language,
			}, limit)
			if err != nil {
				return err
			}
			return printJSON(matches)
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "restrict matches to one language")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum matches")
	return cmd
}

func newSolutionCmd(a *agent) *cobra.Command {
	var title, description, snippet string
	cmd := &cobra.Command{
		Use:   "solution [signature]",
		Short: "Record a fix for a captured pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sol := &models.Solution{
				PatternSignature: args[0],
				Title:            title,
				Description:      description,
			}
			if snippet != "" {
				sol.CodeSnippet = &snippet
			}
			stored, err := a.store.RecordSolution(cmd.Context(), sol)
			if err != nil {
				return err
			}
			return printJSON(stored)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "short name for the fix")
	cmd.Flags().StringVar(&description, "description", "", "what to do")
	cmd.Flags().StringVar(&snippet, "snippet", "", "optional code for the fix")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("description")
	return cmd
}

func newFeedbackCmd(a *agent) *cobra.Command {
	var helpful bool
	cmd := &cobra.Command{
		Use:   "feedback [solution-id]",
		Short: "Report whether a solution worked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fb, err := a.store.RecordFeedback(cmd.Context(), &models.Feedback{
				SolutionID: args[0],
				WasHelpful: helpful,
			})
			if err != nil {
				return err
			}
			return printJSON(fb)
		},
	}
	cmd.Flags().BoolVar(&helpful, "helpful", true, "whether the solution fixed the problem")
	return cmd
}

func newSyncCmd(a *agent) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle against the central registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := a.client(ctx)
			if err != nil {
				return err
			}

			engine := syncengine.NewEngine(a.store, client, a.cfg.Sync, a.log)
			res, err := engine.Cycle(ctx)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func newServeCmd(a *agent) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP tools over HTTP, with background sync if enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if a.cfg.Sync.Enabled {
				client, err := a.client(ctx)
				if err != nil {
					return err
				}
				engine := syncengine.NewEngine(a.store, client, a.cfg.Sync, a.log)
				go engine.Run(ctx)
				a.log.Info("background sync enabled", "interval", a.cfg.Sync.Interval().String())
			}

			mcpServer := mcp.NewServer(a.store, a.cfg.Similarity)
			mux := http.NewServeMux()
			mcp.MountHTTPHandlers(mux, mcpServer.GetMCPServer())

			a.log.Info("MCP server listening", "address", addr)
			return http.ListenAndServe(addr, mux)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:7411", "listen address")
	return cmd
}
