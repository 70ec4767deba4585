// Command oreadc runs the companion chat pipeline from the terminal:
// prompt previews, output sanitization, and a line-based chat loop.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	oread "github.com/sleddd/oread-companion"
	"github.com/sleddd/oread-companion/generator"
	"github.com/sleddd/oread-companion/lorebook"
	"github.com/sleddd/oread-companion/memory"
	"github.com/sleddd/oread-companion/profile"
	"github.com/sleddd/oread-companion/sanitize"
	"github.com/sleddd/oread-companion/websearch"
)

type config struct {
	OpenAIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBase string `env:"OPENAI_BASE_URL"`
	Model      string `env:"OREAD_MODEL" envDefault:"gpt-4o-mini"`
	RedisAddr  string `env:"OREAD_REDIS_ADDR"`
	BraveKey   string `env:"BRAVE_API_KEY"`
	LogLevel   string `env:"OREAD_LOG_LEVEL" envDefault:"info"`
}

type app struct {
	cfg config
	log *zap.Logger

	characterPath string
	userPath      string
	catalogDir    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "oreadc:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	a := &app{cfg: cfg, log: log}

	root := &cobra.Command{
		Use:           "oreadc",
		Short:         "Companion chat pipeline tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.characterPath, "character", "", "character profile YAML")
	root.PersistentFlags().StringVar(&a.userPath, "user", "", "user profile YAML")
	root.PersistentFlags().StringVar(&a.catalogDir, "catalog", "", "directory of lorebook YAML files")

	root.AddCommand(a.previewCmd(), a.sanitizeCmd(), a.chatCmd(), a.tagsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func (a *app) loadProfiles() (*profile.Character, *profile.User, error) {
	if a.characterPath == "" {
		return nil, nil, fmt.Errorf("--character is required")
	}
	char, err := profile.LoadCharacter(a.characterPath)
	if err != nil {
		return nil, nil, err
	}
	user := &profile.User{}
	if a.userPath != "" {
		user, err = profile.LoadUser(a.userPath)
		if err != nil {
			return nil, nil, err
		}
	}
	return char, user, nil
}

func (a *app) loadCatalog() (*lorebook.Catalog, error) {
	if a.catalogDir == "" {
		return nil, nil
	}
	return lorebook.LoadDir(a.catalogDir)
}

func (a *app) newEngine(gen generator.Generator) (*oread.Engine, error) {
	cfg := oread.EngineConfig{
		Logger:    a.log,
		Generator: gen,
	}
	if a.cfg.BraveKey != "" {
		sc := websearch.DefaultClientConfig()
		sc.APIKey = a.cfg.BraveKey
		sc.Logger = a.log
		cfg.Search = websearch.NewClient(sc)
	}
	return oread.NewEngine(cfg)
}

func (a *app) previewCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Compile and print the prompt for a message without generating",
		RunE: func(cmd *cobra.Command, args []string) error {
			char, user, err := a.loadProfiles()
			if err != nil {
				return err
			}
			catalog, err := a.loadCatalog()
			if err != nil {
				return err
			}

			// A generator that echoes the prompt lets the engine run the
			// whole assembly path without a backend.
			var prompt string
			gen := generator.Func(func(ctx context.Context, req generator.Request) (string, error) {
				prompt = req.Prompt
				return "", nil
			})
			eng, err := a.newEngine(gen)
			if err != nil {
				return err
			}
			_, err = eng.Respond(cmd.Context(), oread.ChatRequest{
				Character: char,
				User:      user,
				Message:   message,
				Catalog:   catalog,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prompt)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "how was your day?", "user message to preview")
	return cmd
}

func (a *app) sanitizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sanitize [text]",
		Short: "Run raw model output through the sanitizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := sanitize.Request{}
			if a.characterPath != "" {
				char, user, err := a.loadProfiles()
				if err != nil {
					return err
				}
				req.CharacterName = char.Name
				req.UserName = user.DisplayName()
				req.AvoidWords = char.AvoidWords
			}

			var text string
			if len(args) > 0 {
				text = strings.Join(args, " ")
			} else {
				raw, err := readAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = raw
			}

			sc := sanitize.DefaultConfig()
			sc.Logger = a.log
			p := sanitize.NewPipeline(sc)
			out, applied := p.CleanTrace(text, req)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			if len(applied) > 0 {
				a.log.Info("transforms applied", zap.Strings("names", applied))
			}
			return nil
		},
	}
	return cmd
}

func (a *app) chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a character on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			char, user, err := a.loadProfiles()
			if err != nil {
				return err
			}
			catalog, err := a.loadCatalog()
			if err != nil {
				return err
			}

			gc := generator.DefaultOpenAIConfig()
			gc.APIKey = a.cfg.OpenAIKey
			gc.BaseURL = a.cfg.OpenAIBase
			gc.Model = a.cfg.Model
			gc.Logger = a.log
			eng, err := a.newEngine(generator.NewOpenAI(gc))
			if err != nil {
				return err
			}

			var history memory.History = memory.NewMemoryHistory(0)
			if a.cfg.RedisAddr != "" {
				client := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
				defer client.Close()
				history = memory.NewRedisHistory(client)
			}
			conversationID := char.Name + ":" + user.DisplayName()

			ctx := cmd.Context()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprintf(cmd.OutOrStdout(), "chatting with %s (ctrl-d to quit)\n", char.Name)
			for {
				fmt.Fprintf(cmd.OutOrStdout(), "%s> ", user.DisplayName())
				if !scanner.Scan() {
					return scanner.Err()
				}
				message := strings.TrimSpace(scanner.Text())
				if message == "" {
					continue
				}

				turns, err := history.Recent(ctx, conversationID, 8)
				if err != nil {
					a.log.Warn("history unavailable", zap.Error(err))
				}
				resp, err := eng.Respond(ctx, oread.ChatRequest{
					Character: char,
					User:      user,
					Message:   message,
					History:   turns,
					Catalog:   catalog,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", char.Name, resp.Text)

				if err := history.Append(ctx, conversationID, oread.Turn{Speaker: user.DisplayName(), Text: message}); err != nil {
					a.log.Warn("history append failed", zap.Error(err))
				}
				if err := history.Append(ctx, conversationID, oread.Turn{Speaker: char.Name, Text: resp.Text}); err != nil {
					a.log.Warn("history append failed", zap.Error(err))
				}
			}
		},
	}
	return cmd
}

func (a *app) tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the built-in character tag templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			tags := lorebook.TemplateTags()
			sort.Strings(tags)
			for _, tag := range tags {
				c, _ := lorebook.TemplateByTag(tag)
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", tag, c.Category)
			}
			return nil
		},
	}
}

func readAll(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(raw), nil
}
