package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"companion/pkg/affection"
	"companion/pkg/cafe"
	"companion/pkg/config"
	"companion/pkg/discord"
	"companion/pkg/server"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	ConfigPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "companion",
		Short:        "Affection-driven companion chat",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config.yml", "path to config file")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newDiscordCommand(opts))
	cmd.AddCommand(newMenuCommand())
	return cmd
}

// load reads the config file and .env secrets.
func load(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return cfg, nil
}

func newServeCommand(root *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web API and chat WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(root)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := server.New(server.Config{
				Responder:     svc.responder,
				Synthesizer:   svc.synthesizer,
				Transcriber:   svc.transcriber,
				Quota:         svc.speech,
				Provider:      svc.providerName,
				ProviderReady: svc.providerReady,
				AllowedOrigin: cfg.Server.AllowedOrigin,
				Options:       cfg.ConversationOptions,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, ":"+cfg.Server.Port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "override server.port")
	return cmd
}

func newDiscordCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discord",
		Short: "Run the companion as a Discord DM bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(root)
			if err != nil {
				return err
			}

			token := os.Getenv("DISCORD_TOKEN")
			if token == "" {
				return fmt.Errorf("missing required environment variable: DISCORD_TOKEN")
			}
			character, err := affection.ParseCharacter(cfg.Discord.Character)
			if err != nil {
				return err
			}

			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()
			if svc.responder == nil {
				return fmt.Errorf("no chat provider configured for %q", svc.providerName)
			}

			handler := discord.NewHandler(discord.Config{
				Responder:   svc.responder,
				Synthesizer: svc.synthesizer,
				Transcriber: svc.transcriber,
				Character:   character,
				Options:     cfg.ConversationOptions,
				Typing:      discord.DefaultTypingConfig,
			})
			defer handler.Close()

			dg, err := discordgo.New("Bot " + token)
			if err != nil {
				return fmt.Errorf("error creating Discord session: %w", err)
			}
			dg.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

			dg.AddHandler(handler.MessageCreate)
			dg.AddHandler(handler.InteractionCreate)

			if err := dg.Open(); err != nil {
				return fmt.Errorf("error opening connection: %w", err)
			}
			defer dg.Close()

			handler.SetBotID(dg.State.User.ID)

			// Empty guild registers globally; a guild ID updates instantly.
			guildID := os.Getenv("DISCORD_GUILD_ID")
			registered, err := discord.RegisterSlashCommands(dg, guildID)
			if err != nil {
				return fmt.Errorf("error registering slash commands: %w", err)
			}
			defer func() {
				if err := discord.UnregisterSlashCommands(dg, guildID, registered); err != nil {
					log.Printf("Error unregistering slash commands: %v", err)
				}
			}()

			profile := character.Profile()
			err = dg.UpdateStatusComplex(discordgo.UpdateStatusData{
				Activities: []*discordgo.Activity{
					{
						Name:  "Custom Status",
						Type:  discordgo.ActivityTypeCustom,
						State: profile.Title,
						Emoji: discordgo.Emoji{Name: "💌"},
					},
				},
				Status: "online",
			})
			if err != nil {
				log.Printf("Error setting custom status: %v", err)
			}

			log.Printf("%s is now running. Press CTRL-C to exit.", profile.DisplayName)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
}

func newMenuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Print the café menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			bySlot := cafe.MenuBySlot()
			for _, slot := range cafe.Slots {
				fmt.Fprintf(out, "%s\n", slot)
				for _, item := range bySlot[slot] {
					fmt.Fprintf(out, "  %-22s $%6.2f\n", item.Name, item.Price)
				}
			}
			return nil
		},
	}
}
