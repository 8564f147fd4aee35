package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/K41-max/mahjong/internal/client"
	"github.com/K41-max/mahjong/internal/config"
	"github.com/K41-max/mahjong/internal/protocol"
	"github.com/K41-max/mahjong/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	serverURL := flag.String("server", "", "websocket URL of the room server")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	url := cfg.Client.ServerURL
	if *serverURL != "" {
		url = *serverURL
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := client.Dial(ctx, url, client.DefaultConfig())
	if err != nil {
		log.Fatal().Err(err).Str("url", url).Msg("failed to connect")
	}
	defer conn.Close()

	display := &termDisplay{out: os.Stdout}
	sess := session.New(conn, display, clockwork.NewRealClock(), log.Logger)
	sess.Reset()

	commands := make(chan client.Command)
	go readCommands(os.Stdin, commands, cfg.Client.PlayerName)

	if err := client.Run(ctx, conn, sess, commands); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, client.ErrConnectionClosed) {
		log.Error().Err(err).Msg("client stopped")
	}
}

// readCommands parses stdin lines into run-loop commands. An empty name falls
// back to the configured player name; the session re-validates either way.
func readCommands(in *os.File, commands chan<- client.Command, defaultName string) {
	defer close(commands)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return

		case "create":
			commands <- client.Command{Kind: client.CmdCreate, Name: argOr(fields, 1, defaultName)}

		case "join":
			cmd := client.Command{Kind: client.CmdJoin, Name: argOr(fields, 1, defaultName)}
			if len(fields) > 2 {
				cmd.RoomCode = fields[2]
			} else if len(fields) > 1 && defaultName != "" {
				// "join <code>" with a configured name
				cmd.Name, cmd.RoomCode = defaultName, fields[1]
			}
			commands <- cmd

		case "random":
			commands <- client.Command{Kind: client.CmdRandom, Name: argOr(fields, 1, defaultName)}

		default:
			commands <- client.Command{Kind: client.CmdAction, Action: protocol.Action(fields[0])}
		}
	}
}

func argOr(fields []string, i int, fallback string) string {
	if len(fields) > i {
		return fields[i]
	}
	return fallback
}
