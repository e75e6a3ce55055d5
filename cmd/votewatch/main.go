package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/likithgowdabh/eventstack/internal/app"
	"github.com/likithgowdabh/eventstack/internal/config"
	"github.com/likithgowdabh/eventstack/internal/domain"
	"github.com/likithgowdabh/eventstack/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	pageFile := flag.String("page", cfg.Client.PageFile, "YAML page description (slots, current_user, page_url)")
	origin := flag.String("origin", cfg.Client.Origin, "origin of the event page")
	eventID := flag.String("event", cfg.Client.EventID, "event to watch")
	slotList := flag.String("slots", "", "comma-separated slot IDs, overrides the page file")
	user := flag.String("user", cfg.Client.CurrentUser, "username of the viewer, empty for anonymous")
	flag.Parse()

	// Logs go to stderr, the board to stdout
	logger := cfg.Logging.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	page := &config.Page{}
	if *pageFile != "" {
		p, err := config.LoadPage(*pageFile)
		if err != nil {
			logger.Error("failed to load page", "error", err)
			os.Exit(1)
		}
		page = p
	}
	if *slotList != "" {
		page.Slots = parseSlots(*slotList)
	}
	if *user != "" {
		page.CurrentUser = domain.NewUser(*user)
	}
	if *eventID == "" {
		*eventID = page.EventID
	}
	if page.URL == "" && *eventID != "" {
		page.URL = strings.TrimRight(*origin, "/") + "/event/" + url.PathEscape(*eventID)
	}
	if *eventID == "" {
		*eventID = ws.EventIDFromPath(pagePath(page.URL))
	}
	if *eventID == "" {
		fmt.Fprintln(os.Stderr, "votewatch: an event is required (-event, VOTE_EVENT_ID or page file)")
		os.Exit(2)
	}

	board := app.NewBoard(page.Slots, page.CurrentUser, logger)

	// Board and status lines come from different goroutines
	var outMu sync.Mutex
	board.OnChange(func(v domain.View) {
		outMu.Lock()
		defer outMu.Unlock()
		renderBoard(os.Stdout, board.Slots(), v)
		fmt.Fprintln(os.Stdout)
	})

	clientCfg := ws.DefaultClientConfig(*origin)
	clientCfg.MaxReconnectAttempts = cfg.Client.MaxReconnectAttempts
	clientCfg.ReconnectDelay = cfg.Client.ReconnectDelay
	clientCfg.OnStatus = func(s domain.Status) {
		outMu.Lock()
		defer outMu.Unlock()
		renderStatus(os.Stdout, s)
	}

	client := ws.NewClient(clientCfg, board, logger)

	logger.Info("watching event",
		"eventID", *eventID,
		"slots", len(board.Slots()),
		"anonymous", board.User() == nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Connect(ctx, *eventID); err != nil {
		// Retries continue in the background
		logger.Warn("initial connection failed", "error", err)
	}

	// SIGHUP plays the role of the page regaining the foreground
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			if ok, err := client.Resync(ctx, page.URL); err != nil {
				logger.Warn("resync failed", "error", err)
			} else if ok {
				logger.Info("resync started")
			}
			continue
		}
		break
	}

	// Page teardown
	if err := client.Disconnect(); err != nil {
		logger.Error("disconnect failed", "error", err)
	}
	logger.Info("stopped watching", "eventID", *eventID)
}

func parseSlots(list string) []domain.SlotID {
	var slots []domain.SlotID
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			slots = append(slots, domain.SlotID(s))
		}
	}
	return slots
}

func pagePath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Path
}
