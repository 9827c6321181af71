package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"shop_assistant/internal/address"
	"shop_assistant/internal/appinfo"
	"shop_assistant/internal/applog"
	"shop_assistant/internal/assistant"
	"shop_assistant/internal/chatui"
	"shop_assistant/internal/config"
	"shop_assistant/internal/export"
	"shop_assistant/internal/notify"
	"shop_assistant/internal/session"
	"shop_assistant/internal/shop"
)

func main() {
	if len(os.Args) < 2 {
		if err := runChat(os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "chat":
		if err := runChat(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "orders":
		if err := runOrders(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "me":
		if err := runMe(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(appinfo.Display())
	default:
		if err := runChat(os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config.yaml")
	userID := fs.String("user", "", "user id (overrides config)")
	uiMode := fs.String("ui", "auto", "ui mode: auto, tui or plain")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*userID) != "" {
		cfg.UserID = strings.TrimSpace(*userID)
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return fmt.Errorf("user id is required (--user or config user_id)")
	}

	mode := resolveUIMode(*uiMode)
	logger, err := newLogger(cfg, mode)
	if err != nil {
		return err
	}
	defer logger.Close()

	shopClient := &shop.Client{BaseURL: cfg.BackendBaseURL, UserID: cfg.UserID, Logger: logger}
	store := newStore(cfg, logger)
	defer store.Close()

	var addrClient *address.Client
	if strings.TrimSpace(cfg.AddressSearchURL) != "" {
		addrClient = &address.Client{BaseURL: cfg.AddressSearchURL}
	}

	var trackingClient *shop.Client
	if cfg.TrackingEnabled {
		trackingClient = shopClient
	}

	opts := chatui.Options{
		Shop:    trackingClient,
		Address: addrClient,
		Store:   store,
		Logger:  logger,
		UserID:  cfg.UserID,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Logf(applog.KindInfo, "%s starting (user=%s, ui=%s)", appinfo.Display(), cfg.UserID, mode)

	if mode == chatui.ModeTUI {
		ui := chatui.New(opts)
		ctrl, err := newController(cfg, ui.OnUpdate, logger)
		if err != nil {
			return err
		}
		restoreSession(ctx, store, cfg.UserID, ctrl, logger)
		ui.SetController(ctrl)
		startNotify(ctx, cfg, shopClient, logger, ui.OnNotify)
		return ui.RunTUI(ctx, os.Stdin, os.Stdout)
	}

	plain := chatui.NewPlain(opts, os.Stdout)
	ctrl, err := newController(cfg, plain.OnUpdate, logger)
	if err != nil {
		return err
	}
	restoreSession(ctx, store, cfg.UserID, ctrl, logger)
	plain.SetController(ctrl)
	startNotify(ctx, cfg, shopClient, logger, plain.OnNotify)
	fmt.Printf("%s 상담을 시작해요. /exit 로 종료합니다.\n", appinfo.Display())
	return plain.Run(ctx, os.Stdin)
}

func resolveUIMode(raw string) chatui.Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tui":
		return chatui.ModeTUI
	case "plain":
		return chatui.ModePlain
	default:
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return chatui.ModeTUI
		}
		return chatui.ModePlain
	}
}

// newLogger writes to the configured log file; terminal echo stays off in
// TUI mode so log lines cannot tear the alt screen.
func newLogger(cfg config.Config, mode chatui.Mode) (*applog.Logger, error) {
	var file *os.File
	if strings.TrimSpace(cfg.LogFile) != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
	}
	return applog.New(applog.Options{
		File:        file,
		Term:        os.Stderr,
		TermEnabled: mode == chatui.ModePlain,
		TermColor:   applog.TermColorEnabled(os.Stderr),
	}), nil
}

func newStore(cfg config.Config, logger *applog.Logger) session.Store {
	ttl := time.Duration(cfg.SessionTTLHours) * time.Hour
	if strings.TrimSpace(cfg.RedisURL) != "" {
		store, err := session.NewRedisStore(cfg.RedisURL, ttl)
		if err == nil {
			return store
		}
		logger.Logf(applog.KindWarn, "redis unavailable, falling back to file store: %v", err)
	}
	store, err := session.NewFileStore(cfg.DataDir, ttl)
	if err != nil {
		logger.Logf(applog.KindWarn, "file store unavailable, session will not persist: %v", err)
		return noopStore{}
	}
	return store
}

func newController(cfg config.Config, onUpdate func(assistant.Update), logger *applog.Logger) (*assistant.Controller, error) {
	return assistant.NewController(assistant.Options{
		Endpoint: cfg.ChatEndpoint(),
		UserID:   cfg.UserID,
		Notify:   onUpdate,
		Logger:   logger,
	})
}

func restoreSession(ctx context.Context, store session.Store, userID string, ctrl *assistant.Controller, logger *applog.Logger) {
	rec, ok, err := store.Load(ctx, userID)
	if err != nil {
		logger.Logf(applog.KindWarn, "session restore failed: %v", err)
		return
	}
	if !ok {
		return
	}
	ctrl.Transcript().Restore(rec.Entries)
	ctrl.State().Set(rec.State)
	logger.Logf(applog.KindInfo, "session restored (%d entries)", len(rec.Entries))
}

func startNotify(ctx context.Context, cfg config.Config, shopClient *shop.Client, logger *applog.Logger, onNotify func(notify.Notification)) {
	listener, err := notify.NewListener(notify.Options{
		SocketURL: cfg.NotifySocketURL,
		PollSpec:  cfg.NotifyPollSpec,
		Shop:      shopClient,
		Logger:    logger,
		OnNotify:  onNotify,
	})
	if err != nil {
		logger.Logf(applog.KindWarn, "notifications disabled: %v", err)
		return
	}
	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Logf(applog.KindWarn, "notification listener stopped: %v", err)
		}
	}()
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config.yaml")
	userID := fs.String("user", "", "user id (overrides config)")
	outPath := fs.String("out", "transcript.html", "output file (.html or .md)")
	title := fs.String("title", "", "document title")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*userID) != "" {
		cfg.UserID = strings.TrimSpace(*userID)
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return fmt.Errorf("user id is required (--user or config user_id)")
	}

	logger := applog.NewStderr()
	store := newStore(cfg, logger)
	defer store.Close()

	rec, ok, err := store.Load(context.Background(), cfg.UserID)
	if err != nil {
		return err
	}
	if !ok || len(rec.Entries) == 0 {
		return fmt.Errorf("no saved conversation for user %s", cfg.UserID)
	}

	var data string
	if strings.HasSuffix(*outPath, ".md") {
		data = export.Markdown(*title, rec.Entries)
	} else {
		data, err = export.HTML(*title, rec.Entries)
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(*outPath, []byte(data), 0o644); err != nil {
		return err
	}
	fmt.Printf("saved %d entries to %s\n", len(rec.Entries), *outPath)
	return nil
}

func runOrders(args []string) error {
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config.yaml")
	userID := fs.String("user", "", "user id (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*userID) != "" {
		cfg.UserID = strings.TrimSpace(*userID)
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return fmt.Errorf("user id is required (--user or config user_id)")
	}

	client := &shop.Client{BaseURL: cfg.BackendBaseURL, UserID: cfg.UserID}
	orders, err := client.Orders(context.Background())
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("(no orders)")
		return nil
	}
	for _, o := range orders {
		fmt.Printf("#%d  %s  %s  %s\n", o.ID, shop.StatusLabel(o.Status), export.FormatAmount(o.TotalAmount), o.CreatedAt)
	}
	return nil
}

func runMe(args []string) error {
	fs := flag.NewFlagSet("me", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config.yaml")
	userID := fs.String("user", "", "user id (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*userID) != "" {
		cfg.UserID = strings.TrimSpace(*userID)
	}
	if strings.TrimSpace(cfg.UserID) == "" {
		return fmt.Errorf("user id is required (--user or config user_id)")
	}

	client := &shop.Client{BaseURL: cfg.BackendBaseURL, UserID: cfg.UserID}
	ctx := context.Background()

	profile, err := client.Profile(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", profile.Name, profile.Email)
	if profile.Address != "" {
		fmt.Println("배송지:", profile.Address)
	}

	if balance, err := client.PointBalance(ctx); err == nil {
		fmt.Println("포인트:", strings.TrimSuffix(export.FormatAmount(float64(balance)), "원")+"P")
	}

	items, err := client.Cart(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("장바구니: (비어 있음)")
		return nil
	}
	fmt.Println("장바구니:")
	for _, it := range items {
		fmt.Printf("  %s x%d  %s\n", it.ProductName, it.Quantity, export.FormatAmount(it.UnitPrice*float64(it.Quantity)))
	}
	return nil
}

// noopStore keeps chat usable when no persistence backend can be opened.
type noopStore struct{}

func (noopStore) Save(context.Context, string, session.Record) error { return nil }
func (noopStore) Load(context.Context, string) (session.Record, bool, error) {
	return session.Record{}, false, nil
}
func (noopStore) Clear(context.Context, string) error { return nil }
func (noopStore) Close() error                        { return nil }
