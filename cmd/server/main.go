package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"beantrack/internal/api"
	"beantrack/internal/config"
	"beantrack/internal/db"
	"beantrack/internal/model"
	"beantrack/internal/notify"
	"beantrack/internal/report"
	"beantrack/internal/store"
	"beantrack/internal/supply"
	"beantrack/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: beantrack <init|serve>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\nUsage: beantrack <init|serve>\n", os.Args[1])
		os.Exit(1)
	}
}

func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	envFile := fs.String("env", "", "path to .env file")
	dbPath := fs.String("db", "", "path to SQLite database file (overrides env)")
	fs.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	if _, err := os.Stat(cfg.DB.Path); err == nil {
		fmt.Fprintf(os.Stderr, "Error: database file %s already exists\n", cfg.DB.Path)
		os.Exit(1)
	}

	database, password, err := initDatabase(cfg.DB.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	database.Close()

	printBootstrap(cfg.DB.Path, password)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	envFile := fs.String("env", "", "path to .env file")
	dbPath := fs.String("db", "", "path to SQLite database file (overrides env)")
	addr := fs.String("addr", "", "listen address (overrides env)")
	fs.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log := logger.Must(logger.New())
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if cfg.Auth.JWTSecret == "" {
		secret, err := generatePassword(32)
		if err != nil {
			log.Fatal("generating JWT secret", zap.Error(err))
		}
		cfg.Auth.JWTSecret = secret
		log.Warn("JWT secret auto-generated, tokens will be invalidated on restart")
	}

	// Auto-init on first run.
	if _, err := os.Stat(cfg.DB.Path); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.DB.Path)
		if err != nil {
			log.Fatal("initializing database", zap.Error(err))
		}
		database.Close()
		printBootstrap(cfg.DB.Path, password)
	}

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		log.Fatal("opening database", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatal("migrating database", zap.Error(err))
	}

	hooks := notify.Hooks{notify.ZapHook(logger.Named(log, "notify"))}
	svc := supply.New(database, hooks, logger.Named(log, "supply"))

	reporter := report.New(database, logger.Named(log, "report"))
	if cfg.Report.CronSchedule != "" {
		if err := reporter.Start(cfg.Report.CronSchedule); err != nil {
			log.Fatal("starting pipeline report", zap.Error(err))
		}
		defer reporter.Stop()
	}

	router := api.NewRouter(database, svc, cfg.Auth.JWTSecret, logger.Named(log, "api"))
	handler := api.LoggingMiddleware(logger.Named(log, "http"))(router)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

// initDatabase creates a new database, runs migrations, and bootstraps the
// admin principal who governs role assignment.
func initDatabase(path string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	cleanup := func() {
		database.Close()
		os.Remove(path)
	}

	if err := db.Migrate(database); err != nil {
		cleanup()
		return nil, "", fmt.Errorf("running migrations: %w", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		cleanup()
		return nil, "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		cleanup()
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	ctx := context.Background()
	if _, err := store.CreateUser(ctx, database, "admin", string(hash)); err != nil {
		cleanup()
		return nil, "", fmt.Errorf("creating admin user: %w", err)
	}
	if err := store.GrantRole(ctx, database, "admin", model.RoleAdmin); err != nil {
		cleanup()
		return nil, "", fmt.Errorf("granting admin role: %w", err)
	}

	return database, password, nil
}

func printBootstrap(dbPath, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: admin\n")
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password — it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
