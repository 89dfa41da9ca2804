package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/consumer"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/notify"
	"github.com/safar/storefront/internal/receipts"
	"github.com/safar/storefront/internal/shutdown"
	"golang.org/x/sync/errgroup"
)

func main() {
	typesFlag := flag.String("types", strings.Join(models.DocumentTypes, ","), "comma separated document types to consume")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{Service: "receipt-consumer"}).Error("load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Service: "receipt-consumer",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	docTypes, err := parseTypes(*typesFlag)
	if err != nil {
		log.Error("parse -types", "error", err)
		os.Exit(2)
	}

	ctx, stop := shutdown.WithSignals(context.Background())
	defer stop()

	if err := run(ctx, cfg, docTypes, log); err != nil {
		log.Error("receipt consumer exited", "error", err)
		os.Exit(1)
	}
	log.Info("receipt consumer stopped")
}

func run(ctx context.Context, cfg *config.Config, docTypes []string, log *slog.Logger) error {
	var db *sql.DB
	if cfg.Receipts.Backend == config.ReceiptStorePostgres {
		conn, err := database.NewConnection(&cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer conn.Close()
		db = conn
	}

	store, closeStore, err := receipts.New(ctx, cfg.Receipts, db)
	if err != nil {
		return fmt.Errorf("receipt store: %w", err)
	}
	defer closeStore()

	mailer := notify.New(cfg.Mail, log)
	router := events.NewRouter(cfg.Broker)
	dial := consumer.AMQPDialer(cfg.Broker)

	g, ctx := errgroup.WithContext(ctx)
	for _, docType := range docTypes {
		queue, err := router.QueueFor(docType)
		if err != nil {
			return err
		}

		c := consumer.New(consumer.Options{
			DocumentType: docType,
			Queue:        queue,
			Attempts:     cfg.Broker.ConnectAttempts,
			RetryDelay:   cfg.Broker.RetryDelay,
		}, dial, store, mailer, log)

		g.Go(func() error {
			return c.Run(ctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, consumer.ErrBrokerUnavailable) {
		log.Error("giving up on broker", "host", cfg.Broker.Host, "port", cfg.Broker.Port)
	}
	return err
}

// parseTypes splits the -types flag, dropping blanks and duplicates.
func parseTypes(raw string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		docType := strings.ToLower(strings.TrimSpace(part))
		if docType == "" || seen[docType] {
			continue
		}
		if !models.IsDocumentType(docType) {
			return nil, fmt.Errorf("unknown document type %q", docType)
		}
		seen[docType] = true
		out = append(out, docType)
	}
	if len(out) == 0 {
		return nil, errors.New("no document types given")
	}
	return out, nil
}
