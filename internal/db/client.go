// Package db stores material libraries in SurrealDB over an auto-reconnecting connection.
package db

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// WebSocket upgrade fails when wss negotiates HTTP/2.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Reconnect policy for the library connection.
const (
	dialTimeout       = 5 * time.Second
	retryInitialDelay = time.Second
	retryMaxDelay     = 30 * time.Second
	retryMaxAttempts  = 10
)

// ErrSchemaIncomplete is returned when a library table is missing after
// schema initialization.
var ErrSchemaIncomplete = errors.New("material library schema incomplete")

// schemaTables are the tables SchemaSQL defines, in wipe order: relations
// before the nodes they reference.
var schemaTables = []string{"wires", "material_node", "material_library"}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// baseURL strips the /rpc suffix; gorillaws appends it itself.
func (c Config) baseURL() string {
	return strings.TrimSuffix(c.URL, "/rpc")
}

func (c Config) auth() surrealdb.Auth {
	if c.AuthLevel == "database" {
		return surrealdb.Auth{
			Namespace: c.Namespace,
			Database:  c.Database,
			Username:  c.Username,
			Password:  c.Password,
		}
	}
	return surrealdb.Auth{Username: c.Username, Password: c.Password}
}

// Client is an authenticated connection to the database holding the
// material libraries.
type Client struct {
	conn *rews.Connection[*gorillaws.Connection]
	db   *surrealdb.DB
	log  *slog.Logger
}

// NewClient connects, signs in and selects the namespace and database.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	sdkLogger := logger.New(log.Handler())
	codec := surrealcbor.New()

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     cfg.baseURL(),
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      sdkLogger,
			}), nil
		},
		dialTimeout,
		codec,
		sdkLogger,
	)
	retryer := rews.NewExponentialBackoffRetryer()
	retryer.InitialDelay = retryInitialDelay
	retryer.MaxDelay = retryMaxDelay
	retryer.Multiplier = 2.0
	retryer.MaxRetries = retryMaxAttempts
	conn.Retryer = retryer

	log.Info("connecting to material library database", "url", cfg.URL, "namespace", cfg.Namespace, "database", cfg.Database)
	if err := conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("from connection: %w", err)
	}
	if _, err := db.SignIn(ctx, cfg.auth()); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("signin as %s (%s): %w", cfg.Username, cfg.AuthLevel, err)
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	return &Client{conn: conn, db: db, log: log}, nil
}

// Close closes the connection.
func (c *Client) Close(ctx context.Context) error {
	c.log.Info("closing material library database")
	return c.conn.Close(ctx)
}

// InitSchema defines the library tables and checks that all of them exist.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	tables, err := c.Tables(ctx)
	if err != nil {
		return err
	}
	for _, t := range schemaTables {
		if !slices.Contains(tables, t) {
			return fmt.Errorf("%w: table %s", ErrSchemaIncomplete, t)
		}
	}
	c.log.Debug("material library schema ready", "tables", tables)
	return nil
}

type dbInfo struct {
	Tables map[string]any `json:"tables"`
}

// Tables lists the tables defined in the selected database, sorted.
func (c *Client) Tables(ctx context.Context) ([]string, error) {
	results, err := surrealdb.Query[dbInfo](ctx, c.db, "INFO FOR DB", nil)
	if err != nil {
		return nil, fmt.Errorf("info for db: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	var names []string
	for name := range (*results)[0].Result.Tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Wipe deletes every library, node and wire while keeping the schema.
// Use for testing only.
func (c *Client) Wipe(ctx context.Context) error {
	c.log.Warn("wiping material libraries")
	for _, table := range schemaTables {
		if _, err := surrealdb.Query[any](ctx, c.db, fmt.Sprintf("DELETE %s", table), nil); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// OpenLibrary connects to the database, initializes the schema and
// registers root. Closing the returned library closes the connection.
func OpenLibrary(ctx context.Context, cfg Config, root string, log *slog.Logger) (*Library, error) {
	c, err := NewClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	lib := NewLibrary(c)
	if err := c.InitSchema(ctx); err != nil {
		_ = c.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	if err := lib.AddLibrary(ctx, root); err != nil {
		_ = c.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return lib, nil
}
