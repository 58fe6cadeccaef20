package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/sisilabsai/thesignal/internal/config"
	"github.com/sisilabsai/thesignal/internal/errors"
	"github.com/sisilabsai/thesignal/internal/logging"
	"github.com/sisilabsai/thesignal/internal/mcp"
	"github.com/sisilabsai/thesignal/internal/ops"
	"github.com/sisilabsai/thesignal/internal/record"
	"github.com/sisilabsai/thesignal/internal/signing"
	"github.com/sisilabsai/thesignal/internal/store"
	"github.com/sisilabsai/thesignal/internal/web"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// env holds the resolved configuration and the lazily opened store shared by
// all commands of one invocation.
type env struct {
	cfg     *config.Config
	baseDir string
	log     logging.Logger

	store    store.Backend
	closer   io.Closer
	ingester *ops.Ingester
}

func newEnv(cfg *config.Config, baseDir string) *env {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &env{cfg: cfg, baseDir: baseDir, log: logging.Nop()}
}

// open creates the configured store on first use.
func (e *env) open(ctx context.Context) error {
	if e.store != nil {
		return nil
	}
	s, closer, err := store.New(ctx, e.cfg, e.baseDir)
	if err != nil {
		return err
	}
	e.store, e.closer = s, closer
	e.ingester = ops.NewIngester(s, ops.WithLogger(e.log))
	return nil
}

func (e *env) close() error {
	if e.closer == nil {
		return nil
	}
	err := e.closer.Close()
	e.store, e.closer, e.ingester = nil, nil, nil
	return err
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "thesignal",
		Usage:   "Verify and store signed excerpts of human-written text",
		Version: Version,
		Flags:   configFlags(),
		Before: func(c *cli.Context) error {
			return e.applyFlags(c)
		},
		After: func(_ *cli.Context) error {
			return e.close()
		},
		Commands: []*cli.Command{
			serveCmd(e),
			mcpCmd(e),
			ingestCmd(e),
			fetchCmd(e),
			listCmd(e),
			authorCmd(e),
			authorsCmd(e),
			removeCmd(e),
			overviewCmd(e),
			trustedCmd(e),
			trustCmd(e),
			untrustCmd(e),
			keygenCmd(),
			signCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// configFlags are global flags that overlay the loaded config files.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "store", EnvVars: []string{"THESIGNAL_STORE"}, Usage: "Record store: memory|sqlite|s3|postgres"},
		&cli.StringFlag{Name: "postgres-dsn", EnvVars: []string{"THESIGNAL_POSTGRES_DSN"}, Usage: "PostgreSQL connection string"},
		&cli.StringFlag{Name: "s3-bucket", EnvVars: []string{"THESIGNAL_S3_BUCKET"}, Usage: "S3 bucket holding the record collection"},
		&cli.StringFlag{Name: "s3-key", EnvVars: []string{"THESIGNAL_S3_KEY"}, Usage: "S3 object key of the record collection"},
		&cli.StringFlag{Name: "s3-region", EnvVars: []string{"THESIGNAL_S3_REGION"}, Usage: "S3 region"},
		&cli.StringFlag{Name: "s3-endpoint", EnvVars: []string{"THESIGNAL_S3_ENDPOINT"}, Usage: "Custom S3-compatible endpoint"},
		&cli.StringFlag{Name: "s3-access-key", EnvVars: []string{"THESIGNAL_S3_ACCESS_KEY"}, Usage: "Static S3 access key"},
		&cli.StringFlag{Name: "s3-secret-key", EnvVars: []string{"THESIGNAL_S3_SECRET_KEY"}, Usage: "Static S3 secret key"},
		&cli.StringFlag{Name: "http-bind", EnvVars: []string{"THESIGNAL_HTTP_BIND"}, Usage: "HTTP listen address"},
		&cli.IntFlag{Name: "http-port", EnvVars: []string{"THESIGNAL_HTTP_PORT"}, Usage: "HTTP listen port"},
		&cli.Int64Flag{Name: "max-body-bytes", EnvVars: []string{"THESIGNAL_MAX_BODY_BYTES"}, Usage: "Maximum submission size in bytes"},
		&cli.StringFlag{Name: "log-level", EnvVars: []string{"THESIGNAL_LOG_LEVEL"}, Usage: "Log level: debug|info|warn|error"},
		&cli.StringSliceFlag{Name: "disable-tool", Usage: "MCP tool to exclude (repeatable)"},
	}
}

// applyFlags merges flag and environment values over the config, validates
// the result and builds the logger.
func (e *env) applyFlags(c *cli.Context) error {
	overlay := &config.Config{
		Store:         c.String("store"),
		PostgresDSN:   c.String("postgres-dsn"),
		S3Bucket:      c.String("s3-bucket"),
		S3Key:         c.String("s3-key"),
		S3Region:      c.String("s3-region"),
		S3Endpoint:    c.String("s3-endpoint"),
		S3AccessKey:   c.String("s3-access-key"),
		S3SecretKey:   c.String("s3-secret-key"),
		HTTPBind:      c.String("http-bind"),
		HTTPPort:      c.Int("http-port"),
		MaxBodyBytes:  c.Int64("max-body-bytes"),
		LogLevel:      c.String("log-level"),
		DisabledTools: c.StringSlice("disable-tool"),
	}
	e.cfg = config.Merge(e.cfg, overlay)
	if err := e.cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), 1)
	}
	e.log = logging.New(os.Stderr, e.cfg.LogLevel)
	return nil
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP JSON API",
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			e.log.Info(c.Context, "store ready", "store", e.cfg.Store)
			return web.Run(web.NewServer(e.store, e.ingester, e.cfg, e.log), e.log)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP tool server on stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(e.cfg.DisabledTools); len(unknown) > 0 {
				e.log.Warn(c.Context, "unknown tools in disabled_tools", "tools", unknown)
			}
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			return mcp.Run(e.store, e.ingester, e.cfg, Version)
		},
	}
}

// ingestCmd creates the ingest command.
func ingestCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Verify and store a signed submission (reads JSON from stdin)",
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("submission JSON must be piped via stdin"))
			}
			data, err := readStdin(e.cfg.MaxBodyBytes)
			if err != nil {
				return outputError(err)
			}
			sub, err := record.ParseSubmission(data)
			if err != nil {
				return outputError(err)
			}

			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := e.ingester.Ingest(c.Context, sub)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output.Response())
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a record by ID",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := ops.Fetch(c.Context, e.store, ops.FetchInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List records, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Case-insensitive substring filter"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Usage: "Skip first N results"},
		},
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := ops.List(c.Context, e.store, ops.ListInput{
				Query:  c.String("query"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// authorCmd creates the author command.
func authorCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "author",
		Usage:     "Show an author's profile and records",
		ArgsUsage: "<fingerprint>",
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := ops.Author(c.Context, e.store, c.Args().First())
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// authorsCmd creates the authors command.
func authorsCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "authors",
		Usage: "Summarize authors by record count",
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := ops.Authors(c.Context, e.store)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// removeCmd creates the remove command.
func removeCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a record by ID",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := ops.Remove(c.Context, e.store, ops.RemoveInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// trustedCmd creates the trusted command.
func trustedCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "trusted",
		Usage: "List trusted publisher domains",
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := ops.TrustedDomains(c.Context, e.store)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// trustCmd creates the trust command.
func trustCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "trust",
		Usage:     "Add a publisher domain to the trusted list",
		ArgsUsage: "<domain|url>",
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := ops.Trust(c.Context, e.store, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// untrustCmd creates the untrust command.
func untrustCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "untrust",
		Usage:     "Remove a publisher domain from the trusted list",
		ArgsUsage: "<domain|url>",
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := ops.Untrust(c.Context, e.store, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// overviewCmd creates the overview command.
func overviewCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "overview",
		Usage: "Show collection statistics",
		Action: func(c *cli.Context) error {
			if err := e.open(c.Context); err != nil {
				return outputError(err)
			}
			output, err := ops.Overview(c.Context, e.store)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// keygenOutput is the keypair printed by keygen.
type keygenOutput struct {
	PublicKey   string `json:"publicKey"`
	PrivateKey  string `json:"privateKey"`
	Fingerprint string `json:"fingerprint"`
}

// keygenCmd creates the keygen command.
func keygenCmd() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate an Ed25519 signing keypair",
		Action: func(_ *cli.Context) error {
			pub, seed, err := signing.GenerateKey()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			fp, err := signing.Fingerprint(pub)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(keygenOutput{PublicKey: pub, PrivateKey: seed, Fingerprint: fp})
		},
	}
}

// signCmd creates the sign command.
func signCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Sign an excerpt and print the submission (excerpt from flag or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Source page URL"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Source page title"},
			&cli.StringFlag{Name: "excerpt", Aliases: []string{"e"}, Usage: "Excerpt text (read from stdin when omitted)"},
			&cli.StringFlag{Name: "created-at", Usage: "Creation timestamp (defaults to now)"},
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, EnvVars: []string{"THESIGNAL_SIGNING_KEY"}, Usage: "Base64 private key seed"},
			&cli.StringFlag{Name: "author-name", Usage: "Author display name"},
			&cli.StringFlag{Name: "author-handle", Usage: "Author handle"},
			&cli.StringFlag{Name: "author-url", Usage: "Author homepage"},
			&cli.StringFlag{Name: "author-bio", Usage: "Author bio"},
		},
		Action: func(c *cli.Context) error {
			excerpt := c.String("excerpt")
			if excerpt == "" && stdinHasData() {
				data, err := readStdin(e.cfg.MaxBodyBytes)
				if err != nil {
					return outputError(err)
				}
				excerpt = string(data)
			}

			key, err := signingKey(c.String("key"))
			if err != nil {
				return outputError(err)
			}
			pub, err := signing.PublicKey(key)
			if err != nil {
				return outputError(errors.NewInvalidRequest("invalid signing key"))
			}

			createdAt := c.String("created-at")
			if createdAt == "" {
				createdAt = record.FormatTime(time.Now())
			}

			sub := &record.Submission{
				Version:     signing.Version,
				URL:         c.String("url"),
				Title:       c.String("title"),
				Excerpt:     excerpt,
				CreatedAt:   createdAt,
				PublicKey:   pub,
				ContentHash: signing.ContentHash(excerpt),
			}
			author := &record.AuthorInput{
				Name:   c.String("author-name"),
				Handle: c.String("author-handle"),
				URL:    c.String("author-url"),
				Bio:    c.String("author-bio"),
			}
			if record.SanitizeAuthor(author) != nil {
				sub.Author = author
			}

			if sub.Signature, err = signing.Sign(key, sub.Fields()); err != nil {
				return outputError(errors.NewInternal(err))
			}
			if errs := record.Validate(sub); len(errs) > 0 {
				return outputError(errors.NewValidationFailed(errs))
			}

			return outputJSON(sub)
		},
	}
}

// signingKey returns key, prompting on the terminal when it is empty.
func signingKey(key string) (string, error) {
	if key = strings.TrimSpace(key); key != "" {
		return key, nil
	}
	if !isTerminal() {
		return "", errors.NewInvalidRequest("signing key is required (--key or THESIGNAL_SIGNING_KEY)")
	}
	fmt.Fprint(os.Stderr, "Signing key: ")
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if key = strings.TrimSpace(string(b)); key == "" {
		return "", errors.NewInvalidRequest("signing key is required")
	}
	return key, nil
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sigErr *errors.SignalError
	if stderrors.As(err, &sigErr) {
		msg := fmt.Sprintf("[%s] %s", sigErr.Code, sigErr.Message)
		// The operator runs the CLI locally, so backend causes are shown.
		if cause := sigErr.Unwrap(); cause != nil && sigErr.Private() {
			msg += ": " + cause.Error()
		}
		return cli.Exit(msg, 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all of stdin, failing if it exceeds limit bytes.
// A non-positive limit means no limit.
func readStdin(limit int64) ([]byte, error) {
	var r io.Reader = os.Stdin
	if limit > 0 {
		r = io.LimitReader(os.Stdin, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, errors.NewPayloadTooLarge(limit)
	}
	return data, nil
}
