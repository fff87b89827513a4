package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rpggio/stockcount/internal/config"
	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/domain/lifecycle"
	"github.com/rpggio/stockcount/internal/domain/rules"
	"github.com/rpggio/stockcount/internal/filelog"
	"github.com/rpggio/stockcount/internal/jsonstore"
	"github.com/rpggio/stockcount/internal/mcp"
	"github.com/rpggio/stockcount/internal/memstore"
	"github.com/rpggio/stockcount/internal/sqlite"
)

const usage = `Usage: stockcount [flags] <command> [command flags]

Flags:
  -c, -config <path>   YAML config file (default: $STOCKCOUNT_CONFIG_PATH)
  -u, -user <id>       user recorded in the audit trail (default: $USER)
  -h, -help            show this help and exit

Count commands:
  start      -start DATE -end DATE [-last-order DATE] -people N [-notes TEXT] [-by NAME]
  add        -location ID -code CODE -name NAME -qty N -unit UNIT [-price N] [-notes TEXT] [-by NAME]
  delete     -index N
  complete   [-notes TEXT] [-by NAME]
  current | items | locations | history | compare
  items-at   -location ID
  export     -o FILE                      write the current count as XLSX
  reset                                   clear the inconsistent-store flag

Audit commands:
  logs       [-from DATE] [-to DATE] [-op OPERATION] [-user-id ID] [-count ID] [-severity S] [-limit N]
  trail      -count ID
  report     [-from DATE] [-to DATE] [-o FILE]
  verify     -id ID
  cleanup    [-days N]                    default: configured retention
`

type command struct {
	tool  string
	flags func(fs *flag.FlagSet) func() map[string]any
}

func noFlags(*flag.FlagSet) func() map[string]any {
	return func() map[string]any { return nil }
}

// stringFlags binds one string flag per tool parameter. Empty values are omitted.
func stringFlags(names map[string]string) func(fs *flag.FlagSet) func() map[string]any {
	return func(fs *flag.FlagSet) func() map[string]any {
		values := make(map[string]*string, len(names))
		for flagName, param := range names {
			values[param] = fs.String(flagName, "", "")
		}
		return func() map[string]any {
			out := map[string]any{}
			for param, v := range values {
				if *v != "" {
					out[param] = *v
				}
			}
			return out
		}
	}
}

var commands = map[string]command{
	"start": {tool: "start_count", flags: func(fs *flag.FlagSet) func() map[string]any {
		strs := stringFlags(map[string]string{
			"start": "start_date", "end": "end_date", "last-order": "last_order_date",
			"notes": "notes", "by": "performed_by",
		})(fs)
		people := fs.Int("people", 0, "")
		return func() map[string]any {
			params := strs()
			params["people_on_site"] = *people
			return params
		}
	}},
	"add": {tool: "add_item", flags: stringFlags(map[string]string{
		"location": "location", "code": "item_code", "name": "item_name", "qty": "quantity",
		"unit": "unit", "price": "unit_price", "notes": "notes", "by": "added_by",
	})},
	"delete": {tool: "delete_item", flags: func(fs *flag.FlagSet) func() map[string]any {
		index := fs.Int("index", -1, "")
		return func() map[string]any { return map[string]any{"index": *index} }
	}},
	"complete":  {tool: "complete_count", flags: stringFlags(map[string]string{"notes": "notes", "by": "performed_by"})},
	"current":   {tool: "get_current_count", flags: noFlags},
	"items":     {tool: "list_items", flags: noFlags},
	"items-at":  {tool: "items_by_location", flags: stringFlags(map[string]string{"location": "location"})},
	"locations": {tool: "list_locations", flags: noFlags},
	"history":   {tool: "get_history", flags: noFlags},
	"compare":   {tool: "compare_counts", flags: noFlags},
	"reset":     {tool: "clear_inconsistent", flags: noFlags},
	"export":    {tool: "export_count_xlsx", flags: noFlags},
	"logs": {tool: "query_audit_logs", flags: func(fs *flag.FlagSet) func() map[string]any {
		strs := stringFlags(map[string]string{
			"from": "start_date", "to": "end_date", "op": "operation", "user-id": "user_id",
			"count": "count_id", "severity": "severity",
		})(fs)
		limit := fs.Int("limit", 0, "")
		return func() map[string]any {
			params := strs()
			if *limit > 0 {
				params["limit"] = *limit
			}
			return params
		}
	}},
	"trail":  {tool: "count_audit_trail", flags: stringFlags(map[string]string{"count": "count_id"})},
	"report": {tool: "audit_report", flags: stringFlags(map[string]string{"from": "start_date", "to": "end_date"})},
	"verify": {tool: "verify_audit_entry", flags: stringFlags(map[string]string{"id": "id"})},
	"cleanup": {tool: "cleanup_audit_logs", flags: func(fs *flag.FlagSet) func() map[string]any {
		days := fs.Int("days", 0, "")
		return func() map[string]any { return map[string]any{"retention_days": *days} }
	}},
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stockcount", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath string
	fs.StringVar(&configPath, "config", os.Getenv("STOCKCOUNT_CONFIG_PATH"), "")
	fs.StringVar(&configPath, "c", os.Getenv("STOCKCOUNT_CONFIG_PATH"), "")

	var userID string
	fs.StringVar(&userID, "user", os.Getenv("USER"), "")
	fs.StringVar(&userID, "u", os.Getenv("USER"), "")

	fs.Usage = func() { fmt.Fprint(stdout, usage) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command: %s\n", name)
		fs.Usage()
		return 2
	}

	sub := flag.NewFlagSet(name, flag.ContinueOnError)
	sub.SetOutput(stderr)
	collect := cmd.flags(sub)
	var outPath string
	if name == "export" || name == "report" {
		sub.StringVar(&outPath, "o", "", "")
	}
	if err := sub.Parse(fs.Args()[1:]); err != nil {
		return 2
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	level := slog.LevelWarn
	if cfg.Log.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	app, closeApp, err := open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stockcount", "error", err)
		return 1
	}
	defer closeApp()

	params := collect()
	if name == "cleanup" && params["retention_days"] == 0 {
		params["retention_days"] = cfg.Audit.RetentionDays
	}
	tool := cmd.tool
	if name == "report" && outPath != "" {
		tool = "export_audit_report_xlsx"
	}

	var raw json.RawMessage
	if params != nil {
		if raw, err = json.Marshal(params); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}

	ctx = audit.ContextWithMetadata(ctx, audit.Metadata{UserID: userID, SessionID: "cli", UserAgent: "stockcount-cli"})
	result, err := app.Handle(ctx, tool, raw)
	if err != nil {
		if apiErr := mcp.MapError(err); apiErr != nil {
			writeJSON(stderr, apiErr)
		} else {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}

	if exported, ok := result.(mcp.ExportResponse); ok {
		if outPath == "" {
			outPath = exported.FileName
		}
		if err := writeExport(outPath, exported); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote %s\n", outPath)
		return 0
	}

	writeJSON(stdout, result)
	if rejected(result) {
		return 3
	}
	return 0
}

// rejected reports whether a mutation was refused by validation.
func rejected(result any) bool {
	switch r := result.(type) {
	case *lifecycle.StartResult:
		return !r.Accepted
	case *lifecycle.AddItemResult:
		return !r.Accepted
	case *lifecycle.CompleteResult:
		return !r.Accepted
	}
	return false
}

func open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*mcp.Handler, func(), error) {
	var (
		repo    count.Repository
		closeFn = func() {}
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		repo = memstore.New()
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.Store.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, err
			}
		}
		db, err := sqlite.New(cfg.Store.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		repo = sqlite.NewDocumentRepository(db)
		closeFn = func() { _ = db.Close() }
	default:
		store, err := jsonstore.New(cfg.Store.Dir)
		if err != nil {
			return nil, nil, err
		}
		repo = store
	}

	dir, err := filelog.New(cfg.Audit.Dir, "audit-")
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	auditSvc, err := audit.NewService(dir, cfg.Audit.NodeID, logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	manager := lifecycle.NewManager(repo, rules.New(), auditSvc, logger)
	if _, err := manager.Bootstrap(ctx, cfg.Facility.Document()); err != nil {
		closeFn()
		return nil, nil, err
	}
	return mcp.NewHandler(manager, auditSvc), closeFn, nil
}

func writeExport(path string, exported mcp.ExportResponse) error {
	data, err := base64.StdEncoding.DecodeString(exported.Data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(w, "%v\n", v)
	}
}
