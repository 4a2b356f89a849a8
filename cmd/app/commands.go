package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/blitlinks/internal"
	"github.com/starford/blitlinks/internal/apperr"
	"github.com/starford/blitlinks/internal/backup"
	"github.com/starford/blitlinks/internal/linkservice"
	"github.com/starford/blitlinks/internal/models"
	pkgconfig "github.com/starford/blitlinks/pkg/config"
)

// app carries the streams commands read from and write to.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.Command {
	a := &app{in: in, out: out, errOut: errOut}

	return &cli.Command{
		Name:    "blitlinks",
		Usage:   "Save links with a shortcut and find them again by prefix",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (defaults apply when it does not exist)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search links; an empty query lists everything",
				ArgsUsage: "[query]",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    a.search,
			},
			{
				Name:  "save",
				Usage: "Create a link, or replace every field of link --id",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "Id of the link to replace"},
					&cli.StringFlag{Name: "text", Usage: "Free-form notes"},
					&cli.StringFlag{Name: "link", Usage: "URL"},
					&cli.StringFlag{Name: "title", Usage: "Title"},
					&cli.StringFlag{Name: "shortcut", Usage: "Short keyword"},
					jsonFlag(),
				},
				Action: a.save,
			},
			{
				Name:      "get",
				Usage:     "Show one link",
				ArgsUsage: "<id>",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    a.get,
			},
			{
				Name:   "list",
				Usage:  "List every link, newest first",
				Flags:  []cli.Flag{jsonFlag()},
				Action: a.list,
			},
			{
				Name:   "find",
				Usage:  "Read one query per line from stdin; only the newest completed query is printed",
				Action: a.find,
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the search index from the stored links",
				Action: a.reindex,
			},
			{
				Name:      "export",
				Usage:     "Write every link to a YAML backup",
				ArgsUsage: "<file>",
				Action:    a.export,
			},
			{
				Name:      "import",
				Usage:     "Add the links of a YAML backup",
				ArgsUsage: "<file>",
				Action:    a.importFile,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API with live events and metrics",
				Action: a.serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: a.mcp,
			},
		},
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print results as JSON"}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// withEngine opens the store for a one-shot command. Logs go to stderr so
// stdout stays clean for results.
func (a *app) withEngine(ctx context.Context, cmd *cli.Command, fn func(*internal.Engine) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(a.errOut, cfg.App.LogLevel)
	eng, err := internal.OpenEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()
	return fn(eng)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

func (a *app) search(ctx context.Context, cmd *cli.Command) error {
	return a.withEngine(ctx, cmd, func(eng *internal.Engine) error {
		links, err := eng.Service.Search(ctx, cmd.Args().First())
		if err != nil {
			return err
		}
		return a.printLinks(links, cmd.Bool("json"))
	})
}

func (a *app) save(ctx context.Context, cmd *cli.Command) error {
	var id int64
	if s := cmd.String("id"); s != "" {
		var err error
		if id, err = parseID(s); err != nil {
			return err
		}
	}
	f := models.Fields{
		Text:     cmd.String("text"),
		Link:     cmd.String("link"),
		Title:    cmd.String("title"),
		Shortcut: cmd.String("shortcut"),
	}
	return a.withEngine(ctx, cmd, func(eng *internal.Engine) error {
		l, err := eng.Service.Save(ctx, id, f)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return a.printJSON(l)
		}
		_, err = fmt.Fprintln(a.out, l.ID)
		return err
	})
}

func (a *app) get(ctx context.Context, cmd *cli.Command) error {
	id, err := parseID(cmd.Args().First())
	if err != nil {
		return err
	}
	return a.withEngine(ctx, cmd, func(eng *internal.Engine) error {
		l, err := eng.Service.Get(ctx, id)
		if err != nil {
			return err
		}
		if cmd.Bool("json") {
			return a.printJSON(l)
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "id\t%d\n", l.ID)
		fmt.Fprintf(tw, "shortcut\t%s\n", l.Shortcut)
		fmt.Fprintf(tw, "title\t%s\n", l.Title)
		fmt.Fprintf(tw, "link\t%s\n", l.Link)
		fmt.Fprintf(tw, "text\t%s\n", l.Text)
		return tw.Flush()
	})
}

func (a *app) list(ctx context.Context, cmd *cli.Command) error {
	return a.withEngine(ctx, cmd, func(eng *internal.Engine) error {
		links, err := eng.Service.ListAll(ctx)
		if err != nil {
			return err
		}
		return a.printLinks(links, cmd.Bool("json"))
	})
}

// find runs every stdin line as a search in the same session, the way a
// search box fires on each keystroke. Lines are issued in order and run
// concurrently; a result is printed only if no newer line had been issued
// before it completed, and never after the result of a newer line.
func (a *app) find(ctx context.Context, cmd *cli.Command) error {
	return a.withEngine(ctx, cmd, func(eng *internal.Engine) error {
		sess := linkservice.NewSession(eng.Service)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			printed uint64
			first   error
		)
		scanner := bufio.NewScanner(a.in)
		for scanner.Scan() {
			req := sess.Begin(ctx, scanner.Text())
			wg.Add(1)
			go func() {
				defer wg.Done()
				links, err := req.Wait()
				if errors.Is(err, apperr.ErrSuperseded) {
					return
				}

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					fmt.Fprintf(a.errOut, "%q: %v\n", req.Query(), err)
					if first == nil {
						first = err
					}
					return
				}
				if req.Generation() < printed {
					return
				}
				printed = req.Generation()
				fmt.Fprintf(a.out, "> %s\n", req.Query())
				_ = a.printLinks(links, false)
			}()
		}
		wg.Wait()
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read queries: %w", err)
		}
		return first
	})
}

func (a *app) reindex(ctx context.Context, cmd *cli.Command) error {
	return a.withEngine(ctx, cmd, func(eng *internal.Engine) error {
		n, err := eng.Service.Reindex(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.out, "indexed %d links\n", n)
		return err
	})
}

func (a *app) export(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("export: file argument is required")
	}
	return a.withEngine(ctx, cmd, func(eng *internal.Engine) error {
		n, err := backup.Export(ctx, eng.Service, path)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.out, "exported %d links to %s\n", n, path)
		return err
	})
}

func (a *app) importFile(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("import: file argument is required")
	}
	return a.withEngine(ctx, cmd, func(eng *internal.Engine) error {
		n, err := backup.Import(ctx, eng.Service, path)
		if err != nil {
			return fmt.Errorf("imported %d links before failing: %w", n, err)
		}
		_, err = fmt.Fprintf(a.out, "imported %d links from %s\n", n, path)
		return err
	})
}

func (a *app) serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func (a *app) mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx,
		internal.WithConfig(cfg),
		internal.WithLogOutput(a.errOut),
		internal.WithVersion(version),
	)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printLinks(links []models.Link, asJSON bool) error {
	if asJSON {
		return a.printJSON(links)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, l := range links {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", l.ID, l.Shortcut, l.Title, l.Link)
	}
	return tw.Flush()
}
