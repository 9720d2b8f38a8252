// Command seed loads sample users and provider availability into a store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"wellness-api/internal/config"
	"wellness-api/internal/logging"
	"wellness-api/internal/model"
	"wellness-api/internal/scheduling"
	"wellness-api/internal/store"
	"wellness-api/internal/store/sqlite"
)

type seedStore interface {
	scheduling.Store
	CreateUser(ctx context.Context, u *model.User) error
}

type options struct {
	driver   string
	dsn      string
	path     string
	days     int
	slotLen  time.Duration
	start    time.Time
	provider []string
}

var sampleUsers = []model.User{
	{Name: "Ada Obi", PhoneNumber: "+2348010000001", Emails: []string{"ada@example.com"}},
	{Name: "Tunde Bello", PhoneNumber: "+2348010000002", Emails: []string{"tunde@example.com"}},
	{Name: "Dr. Kemi Ade", PhoneNumber: "+2348010000003", Emails: []string{"kemi@clinic.example.com"}},
}

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.New(os.Stderr, os.Getenv("LOG_LEVEL"), "console")
	if err := run(ctx, os.Args[1:], os.Stdout, log); err != nil {
		log.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, log zerolog.Logger) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	st, closeFn, err := open(ctx, opts)
	if err != nil {
		return err
	}
	defer closeFn()
	return seed(ctx, st, opts, out, log)
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var o options
	fs.StringVar(&o.driver, "driver", envOr("STORE_DRIVER", config.DriverSQLite), "store driver (postgres, sqlite)")
	fs.StringVar(&o.dsn, "dsn", os.Getenv("DATABASE_URL"), "postgres connection string")
	fs.StringVar(&o.path, "sqlite", envOr("SQLITE_PATH", "wellness.db"), "sqlite database file")
	fs.IntVar(&o.days, "days", 5, "days of availability to create")
	fs.DurationVar(&o.slotLen, "slot", 30*time.Minute, "slot length")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.days <= 0 || o.slotLen <= 0 {
		return o, fmt.Errorf("days and slot must be positive")
	}
	// tomorrow, 09:00 UTC
	o.start = time.Now().UTC().Truncate(24 * time.Hour).Add(24*time.Hour + 9*time.Hour)
	o.provider = []string{"provider-1", "provider-2"}
	return o, nil
}

func open(ctx context.Context, o options) (seedStore, func(), error) {
	switch o.driver {
	case config.DriverSQLite:
		st, err := sqlite.Open(o.path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, o.dsn)
		if err != nil {
			return nil, nil, err
		}
		st := store.New(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown driver %q", o.driver)
}

// seed creates the sample users and, per provider, morning slots
// (09:00-12:00) on each of the following days.
func seed(ctx context.Context, st seedStore, o options, out io.Writer, log zerolog.Logger) error {
	for _, u := range sampleUsers {
		if err := st.CreateUser(ctx, &u); err != nil {
			return fmt.Errorf("user %s: %w", u.Name, err)
		}
		fmt.Fprintf(out, "user %s health_id=%s id=%s\n", u.Name, u.HealthID, u.ID)
	}

	eng := scheduling.New(st, scheduling.Config{Logger: log})
	n := 0
	for _, p := range o.provider {
		for d := 0; d < o.days; d++ {
			dayStart := o.start.AddDate(0, 0, d)
			for s := dayStart; !s.Add(o.slotLen).After(dayStart.Add(3 * time.Hour)); s = s.Add(o.slotLen) {
				if _, err := eng.AddSlot(ctx, p, s, s.Add(o.slotLen)); err != nil {
					return fmt.Errorf("slot %s %s: %w", p, s, err)
				}
				n++
			}
		}
	}
	fmt.Fprintf(out, "%d slots for %d providers\n", n, len(o.provider))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
