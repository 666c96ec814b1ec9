package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"example.com/grimoire/internal/auth"
	"example.com/grimoire/internal/config"
	"example.com/grimoire/internal/httpapi"
	"example.com/grimoire/internal/live"
	"example.com/grimoire/internal/migrate"
	"example.com/grimoire/internal/roomsync"
	"example.com/grimoire/internal/store"
	"example.com/grimoire/internal/telemetry"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	shutdownTracing func(context.Context) error

	srv *http.Server
}

// backends groups the storage implementations selected by ROOM_STORE.
type backends struct {
	rooms   roomsync.RoomStore
	audit   roomsync.AuditStore
	members httpapi.MemberRepo
	users   httpapi.UserRepo
	stats   httpapi.StatsRepo
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.shutdownTracing = shutdown

	b, err := a.openBackends(ctx)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	authSvc := auth.NewService([]byte(cfg.Auth.Secret))
	hub := live.NewHub(log.With("component", "live"), authSvc, b.members, b.rooms)
	ctrl := roomsync.NewController(b.rooms, b.audit, b.members, log.With("component", "sync"),
		roomsync.WithMaxRetries(cfg.Sync.MaxRetries),
		roomsync.WithPublisher(hub),
	)

	router := httpapi.NewRouter(httpapi.Routes{
		Verifier: authSvc,
		Auth: &httpapi.AuthHandler{
			Users:    b.users,
			Stats:    b.stats,
			Auth:     authSvc,
			TokenTTL: cfg.Auth.TokenTTL,
			Log:      log,
		},
		Rooms: &httpapi.RoomHandler{Rooms: b.rooms, Members: b.members, Stats: b.stats, Log: log},
		Sync:  &httpapi.SyncHandler{Sync: ctrl, Verifier: authSvc, Stats: b.stats, Log: log},
		Live:  hub.ServeWS,
	})

	a.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}
	return a, nil
}

func (a *App) openBackends(ctx context.Context) (backends, error) {
	if a.cfg.Store == "memory" {
		a.log.Warn("using in-memory storage, all rooms are lost on restart")
		return backends{
			rooms:   roomsync.NewMemoryRoomStore(),
			audit:   roomsync.NewMemoryAuditStore(),
			members: roomsync.NewMemoryMembership(),
			users:   store.NewMemoryUserStore(),
			stats:   store.NewMemoryStatsStore(),
		}, nil
	}

	if a.cfg.Postgres.RunMigrations {
		if err := migrate.Up(ctx, a.cfg.Postgres.URL, a.cfg.Postgres.MigrationsDir, a.log); err != nil {
			return backends{}, err
		}
	}

	// --- Postgres ---
	dbpool, err := pgxpool.New(ctx, a.cfg.Postgres.URL)
	if err != nil {
		return backends{}, fmt.Errorf("pgxpool: %w", err)
	}
	a.db = dbpool

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		return backends{}, fmt.Errorf("postgres ping: %w", err)
	}

	b := backends{
		rooms:   store.NewRoomStore(dbpool),
		audit:   store.NewAuditStore(dbpool),
		members: store.NewMemberStore(dbpool),
		users:   store.NewUserStore(dbpool),
		stats:   store.NewStatsStore(dbpool),
	}
	if a.cfg.Store != "redis" {
		return b, nil
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr: a.cfg.Redis.Addr,
		DB:   a.cfg.Redis.DB,
	})
	a.rdb = rdb
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return backends{}, fmt.Errorf("redis ping (%s db=%d): %w", a.cfg.Redis.Addr, a.cfg.Redis.DB, err)
	}
	b.rooms = store.NewRedisRoomStore(rdb, a.cfg.Redis.RoomTTL)
	return b, nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.srv.Handler
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr, "store", a.cfg.Store)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	_ = a.Close(context.Background())
	return err
}

// Close releases connections and flushes traces. It is best-effort.
func (a *App) Close(ctx context.Context) error {
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.log.Warn("flush traces", "err", err)
		}
	}
	return nil
}
