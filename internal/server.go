package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/extra/redisotel/v8"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2beens/gymlog/internal/cache"
	"github.com/2beens/gymlog/internal/config"
	"github.com/2beens/gymlog/internal/db"
	"github.com/2beens/gymlog/internal/gymlog"
	"github.com/2beens/gymlog/internal/gymlog/api"
	"github.com/2beens/gymlog/internal/gymlog/reconcile"
	"github.com/2beens/gymlog/internal/gymlog/session"
	"github.com/2beens/gymlog/internal/middleware"
	"github.com/2beens/gymlog/internal/store"
	"github.com/2beens/gymlog/internal/store/memstore"
	"github.com/2beens/gymlog/internal/store/postgres"
	"github.com/2beens/gymlog/internal/store/sqlite"
	"github.com/2beens/gymlog/internal/telemetry/metrics"
	"github.com/2beens/gymlog/internal/telemetry/tracing"
	"github.com/2beens/gymlog/pkg"
)

const redisKeyPrefix = "gymlog:"

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string
	apiTokenHash      string // bcrypt hash of the API token, empty disables auth

	config      *config.Config
	dbPool      *pgxpool.Pool
	recordStore store.Store
	redisClient *redis.Client
	caches      *session.Caches
	machine     *session.Machine

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	APITokenHash            string
	DBPassword              string
	RedisPassword           string
	HoneycombTracingEnabled bool
	RunMigrations           bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	cfg := params.Config
	s := &Server{
		config:       cfg,
		versionInfo:  params.VersionInfo,
		apiTokenHash: params.APITokenHash,
	}

	var extraCollectors []prometheus.Collector
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		poolParams := db.NewDBPoolParams{
			DBHost:         cfg.PostgresHost,
			DBPort:         cfg.PostgresPort,
			DBName:         cfg.PostgresDBName,
			DBPassword:     params.DBPassword,
			TracingEnabled: params.HoneycombTracingEnabled,
		}
		if params.RunMigrations {
			if err := db.Migrate(poolParams.ConnString()); err != nil {
				return nil, fmt.Errorf("migrate db: %w", err)
			}
		}

		dbPool, err := db.NewDBPool(ctx, poolParams)
		if err != nil {
			return nil, fmt.Errorf("new db pool: %w", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			log.Warnf("failed to ping db: %s", err)
		}

		s.dbPool = dbPool
		s.recordStore = postgres.New(dbPool)
		extraCollectors = append(extraCollectors, pgxpoolprometheus.NewCollector(
			dbPool,
			map[string]string{"db_name": cfg.PostgresDBName},
		))
	case config.StoreBackendSqlite:
		sqliteStore, err := sqlite.Open(ctx, cfg.SqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		s.recordStore = sqliteStore
	default:
		log.Warnln("using in-memory record store, nothing will survive a restart")
		s.recordStore = memstore.New()
	}

	s.promRegistry = metrics.SetupPrometheus(extraCollectors...)
	s.metricsManager = metrics.NewManager("gymlog", "main", s.promRegistry)
	s.metricsManager.GaugeLifeSignal.Set(0)

	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: params.RedisPassword,
			DB:       0, // use default DB
		})
		if params.HoneycombTracingEnabled {
			rdb.AddHook(redisotel.NewTracingHook())
		}

		rdbStatus := rdb.Ping(ctx)
		if err := rdbStatus.Err(); err != nil {
			log.Errorf("--> failed to ping redis: %s", err)
		} else {
			log.Debugf("redis ping: %s", rdbStatus.Val())
		}
		s.redisClient = rdb
	}

	var cacheBackend cache.Backend
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		cacheBackend = cache.NewRedis(s.redisClient, redisKeyPrefix)
	default:
		cacheBackend = cache.NewFreecache(cfg.CacheSizeMB)
	}
	log.Debugf("using [%s] cache backend, ttl: %ds", cfg.CacheBackend, cfg.CacheTTLSeconds)

	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "gymlog-service")
	if err != nil {
		return nil, err
	}
	s.otelShutdown = otelShutdown

	records := gymlog.NewRecords(s.recordStore)
	s.caches = session.NewCaches(
		cacheBackend,
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		s.metricsManager,
	)
	// prompts are answered per request, see api.ConfirmHeader
	s.machine = session.NewMachine(
		records,
		reconcile.NewReconciler(records, s.metricsManager),
		s.caches,
		session.NeverConfirm,
		s.metricsManager,
	)

	return s, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("gymlog-router"))

	r.HandleFunc("/", s.handleRoot).Methods("GET").Name("root")
	r.HandleFunc("/health", s.handleHealth).Methods("GET").Name("health")
	r.HandleFunc("/version", s.handleVersion).Methods("GET").Name("version")

	var rateLimiter middleware.RequestRateLimiter
	if s.redisClient != nil {
		rateLimiter = redis_rate.NewLimiter(s.redisClient)
	}
	api.NewHandler(s.machine).SetupRoutes(r, rateLimiter, s.metricsManager, s.config.WriteRateLimitPerMin)

	// all the rest - unhandled paths
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.apiTokenHash)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors(s.config.AllowedOrigins))
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponse(w, "gymlog", http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.dbPool != nil {
		if err := s.dbPool.Ping(r.Context()); err != nil {
			log.Errorf("health: ping db: %s", err)
			pkg.WriteTextResponse(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	pkg.WriteTextResponse(w, "ok", http.StatusOK)
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponse(w, s.versionInfo, http.StatusOK)
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", otelhttp.NewHandler(
		promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}),
		"metrics",
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
		log.Warnln("server shut down")
	}

	// background cache refreshes still use the store and redis
	s.caches.Wait()
	log.Trace("cache refreshes done ...")

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if err := s.recordStore.Close(); err != nil {
		log.Errorf("failed to close record store: %s", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
		log.Warnln("metrics server shut down")
	}
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
