//go:build integration_test || all_tests

package integration_testing

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/2beens/gymlog/internal"
	"github.com/2beens/gymlog/internal/config"
	"github.com/2beens/gymlog/internal/db"
)

const (
	serverPort = 9000
	serverHost = "localhost"
	dbName     = "gymlog"
	dbPassword = "postgres"
)

var serverEndpoint = fmt.Sprintf("http://%s:%d", serverHost, serverPort)

type Suite struct {
	DB         *sql.DB
	dbParams   db.NewDBPoolParams
	dockerPool *dockertest.Pool
	server     *internal.Server
	teardown   []func()
}

func newSuite(ctx context.Context) *Suite {
	var err error
	suite := &Suite{
		teardown: make([]func(), 0),
	}

	// uses a sensible default on windows (tcp/http) and linux/osx (socket)
	suite.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not create new dockertest pool: %s", err)
	}
	suite.dockerPool.MaxWait = time.Minute

	// uses pool to try to connect to Docker
	if err = suite.dockerPool.Client.Ping(); err != nil {
		log.Fatalf("could not ping dockertest pool: %s", err)
	}

	redisPort, err := suite.redisSetup()
	if err != nil {
		suite.cleanup()
		log.Fatalf("failed to setup redis: %s", err.Error())
	}

	pgPort, err := suite.postgresSetup()
	if err != nil {
		suite.cleanup()
		log.Fatalf("failed to setup postgres: %s", err)
	}

	cfg := getTestConfig(redisPort, pgPort)
	if err := cfg.Validate(); err != nil {
		suite.cleanup()
		log.Fatalf("invalid test config: %s", err)
	}

	suite.server, err = internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:                  cfg,
			VersionInfo:             "test-version-info",
			DBPassword:              dbPassword,
			RedisPassword:           "",
			HoneycombTracingEnabled: false,
			RunMigrations:           true,
		},
	)
	if err != nil {
		suite.cleanup()
		log.Fatalf("new server: %s", err)
	}

	suite.server.Serve(cfg.Host, cfg.Port)

	return suite
}

func (s *Suite) cleanup() {
	if s.server != nil {
		s.server.GracefulShutdown()
	}
	if s.DB != nil {
		_ = s.DB.Close()
	}
	for _, teardown := range s.teardown {
		teardown()
	}
}

func getTestConfig(redisPort, postgresPort string) *config.Config {
	return &config.Config{
		Host:                  serverHost,
		Port:                  serverPort,
		Environment:           "test",
		StoreBackend:          config.StoreBackendPostgres,
		PostgresHost:          "localhost",
		PostgresPort:          postgresPort,
		PostgresDBName:        dbName,
		CacheBackend:          config.CacheBackendRedis,
		CacheSizeMB:           1,
		CacheTTLSeconds:       60,
		RedisHost:             "localhost",
		RedisPort:             redisPort,
		WriteRateLimitPerMin:  1000,
		AllowedOrigins:        []string{"test"},
		PrometheusMetricsHost: "localhost",
		PrometheusMetricsPort: "2113",
	}
}

func (s *Suite) redisSetup() (string, error) {
	redisResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Name:       "gymlog-redis",
		Tag:        "6.2",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		return "", fmt.Errorf("run redis: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		_ = redisResource.Close()
	})

	return redisResource.GetPort("6379/tcp"), nil
}

func (s *Suite) postgresSetup() (string, error) {
	pgResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=" + dbPassword,
			"POSTGRES_DB=" + dbName,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return "", fmt.Errorf("dockerpool run postgres: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		_ = pgResource.Close()
	})

	pgPort := pgResource.GetPort("5432/tcp")
	s.dbParams = db.NewDBPoolParams{
		DBHost:     "localhost",
		DBPort:     pgPort,
		DBName:     dbName,
		DBPassword: dbPassword,
	}

	// postgres takes a moment to accept connections
	if err := s.dockerPool.Retry(func() error {
		conn, err := sql.Open("postgres", s.dbParams.ConnString())
		if err != nil {
			return err
		}
		if err := conn.Ping(); err != nil {
			_ = conn.Close()
			return err
		}
		s.DB = conn
		return nil
	}); err != nil {
		return "", fmt.Errorf("wait for postgres: %s", err)
	}

	return pgPort, nil
}

// truncateAll empties every gymlog table.
func (s *Suite) truncateAll(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx,
		`TRUNCATE workout_sessions, exercise_notes, sets, exercises, workouts CASCADE`,
	)
	return err
}
