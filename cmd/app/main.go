package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"

	"shotlocator/internal/controller/http/v1"
	"shotlocator/internal/domain/tdoa"
	"shotlocator/internal/domain/usecase"
	psqlRepo "shotlocator/internal/repository/psql"
	"shotlocator/internal/repository/rabbitmq"
	"shotlocator/internal/repository/redis"
	"shotlocator/internal/repository/s3"
	"shotlocator/pkg/client/psql"
	redisGo "shotlocator/pkg/client/redis"
	s3ClientGo "shotlocator/pkg/client/s3"
	"shotlocator/pkg/middleware"
)

type Config struct {
	HTTPAddr    string
	SensorToken string
	RateLimit   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PSQLHost     string
	PSQLPort     int
	PSQLUser     string
	PSQLPassword string
	PSQLDBName   string
	PSQLSSLMode  string

	S3Host      string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Secure    bool

	RabbitMQURL string

	Detection     tdoa.Settings
	BucketQuantum time.Duration
	EventExpiry   time.Duration
	SweepSchedule string
	Workers       int
	QueueSize     int
}

func loadConfig() Config {
	if err := godotenv.Load("./.env.local"); err != nil {
		log.Println("No .env file found. Falling back to OS environment variables.")
	}
	mustGetEnv := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			log.Fatalf("Environment variable %s is not set", key)
		}
		return val
	}
	getEnv := func(key, def string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return def
	}
	getInt := func(key string, def int) int {
		v, err := strconv.Atoi(getEnv(key, strconv.Itoa(def)))
		if err != nil {
			log.Fatalf("Invalid %s value: %v", key, err)
		}
		return v
	}
	getFloat := func(key string, def float64) float64 {
		v, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(def, 'f', -1, 64)), 64)
		if err != nil {
			log.Fatalf("Invalid %s value: %v", key, err)
		}
		return v
	}
	getDuration := func(key string, def time.Duration) time.Duration {
		v, err := time.ParseDuration(getEnv(key, def.String()))
		if err != nil {
			log.Fatalf("Invalid %s value: %v", key, err)
		}
		return v
	}

	// RABBITMQ
	rmqUser := mustGetEnv("RABBITMQ_USER")
	rmqPassword := mustGetEnv("RABBITMQ_PASSWORD")
	rmqHost := mustGetEnv("RABBITMQ_HOST")
	rmqPort := mustGetEnv("RABBITMQ_PORT")
	rabbitMQURL := "amqp://" + rmqUser + ":" + rmqPassword + "@" + rmqHost + ":" + rmqPort + "/"

	// DETECTION
	detection := tdoa.Settings{
		Quorum:        getInt("QUORUM", tdoa.DefaultQuorum),
		TimeTolerance: getDuration("TIME_TOLERANCE", tdoa.DefaultTimeTolerance),
		SpeedOfSound:  getFloat("SPEED_OF_SOUND", tdoa.DefaultSpeedOfSound),
		SearchRadius:  getFloat("SEARCH_RADIUS_DEG", tdoa.DefaultSearchRadius),
		ClockSkew:     getDuration("CLOCK_SKEW", tdoa.DefaultClockSkew),
		MinBaseline:   getFloat("MIN_BASELINE", tdoa.DefaultMinBaseline),
		Timeout:       getDuration("LOCALIZE_TIMEOUT", 2*time.Second),
	}
	cfg := Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		SensorToken: mustGetEnv("SENSOR_TOKEN"),
		RateLimit:   getInt("RATE_LIMIT", 20),

		RedisAddr:     mustGetEnv("REDIS_HOST") + ":" + mustGetEnv("REDIS_PORT"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		PSQLHost:     mustGetEnv("PSQL_HOST"),
		PSQLPort:     getInt("PSQL_PORT", 5432),
		PSQLUser:     mustGetEnv("PSQL_USER"),
		PSQLPassword: mustGetEnv("PSQL_PASSWORD"),
		PSQLDBName:   mustGetEnv("PSQL_DB"),
		PSQLSSLMode:  getEnv("PSQL_SSLMODE", "disable"),

		S3Host:      mustGetEnv("S3_HOST") + ":" + mustGetEnv("S3_PORT"),
		S3Bucket:    mustGetEnv("S3_BUCKET"),
		S3AccessKey: mustGetEnv("S3_ACCESS_KEY"),
		S3SecretKey: mustGetEnv("S3_SECRET_KEY"),
		S3Secure:    getEnv("S3_SECURE", "false") == "true",

		RabbitMQURL: rabbitMQURL,

		Detection:     detection,
		BucketQuantum: getDuration("BUCKET_QUANTUM", time.Second),
		EventExpiry:   getDuration("EVENT_EXPIRY", 10*time.Second),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 5s"),
		Workers:       getInt("WORKERS", 4),
		QueueSize:     getInt("QUEUE_SIZE", 256),
	}
	if err := cfg.validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// validate rejects settings under which readings within the time tolerance
// could end up in buckets more than one apart, or the pool cannot start.
func (c Config) validate() error {
	switch {
	case c.Detection.Quorum < 3:
		return fmt.Errorf("QUORUM must be at least 3, got %d", c.Detection.Quorum)
	case c.Detection.TimeTolerance <= 0:
		return fmt.Errorf("TIME_TOLERANCE must be positive, got %s", c.Detection.TimeTolerance)
	case c.BucketQuantum < c.Detection.TimeTolerance:
		return fmt.Errorf("BUCKET_QUANTUM %s must not be shorter than TIME_TOLERANCE %s",
			c.BucketQuantum, c.Detection.TimeTolerance)
	case c.Workers < 1:
		return fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers)
	case c.QueueSize < 0:
		return fmt.Errorf("QUEUE_SIZE must not be negative, got %d", c.QueueSize)
	}
	return nil
}

func main() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := redisGo.NewRedisClient(ctx, redisGo.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("failed to init redis: %v", err)
	}
	defer redisClient.Close()
	statusRepo := redis.NewRedisRepo(redisClient)

	db, err := psql.NewPostgresDB(psql.Config{
		Host:     cfg.PSQLHost,
		User:     cfg.PSQLUser,
		Password: cfg.PSQLPassword,
		DBName:   cfg.PSQLDBName,
		Port:     cfg.PSQLPort,
		SslMode:  cfg.PSQLSSLMode,
	})
	if err != nil {
		log.Fatalf("failed to init postgres: %v", err)
	}
	eventRepo := psqlRepo.NewGormEventRepo(db)
	if err := eventRepo.Migrate(); err != nil {
		log.Fatalf("failed to migrate events table: %v", err)
	}

	s3Client, err := s3ClientGo.NewS3Client(cfg.S3Host, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Secure)
	if err != nil {
		log.Fatalf("failed to init s3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		log.Fatalf("failed to init s3 bucket: %v", err)
	}
	archive := s3.NewS3Repo(s3Client)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	alertPublisher, err := rabbitmq.NewRabbitPublisher(conn, "alerts.exchange", "alerts.gunshot")
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}
	defer alertPublisher.Close()

	aggregator := usecase.NewEventAggregator(usecase.AggregatorConfig{
		Quorum:        cfg.Detection.Quorum,
		TimeTolerance: cfg.Detection.TimeTolerance,
		BucketQuantum: cfg.BucketQuantum,
		ExpiryWindow:  cfg.EventExpiry,
	})
	scheduler := usecase.NewScheduler(cfg.Workers, cfg.QueueSize)
	uc := usecase.NewEventUseCase(aggregator, scheduler,
		tdoa.NewValidator(cfg.Detection.TimeTolerance),
		tdoa.NewOutlierFilter(cfg.Detection, tdoa.GeodesicDistance),
		tdoa.NewLocalizer(cfg.Detection, tdoa.GeodesicDistance),
		eventRepo, archive, alertPublisher, statusRepo)
	scheduler.Start(ctx, uc.ProcessEvent)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SweepSchedule, func() { uc.ExpireStale(ctx) }); err != nil {
		log.Fatalf("invalid SWEEP_SCHEDULE %q: %v", cfg.SweepSchedule, err)
	}
	sweeper.Start()

	consumer, err := rabbitmq.NewReadingConsumer(conn, "sensors.exchange", "readings.detected", "readings.q", uc)
	if err != nil {
		log.Fatalf("failed to init consumer: %v", err)
	}
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Printf("consumer stopped with error: %v", err)
			stop()
		}
	}()

	r := gin.Default()
	handler := v1.NewReadingHandler(uc)
	api := r.Group("/api/v1")
	readings := api.Group("",
		middleware.SensorTokenMiddleware(cfg.SensorToken),
		middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RedisClient: redisClient,
			Limit:       cfg.RateLimit,
			Window:      time.Second,
			KeyPrefix:   "rl:",
		}))
	handler.Register(readings, api)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server stopped with error: %v", err)
			stop()
		}
	}()

	log.Printf("Locator service started on %s", cfg.HTTPAddr)
	<-ctx.Done()
	log.Println("Shutting down locator service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	<-sweeper.Stop().Done()
	scheduler.Wait()
	uc.AbandonQueued(shutdownCtx)
}
