package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-identity-core/auth"
	"github.com/jrsteele09/go-identity-core/internal/config"
	"github.com/jrsteele09/go-identity-core/internal/postgres"
	"github.com/jrsteele09/go-identity-core/oauth"
	"github.com/jrsteele09/go-identity-core/ratelimit"
	"github.com/jrsteele09/go-identity-core/server"
	"github.com/jrsteele09/go-identity-core/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx := context.Background()
	storage, err := postgres.New(ctx, c.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("postgres.New: %w", err)
	}
	defer storage.Close()

	handler, err := buildServer(ctx, c, storage, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(ctx context.Context, c config.Config, storage *postgres.Storage, logger zerolog.Logger) (*server.Server, error) {
	codec := token.NewCodec()

	guard := auth.NewGuard(auth.GuardConfig{
		RejectWrongIP:        c.GetRejectWrongIP(),
		RejectWrongUserAgent: c.GetRejectWrongUserAgent(),
		RejectFast:           c.GetRejectFast(),
	}, storage.Fingerprints())

	resolver, err := auth.NewResolver(
		auth.Repos{Sessions: storage.Sessions(), Users: storage.Users()},
		codec,
		guard,
		auth.WithResolverLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("auth.NewResolver: %w", err)
	}

	serviceCfg := auth.DefaultServiceConfig(c.GetBaseURL())
	serviceCfg.SessionTokenTTL = c.GetSessionTokenExpiry()
	serviceCfg.EmailTokenTTL = c.GetEmailTokenExpiry()
	serviceCfg.EmailTokenSecret = c.GetEmailTokenSecret()

	serviceOptions := []auth.ServiceOption{auth.WithServiceLogger(logger)}
	var limiter *ratelimit.Limiter
	if c.GetEnableRateLimiting() {
		redisOptions, err := redis.ParseURL(c.GetRedisURL())
		if err != nil {
			return nil, fmt.Errorf("redis.ParseURL: %w", err)
		}
		redisClient := redis.NewClient(redisOptions)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		limiter, err = ratelimit.NewLimiter(redisClient)
		if err != nil {
			return nil, fmt.Errorf("ratelimit.NewLimiter: %w", err)
		}
		serviceOptions = append(serviceOptions, auth.WithLimiter(limiter))
	}

	sessionService, err := auth.NewService(serviceCfg,
		storage.Users(), storage.Sessions(), storage.Fingerprints(),
		codec, resolver, serviceOptions...)
	if err != nil {
		return nil, fmt.Errorf("auth.NewService: %w", err)
	}

	engine, err := oauth.NewEngine(oauth.Config{
		Issuer:          c.GetBaseURL(),
		ScreenURL:       c.GetScreenURL(),
		AccessTokenTTL:  c.GetDefaultAccessTokenExpiry(),
		RefreshTokenTTL: c.GetDefaultRefreshTokenExpiry(),
		CodeTTL:         c.GetAuthCodeExpiry(),
	}, oauth.Repos{
		Clients:   storage.Clients(),
		Users:     storage.Users(),
		Sessions:  storage.Sessions(),
		Codes:     storage.Codes(),
		ClientUse: storage.ClientUse(),
	}, codec, oauth.WithEngineLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("oauth.NewEngine: %w", err)
	}

	return server.New(c, server.Services{
		Sessions: sessionService,
		Resolver: resolver,
		OAuth:    engine,
		Limiter:  limiter,
	}, server.WithLogger(logger))
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
