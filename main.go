package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/api"
	"taskboard-api/storage"
)

func main() {
	debug := false
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		debug = true
		log.SetLevel(log.DebugLevel)
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTableName := os.Getenv("TASKS_TABLE")
	usersTableName := os.Getenv("USERS_TABLE")
	if connStr == "" || tasksTableName == "" || usersTableName == "" {
		log.Fatal("missing storage config")
	}
	base, err := storage.New(connStr, tasksTableName, usersTableName)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var store api.Storage = base
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisOpts, err := redis.ParseURL(redisConn)
		if err != nil {
			parts := strings.Split(redisConn, ",")
			redisOpts = &redis.Options{Addr: parts[0]}
			for _, p := range parts[1:] {
				kv := strings.SplitN(p, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToLower(kv[0]) {
				case "password":
					redisOpts.Password = kv[1]
				case "ssl":
					if strings.ToLower(kv[1]) == "true" {
						redisOpts.TLSConfig = &tls.Config{}
					}
				}
			}
		}
		ttl := 5 * time.Minute
		if v := os.Getenv("TASKS_CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid TASKS_CACHE_TTL: %v", err)
			}
			ttl = d
		}
		store = storage.NewCache(base, redis.NewClient(redisOpts), ttl)
	}

	var events api.EventPublisher
	if queueName := os.Getenv("EVENTS_QUEUE"); queueName != "" {
		pub, err := storage.NewPublisher(connStr, queueName)
		if err != nil {
			log.Fatalf("events queue: %v", err)
		}
		events = pub
	}

	var auth api.Authenticator
	var issuer *api.Issuer
	if domain := os.Getenv("AUTH_DOMAIN"); domain != "" {
		// External identity provider: verify RS256 tokens against its JWKS;
		// signup/login stay unregistered.
		audience := os.Getenv("AUTH_AUDIENCE")
		if audience == "" {
			log.Fatal("missing AUTH_AUDIENCE")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, audience, "https://"+domain+"/")
	} else {
		secret := os.Getenv("TOKEN_SECRET")
		if secret == "" {
			log.Fatal("missing TOKEN_SECRET")
		}
		tokenTTL := 24 * time.Hour
		if v := os.Getenv("TOKEN_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid TOKEN_TTL: %v", err)
			}
			tokenTTL = d
		}
		auth = api.NewLocalAuth([]byte(secret))
		issuer = api.NewIssuer([]byte(secret), tokenTTL)
	}

	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))
	if debug {
		pprof.Register(e)
	}

	logger := log.New()
	api.Register(e, store, base, auth, issuer, events, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
