// Command httpd is the thin HTTP JSON adapter bounding the autocompleter
// core per spec.md §6: two GET endpoints per autocompleter name, taking
// "q" and an optional JSON-encoded "facets" query parameter, returning
// the core's result as application/json. It holds no indexing logic of
// its own — every route calls straight through to autocompleter.Engine.
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	autocompleter "github.com/remiges-tech/autocompleter"
	"github.com/remiges-tech/autocompleter/examples/finance"
	"github.com/remiges-tech/autocompleter/facet"
	"github.com/remiges-tech/autocompleter/query"
)

func main() {
	log := buildLogger()
	defer log.Sync()
	log = log.Named("main")

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	cfg := autocompleter.NewConfig(addr)
	cfg.Defaults.MaxResults = 10

	eng, err := autocompleter.New(cfg, log)
	if err != nil {
		log.Fatal("engine creation failed", zap.Error(err))
	}
	defer eng.Close()

	if err := eng.RegisterProvider("securities", finance.NewProvider()); err != nil {
		log.Fatal("provider registration failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})
	r.Use(gin.Recovery())

	if os.Getenv("ENV") == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(zapLogger(log))

	r.GET("/autocomplete/:name/suggest", suggestHandler(eng, false))
	r.GET("/autocomplete/:name/exact_suggest", suggestHandler(eng, true))

	httpserver := &http.Server{
		Addr:           "127.0.0.1:8080",
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 15,
		ErrorLog:       zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
	}

	log.Info("running HTTP server on 127.0.0.1:8080")
	if err := httpserver.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
}

// suggestHandler returns the gin handler for either the suggest or
// exact_suggest route, per spec.md §6: missing "q" is a 500 (the spec's
// own documented behavior, not a 400 — query validation stops at
// facets), malformed "facets" JSON is a 400.
func suggestHandler(eng *autocompleter.Engine, exact bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		q := c.Query("q")
		if q == "" {
			_ = c.Error(errors.New("missing required query parameter \"q\""))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "missing required query parameter \"q\""})
			return
		}

		var facetExpr facet.Expression
		if raw := c.Query("facets"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &facetExpr); err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusBadRequest, gin.H{"message": "malformed facets: " + err.Error()})
				return
			}
			if !facet.Validate(facetExpr) {
				c.JSON(http.StatusBadRequest, gin.H{"message": "malformed facets: invalid shape"})
				return
			}
		}

		var (
			result query.Result
			err    error
		)
		if exact {
			result, err = eng.ExactSuggest(c.Request.Context(), name, q)
		} else {
			result, err = eng.Suggest(c.Request.Context(), name, q, facetExpr)
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}

		if result.IsFlattened() {
			c.JSON(http.StatusOK, result.Flattened)
			return
		}
		c.JSON(http.StatusOK, result.ByProvider)
	}
}

func zapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joinedErr := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("client_ip", c.ClientIP()),
			zap.Duration("latency", latency),
		}
		if joinedErr != nil {
			fields = append(fields, zap.Error(joinedErr))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func buildLogger() *zap.Logger {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	return zap.Must(logConfig.Build())
}
