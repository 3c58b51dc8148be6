package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/rpsdash/internal/config"
	"github.com/kiliankoe/rpsdash/internal/game"
	"github.com/kiliankoe/rpsdash/internal/store"
	"github.com/kiliankoe/rpsdash/internal/ws"
	staticserver "github.com/kiliankoe/rpsdash/static"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
)

const version = "v1.0.0"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`rpsdash - Real-time multiplayer Rock Paper Scissors

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT            Port to listen on (default: 8080)
  SESSION_TTL     Time before idle sessions are deleted (default: 2h)
  REAP_INTERVAL   How often idle sessions are checked (default: 5m)
  EXPORT_ENABLED  Append round results to file (default: true)
  EXPORT_FILE     Path of the results file (default: ./rpsdash-results.txt)
  DEBUG           Debug-level logging (default: false)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000

Visit http://localhost:8080 after starting the server.
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("rpsdash %s\n", version)
		return
	}

	// Config
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	// Determine port
	port := *portFlag
	if port == "" {
		port = cfg.Port
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	if !cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		zerologlog.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	// Healthcheck
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	// Store + repository + socket server
	st := store.New()
	defer st.Close()
	repo := game.NewRepository(st)
	sock := ws.New(repo, cfg)
	io := sock.Mount(r)
	defer io.Close()

	// Background reaper for abandoned sessions
	done := make(chan struct{})
	defer close(done)
	go repo.Reap(done, cfg.SessionTTL, cfg.ReapInterval)

	// Minimal API: create a session, peek at one
	r.POST("/api/sessions", func(c *gin.Context) {
		id, err := repo.CreateSession()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessionId": id})
	})
	r.GET("/api/sessions/:id", func(c *gin.Context) {
		sess, err := repo.GetSession(c.Param("id"))
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, game.DeriveView(sess, ""))
	})

	// Serve frontend for all other routes
	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	log.Printf("listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
