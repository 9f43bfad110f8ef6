package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// ===== infra helpers =====

type MiddlewareFunc func(http.Handler) http.Handler

func chainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

func loggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("<%s> %s %s", prefix, r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

func recoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Printf("<%s> panic: %v", prefix, err)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// newOriginMiddleware admits browser requests only from allowlisted origins.
// Requests without an Origin header (curl, SDK clients) pass untouched.
func newOriginMiddleware(allowed []string, strict bool) MiddlewareFunc {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowSet[strings.TrimSuffix(strings.ToLower(origin), "/")] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(r.Header.Get("Origin"))), "/")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, ok := allowSet[origin]
			if !ok && strict {
				log.Printf("<gateway> rejected origin %q", origin)
				http.Error(w, "Forbidden origin", http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Gitlab-Token, X-Gitlab-Url, Mcp-Session-Id, MCP-Protocol-Version, Last-Event-ID")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ===== main HTTP server =====

func startServer(config *Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newSessionStore()
	binder := newRequestBinder(store)

	mcpServer := server.NewMCPServer(
		config.Manifest.Name,
		config.Manifest.Version,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithInstructions("Forwards tool calls to the GitLab instance identified by the caller's token and endpoint headers."),
	)

	tools := registerTools(mcpServer, binder)
	prompts := registerPrompts(mcpServer, binder)
	resources := registerResources(mcpServer, binder)
	log.Printf("<gateway> registered %d tools, %d prompts, %d resources", len(tools), len(prompts), len(resources))

	streamable := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(httpContextFunc(config.GitlabURL)),
	)

	mws := []MiddlewareFunc{
		recoverMiddleware("gateway"),
		newOriginMiddleware(config.AllowedOrigins, config.strictOrigin()),
	}
	if config.logEnabled() {
		mws = append(mws, loggerMiddleware("gateway"))
	}

	startedAt := time.Now()
	httpMux := http.NewServeMux()
	httpMux.Handle("/mcp", chainMiddleware(streamable, mws...))
	httpMux.Handle("/mcp/", chainMiddleware(streamable, mws...))
	httpMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":   "ok",
			"version":  config.Manifest.Version,
			"uptime":   time.Since(startedAt).Round(time.Second).String(),
			"sessions": store.size(),
			"inflight": binder.Inflight(),
		})
	})
	httpMux.HandleFunc("/.well-known/mcp/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		doc := buildManifestDocument(config.Manifest, r, tools, prompts, resources)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})

	httpServer := &http.Server{
		Addr:    config.Addr,
		Handler: httpMux,
	}

	// A listener failure cancels egCtx so the sweeper and shutdown
	// goroutines exit instead of waiting on a signal that never comes.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return store.runSweeper(egCtx)
	})
	eg.Go(func() error {
		log.Printf("<gateway> listening on %s (default GitLab %s)", config.Addr, config.GitlabURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Println("<gateway> shutting down")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		err := httpServer.Shutdown(shutdownCtx)
		store.clear()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return eg.Wait()
}
