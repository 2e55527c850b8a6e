// Command gaze runs the gaze calibration and classification service: UDP
// landmark ingest, the HTTP API, the gRPC classification stream and the
// SQLite-backed profile store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/gaze.intent/internal/api"
	"github.com/banshee-data/gaze.intent/internal/config"
	"github.com/banshee-data/gaze.intent/internal/db"
	"github.com/banshee-data/gaze.intent/internal/gaze/ingest"
	"github.com/banshee-data/gaze.intent/internal/gaze/live"
	"github.com/banshee-data/gaze.intent/internal/gaze/session"
	"github.com/banshee-data/gaze.intent/internal/gaze/storage/sqlite"
	"github.com/banshee-data/gaze.intent/internal/timeutil"
	"github.com/banshee-data/gaze.intent/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen  = flag.String("grpc-listen", ":50051", "gRPC listen address (empty to disable)")
	udpListen   = flag.String("udp-listen", ":7070", "UDP landmark frame listen address (empty to disable)")
	udpRcvBuf   = flag.Int("udp-rcvbuf", 4<<20, "UDP receive buffer size in bytes")
	dbPath      = flag.String("db", "gaze.db", "SQLite database path")
	configPath  = flag.String("config", "", "Tuning config JSON (defaults apply when empty)")
	assetsHost  = flag.String("assets-host", "", "Local echarts asset host for report pages")
	statsEvery  = flag.Duration("stats-interval", time.Minute, "Ingest stats logging interval")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	// The migrate subcommand runs before flag parsing so its own arguments
	// are not mistaken for service flags.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		fs := flag.NewFlagSet("migrate", flag.ExitOnError)
		path := fs.String("db", "gaze.db", "SQLite database path")
		_ = fs.Parse(os.Args[2:])
		if err := db.RunMigrateCommand(fs.Args(), *path, os.Stdin, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := timeutil.RealClock{}
	stores := sqlite.NewStores(database.DB, clock)
	pipeline := live.New(tuning.GetSmoothingWindow(), nil)
	restoreProfile(ctx, stores, pipeline)

	apiServer := api.NewServer(pipeline, stores, session.ConfigFromTuning(tuning), clock)
	apiServer.SetAssetsHost(*assetsHost)
	apiServer.SetBaseContext(ctx)
	apiServer.Intent().SetWindow(tuning.GetIntentWindow())
	apiServer.Intent().SetMinSideConfidence(tuning.GetMinSideConfidence())

	log.Printf("%s starting", version.String())

	var wg sync.WaitGroup

	if *udpListen != "" {
		listener := ingest.NewListener(ingest.Config{
			Address:     *udpListen,
			RcvBuf:      *udpRcvBuf,
			LogInterval: *statsEvery,
			Handler:     apiServer.Intent(),
			Stats:       ingest.NewFrameStats(clock),
			Clock:       clock,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("UDP listener error: %v", err)
			}
			log.Print("UDP listener routine terminated")
		}()
	}

	if *grpcListen != "" {
		lis, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			log.Fatalf("failed to listen for gRPC on %s: %v", *grpcListen, err)
		}
		grpcServer := grpc.NewServer()
		api.RegisterService(grpcServer, api.NewGRPCService(pipeline, clock))
		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				<-ctx.Done()
				log.Println("shutting down gRPC server...")
				grpcServer.GracefulStop()
			}()
			log.Printf("gRPC server listening on %s", lis.Addr())
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("gRPC server error: %v", err)
			}
			log.Print("gRPC server routine stopped")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		// admin debugging routes are only reachable from loopback or over Tailscale
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach admin routes: %v", err)
		}
		mux.Handle("/api/", apiServer.ServeMux())

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	apiServer.StopRun()
	log.Printf("Graceful shutdown complete")
}

// loadTuning reads path, or returns the built-in defaults when path is
// empty.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// restoreProfile loads the newest stored profile into the pipeline. A
// missing profile leaves the pipeline uncalibrated.
func restoreProfile(ctx context.Context, stores *sqlite.Stores, pipeline *live.Pipeline) {
	p, err := stores.Profiles.Latest(ctx)
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		log.Print("no stored calibration profile; running uncalibrated")
	case err != nil:
		log.Printf("failed to load stored profile: %v", err)
	default:
		pipeline.SetProfile(p)
		log.Printf("restored calibration profile created %s", p.CreatedAt.UTC().Format(time.RFC3339))
	}
}
