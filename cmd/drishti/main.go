// Command drishti tracks where the user looks on screen.
//
//	drishti [-config path]                  run the tracker, API and tray
//	drishti [-config path] report [-out dir] plot the latest calibration run
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/report"
	"github.com/ayusman/drishti/internal/server"
	"github.com/ayusman/drishti/internal/sink"
	"github.com/ayusman/drishti/internal/store"
	"github.com/ayusman/drishti/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to config.json (default ~/.drishti/config.json)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: drishti [-config path] [report [-out dir] [-run id]]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Init(cfg.GetLogLevel())

	switch cmd := flag.Arg(0); cmd {
	case "", "run":
		err = run(cfg)
	case "report":
		err = runReport(cfg, flag.Args()[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("drishti failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	path, err := config.DefaultPath()
	if err != nil {
		return nil, err
	}
	return config.LoadOrDefault(path)
}

func run(cfg *config.Config) error {
	st, err := store.New(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	hub := server.NewHub()
	frames := &capture.JPEGBuffer{}

	tracker, err := app.New(app.Config{
		Settings: cfg,
		Store:    st,
		Frames:   frames,
		Sinks:    []sink.PointSink{hub},
	})
	if err != nil {
		return err
	}
	if err := tracker.DiscoverPlugins(); err != nil {
		log.Warn("failed to discover plugins", "err", err)
	}
	if err := tracker.Start(); err != nil {
		return fmt.Errorf("failed to start tracker: %w", err)
	}

	var stopOnce sync.Once
	stop := func() { stopOnce.Do(tracker.Stop) }
	defer stop()

	addr := cfg.GetListenAddr()
	webDir := findWebDir(cfg.GetDataDir())
	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Controller: tracker,
		Frames:     frames,
		Hub:        hub,
		StreamFPS:  cfg.GetActiveFPS(),
	})
	go func() {
		log.Info("serving API", "addr", addr, "web", webDir)
		if err := srv.ListenAndServe(addr); err != nil {
			log.Error("server failed", "err", err)
		}
	}()

	t := tray.New(tracker)
	t.OnSettings(func() { openBrowser("http://" + addr) })
	t.OnQuit(stop)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down")
		t.Quit()
	}()

	t.Run()
	return nil
}

func runReport(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	out := fs.String("out", "drishti-report", "output directory")
	runID := fs.String("run", "", "run id (default: latest complete run)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := store.New(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	runs := st.Runs()
	var r *store.Run
	if *runID != "" {
		r, err = runs.GetByID(*runID)
	} else {
		r, err = runs.Latest(store.RunComplete)
	}
	if errors.Is(err, store.ErrNotFound) {
		return errors.New("no calibration run found; calibrate first")
	}
	if err != nil {
		return err
	}

	samples, err := runs.Samples(r.ID)
	if err != nil {
		return err
	}
	model, err := runs.Model(r.ID)
	if err != nil {
		return err
	}

	analysis := report.Analyze(r.Screen, samples, model)
	files, err := report.Write(analysis, *out, "run-"+r.ID[:8])
	if err != nil {
		return err
	}

	s := analysis.Summary
	fmt.Printf("run %s (%s, %d samples, %d clusters)\n", r.ID, r.FinishedAt.Format("2006-01-02 15:04"), s.Samples, r.Clusters)
	fmt.Printf("  mean error: %.1f px raw, %.1f px calibrated\n", s.MeanRaw, s.MeanCalibrated)
	fmt.Printf("  calibrated rms %.1f px, max %.1f px\n", s.RMSCalibrated, s.MaxCalibrated)
	for _, d := range r.Diagnostics {
		fmt.Printf("  warning: %s\n", d)
	}
	for _, f := range files {
		fmt.Println("wrote", f)
	}
	return nil
}

// findWebDir returns the first existing web directory among ./web,
// ../web and <dataDir>/web, or "" when there is none.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("failed to open browser", "url", url, "err", err)
	}
}
