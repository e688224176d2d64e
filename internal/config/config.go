package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alexflint/go-arg"
)

// DefaultFormat prefers an un-watermarked combined mp4, then a merged
// mp4/m4a pair, then any mp4, then whatever yt-dlp considers best.
const DefaultFormat = "b[ext=mp4][format_note!*=watermarked]/bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b"

// Config is the process-wide configuration. It is parsed once in main and
// handed to each component's constructor.
type Config struct {
	Port           string        `arg:"--port,env:PORT" default:"8080" help:"HTTP listen port"`
	StorageDir     string        `arg:"--storage-dir,env:STORAGE_DIR" default:"temp_downloads" help:"directory holding downloaded artifacts"`
	Retention      time.Duration `arg:"--retention,env:RETENTION" default:"1h" help:"how long an artifact is kept before deletion"`
	SweepInterval  time.Duration `arg:"--sweep-interval,env:SWEEP_INTERVAL" default:"10m" help:"interval of the storage directory sweep"`
	ExtractTimeout time.Duration `arg:"--extract-timeout,env:EXTRACT_TIMEOUT" default:"2m" help:"upper bound for a single extraction"`
	Format         string        `arg:"--format,env:YTDLP_FORMAT" help:"yt-dlp format selector"`
	ExtractorArgs  string        `arg:"--extractor-args,env:YTDLP_EXTRACTOR_ARGS" help:"extra yt-dlp --extractor-args value"`
	InstallYtdlp   bool          `arg:"--install-ytdlp,env:INSTALL_YTDLP" help:"download a yt-dlp binary at startup"`
	BaseURL        string        `arg:"--base-url,env:BASE_URL" default:"http://localhost:8080" help:"public base URL"`
	GeoIPDBPath    string        `arg:"--geoip-db,env:GEOIP_DB_PATH" help:"MaxMind country database used to annotate request logs"`
	SubmitRate     float64       `arg:"--submit-rate,env:SUBMIT_RATE" default:"0.2" help:"download submissions per second per client"`
	SubmitBurst    int           `arg:"--submit-burst,env:SUBMIT_BURST" default:"5" help:"submission burst per client"`
	LogFormat      string        `arg:"--log-format,env:LOG_FORMAT" default:"text" help:"log output format: text or json"`
}

func (Config) Description() string {
	return "tikgrab downloads TikTok and Douyin videos and serves them for a limited time"
}

// Load parses args (without the program name) and the environment.
func Load(args []string) (Config, error) {
	var cfg Config
	p, err := arg.NewParser(arg.Config{Program: "tikgrab"}, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("build argument parser: %w", err)
	}
	if err := p.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.StorageDir == "" {
		errs = append(errs, errors.New("storage directory must not be empty"))
	}
	if c.Retention <= 0 {
		errs = append(errs, errors.New("retention must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep interval must be positive"))
	}
	if c.ExtractTimeout <= 0 {
		errs = append(errs, errors.New("extract timeout must be positive"))
	}
	if c.SubmitRate <= 0 || c.SubmitBurst < 1 {
		errs = append(errs, errors.New("submit rate and burst must be positive"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for http.Server.
func (c Config) Addr() string {
	return ":" + c.Port
}

// WriteHelp prints the flag and environment reference to w.
func WriteHelp(w io.Writer) {
	var cfg Config
	p, err := arg.NewParser(arg.Config{Program: "tikgrab"}, &cfg)
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	p.WriteHelp(w)
}
