package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/numlab/numerosity/adapter"
	"github.com/numlab/numerosity/adapter/redis"
	"github.com/numlab/numerosity/adapter/webhook"
	"github.com/numlab/numerosity/cli/config"
	"github.com/numlab/numerosity/cli/tui"
	"github.com/numlab/numerosity/ipc"
	"github.com/numlab/numerosity/lode"
	"github.com/numlab/numerosity/log"
	"github.com/numlab/numerosity/metrics"
	"github.com/numlab/numerosity/policy"
	"github.com/numlab/numerosity/runtime"
	"github.com/numlab/numerosity/sequencer"
	"github.com/numlab/numerosity/timeline"
	"github.com/numlab/numerosity/trial"
	"github.com/numlab/numerosity/trigger"
	"github.com/numlab/numerosity/trigger/usb"
	"github.com/numlab/numerosity/types"
)

// RunCommand returns the run command.
// This is the only command that shows anything to a participant.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run one participant session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to numerosity.yaml",
			},
			// Session identity
			&cli.StringFlag{
				Name:  "experiment",
				Usage: "Experiment name (dataset partition)",
			},
			&cli.StringFlag{
				Name:  "participant",
				Usage: "Participant code (optional)",
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "Session ID (UUID, default: generated)",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed (0 = random)",
			},
			// Settings
			&cli.StringFlag{
				Name:  "sequencing",
				Usage: "Half order: random, people, objects",
				Value: string(types.SequencingRandom),
			},
			&cli.IntFlag{
				Name:  "blocks",
				Usage: "Blocks per half (1-10)",
				Value: types.DefaultBlocksPerHalf,
			},
			&cli.BoolFlag{
				Name:  "skip-calibration",
				Usage: "Skip screen calibration",
			},
			&cli.BoolFlag{
				Name:  "force-device",
				Usage: "Require a connected trigger device",
			},
			&cli.StringFlag{
				Name:  "language",
				Usage: "Display language",
				Value: types.DefaultLanguage,
			},
			// Trigger device
			&cli.StringFlag{
				Name:  "device",
				Usage: "Trigger device: serial, usb, none",
				Value: "none",
			},
			&cli.StringFlag{
				Name:  "device-port",
				Usage: "Serial port (default: first port found)",
			},
			&cli.IntFlag{
				Name:  "device-baud",
				Usage: "Serial baud rate",
			},
			&cli.IntFlag{
				Name:  "device-vid",
				Usage: "USB vendor ID (0x prefix for hex)",
			},
			&cli.IntFlag{
				Name:  "device-pid",
				Usage: "USB product ID (0x prefix for hex)",
			},
			&cli.DurationFlag{
				Name:  "trigger-timeout",
				Usage: "Per-code send timeout",
			},
			&cli.IntFlag{
				Name:  "trigger-queue",
				Usage: "Pending trigger codes before drops",
			},
			// Front-end
			&cli.StringFlag{
				Name:  "frontend",
				Usage: "Participant screen: tui, stdio, process",
				Value: "tui",
			},
			&cli.StringFlag{
				Name:  "frontend-command",
				Usage: "Renderer binary for the process front-end",
			},
			&cli.StringSliceFlag{
				Name:  "frontend-arg",
				Usage: "Renderer argument (repeatable)",
			},
			// Storage
			&cli.StringFlag{
				Name:  "dataset",
				Usage: "Lode dataset ID",
				Value: lode.DefaultDataset,
			},
			&cli.StringFlag{
				Name:  "storage-backend",
				Usage: "Storage backend: fs, s3, memory",
				Value: lode.BackendFS,
			},
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Storage path (fs: directory, s3: bucket/prefix); empty keeps results in memory",
			},
			&cli.StringFlag{
				Name:  "storage-region",
				Usage: "AWS region for the s3 backend (optional, uses default chain)",
			},
			&cli.StringFlag{
				Name:  "storage-endpoint",
				Usage: "Custom S3 endpoint (MinIO, R2, LocalStack)",
			},
			&cli.BoolFlag{
				Name:  "storage-s3-path-style",
				Usage: "Use path-style S3 addressing",
			},
			// Record policy
			&cli.StringFlag{
				Name:  "policy",
				Usage: "Record policy: strict, buffered, streaming, noop",
				Value: "strict",
			},
			&cli.IntFlag{
				Name:  "buffer-records",
				Usage: "Max buffered records (buffered policy)",
			},
			&cli.IntFlag{
				Name:  "flush-count",
				Usage: "Flush after N records (buffered, streaming)",
			},
			&cli.DurationFlag{
				Name:  "flush-interval",
				Usage: "Flush every interval (streaming)",
			},
			// Completion notice
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Completion notice: webhook or redis",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Webhook URL or Redis URL",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel",
			},
			&cli.StringSliceFlag{
				Name:  "adapter-header",
				Usage: "Webhook header as Key=Value (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "adapter-timeout",
				Usage: "Per-publish timeout",
			},
			&cli.IntFlag{
				Name:  "adapter-retries",
				Usage: "Publish retry attempts",
				Value: webhook.DefaultRetries,
			},
			// Output
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON session report to this path (- for stderr)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to this file instead of stderr",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the session summary",
			},
		},
		Action: runAction,
	}
}

// policyChoice holds parsed policy configuration.
type policyChoice struct {
	name          string
	bufferRecords int
	flushCount    int
	flushInterval time.Duration
}

// deviceChoice holds parsed trigger device configuration.
type deviceChoice struct {
	kind        string
	port        string
	baud        int
	vendorID    uint16
	productID   uint16
	sendTimeout time.Duration
	queueSize   int
}

// frontendChoice holds parsed front-end configuration.
type frontendChoice struct {
	kind    string
	command string
	args    []string
}

// adapterChoice holds parsed completion adapter configuration.
type adapterChoice struct {
	kind    string
	url     string
	channel string
	headers map[string]string
	timeout time.Duration
	retries int
}

// runOptions is everything run needs, resolved from flags and config.
type runOptions struct {
	meta     types.SessionMeta
	settings types.Settings
	device   deviceChoice
	frontend frontendChoice
	dataset  string
	storage  lode.Storage
	policy   policyChoice
	adapter  adapterChoice
	report   string
	logFile  string
	quiet    bool
	// timing overrides the trial phase durations; zero uses the defaults.
	timing trial.Timing
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}
	opts, err := parseRunOptions(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeConfig)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code, err := executeRun(ctx, opts, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), code)
	}
	return cli.Exit("", code)
}

// parseRunOptions resolves flags over config and validates the result.
func parseRunOptions(c *cli.Context, cfg *config.Config) (*runOptions, error) {
	opts := &runOptions{
		report:  c.String("report"),
		logFile: c.String("log-file"),
		quiet:   c.Bool("quiet"),
	}

	experiment := resolveString(c, "experiment", configVal(cfg, func(c *config.Config) string { return c.Experiment }))
	if experiment == "" {
		return nil, errors.New("--experiment is required (or set experiment in config)")
	}
	sessionID := c.String("session-id")
	if sessionID == "" {
		sessionID = types.NewSessionID()
	}
	seed := c.Uint64("seed")
	if seed == 0 {
		var err error
		if seed, err = sequencer.NewSeed(); err != nil {
			return nil, err
		}
	}
	opts.meta = types.SessionMeta{
		SessionID:  sessionID,
		Experiment: experiment,
		Seed:       seed,
		StartedAt:  time.Now().UTC(),
	}
	if p := resolveString(c, "participant", configVal(cfg, func(c *config.Config) string { return c.Participant })); p != "" {
		opts.meta.ParticipantID = &p
	}
	if err := opts.meta.Validate(); err != nil {
		return nil, err
	}

	settings, err := resolveSettings(c, cfg)
	if err != nil {
		return nil, err
	}
	opts.settings = settings

	dev := configVal(cfg, func(c *config.Config) config.DeviceConfig { return c.Device })
	opts.device = deviceChoice{
		kind:        resolveString(c, "device", dev.Type),
		port:        resolveString(c, "device-port", dev.Port),
		baud:        resolveInt(c, "device-baud", dev.Baud),
		vendorID:    uint16(resolveInt(c, "device-vid", int(dev.VendorID))),
		productID:   uint16(resolveInt(c, "device-pid", int(dev.ProductID))),
		sendTimeout: resolveDuration(c, "trigger-timeout", dev.SendTimeout.Duration),
		queueSize:   resolveInt(c, "trigger-queue", dev.QueueSize),
	}
	if err := validateDeviceConfig(opts.device); err != nil {
		return nil, err
	}

	fe := configVal(cfg, func(c *config.Config) config.FrontendConfig { return c.Frontend })
	opts.frontend = frontendChoice{
		kind:    resolveString(c, "frontend", fe.Type),
		command: resolveString(c, "frontend-command", fe.Command),
		args:    fe.Args,
	}
	if c.IsSet("frontend-arg") {
		opts.frontend.args = c.StringSlice("frontend-arg")
	}
	if err := validateFrontendConfig(opts.frontend); err != nil {
		return nil, err
	}

	st := configVal(cfg, func(c *config.Config) config.StorageConfig { return c.Storage })
	opts.dataset = resolveString(c, "dataset", st.Dataset)
	opts.storage = lode.Storage{
		Backend:      resolveString(c, "storage-backend", st.Backend),
		Path:         resolveString(c, "storage-path", st.Path),
		Region:       resolveString(c, "storage-region", st.Region),
		Endpoint:     resolveString(c, "storage-endpoint", st.Endpoint),
		UsePathStyle: resolveBool(c, "storage-s3-path-style", st.S3PathStyle),
	}
	if err := validateStorageConfig(opts.storage); err != nil {
		return nil, err
	}

	pc := configVal(cfg, func(c *config.Config) config.PolicyConfig { return c.Policy })
	opts.policy = policyChoice{
		name:          resolveString(c, "policy", pc.Name),
		bufferRecords: resolveInt(c, "buffer-records", pc.BufferRecords),
		flushCount:    resolveInt(c, "flush-count", pc.FlushCount),
		flushInterval: resolveDuration(c, "flush-interval", pc.FlushInterval.Duration),
	}
	if err := validatePolicyConfig(opts.policy); err != nil {
		return nil, err
	}

	ac, err := parseAdapterConfig(c, configVal(cfg, func(c *config.Config) config.AdapterConfig { return c.Adapter }))
	if err != nil {
		return nil, err
	}
	opts.adapter = ac

	return opts, nil
}

// resolveSettings layers flags over config settings over defaults.
func resolveSettings(c *cli.Context, cfg *config.Config) (types.Settings, error) {
	settings := types.DefaultSettings()
	if cfg != nil && cfg.Settings != nil {
		settings = *cfg.Settings
		settings.Normalize()
	}
	if c.IsSet("sequencing") {
		settings.Sequencing.Content = types.Sequencing(c.String("sequencing"))
	}
	if c.IsSet("blocks") {
		settings.Duration.Content = c.Int("blocks")
	}
	if c.IsSet("skip-calibration") {
		settings.Configuration.SkipCalibration = c.Bool("skip-calibration")
	}
	if c.IsSet("force-device") {
		settings.Configuration.ForceDevice = c.Bool("force-device")
	}
	if c.IsSet("language") {
		settings.Language.Content = c.String("language")
	}
	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

func validateDeviceConfig(d deviceChoice) error {
	switch d.kind {
	case "none", "serial":
		return nil
	case "usb":
		if d.vendorID == 0 || d.productID == 0 {
			return errors.New("usb device requires --device-vid and --device-pid")
		}
		return nil
	default:
		return fmt.Errorf("invalid device: %s (must be serial, usb, or none)", d.kind)
	}
}

func validateFrontendConfig(f frontendChoice) error {
	switch f.kind {
	case "tui", "stdio":
		return nil
	case "process":
		if f.command == "" {
			return errors.New("process front-end requires --frontend-command")
		}
		return nil
	default:
		return fmt.Errorf("invalid frontend: %s (must be tui, stdio, or process)", f.kind)
	}
}

func validateStorageConfig(s lode.Storage) error {
	switch s.Backend {
	case lode.BackendFS, lode.BackendMemory:
		return nil
	case lode.BackendS3:
		if s.Path == "" {
			return errors.New("s3 backend requires --storage-path as bucket/prefix")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage-backend: %s (must be fs, s3, or memory)", s.Backend)
	}
}

func validatePolicyConfig(choice policyChoice) error {
	switch choice.name {
	case "strict", "noop":
		return nil
	case "buffered":
		if choice.bufferRecords < 0 {
			return fmt.Errorf("--buffer-records must be >= 0, got %d", choice.bufferRecords)
		}
		return nil
	case "streaming":
		if choice.flushCount <= 0 && choice.flushInterval <= 0 {
			return errors.New("streaming policy requires --flush-count > 0 or --flush-interval > 0")
		}
		return nil
	default:
		return fmt.Errorf("invalid policy: %s (must be strict, buffered, streaming, or noop)", choice.name)
	}
}

// parseAdapterConfig resolves the completion adapter. An empty type means
// no adapter.
func parseAdapterConfig(c *cli.Context, ac config.AdapterConfig) (adapterChoice, error) {
	choice := adapterChoice{
		kind:    resolveString(c, "adapter", ac.Type),
		url:     resolveString(c, "adapter-url", ac.URL),
		channel: resolveString(c, "adapter-channel", ac.Channel),
		timeout: resolveDuration(c, "adapter-timeout", ac.Timeout.Duration),
		retries: c.Int("adapter-retries"),
		headers: map[string]string{},
	}
	if !c.IsSet("adapter-retries") && ac.Retries != nil {
		choice.retries = *ac.Retries
	}
	for k, v := range ac.Headers {
		choice.headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return choice, fmt.Errorf("invalid --adapter-header %q (want Key=Value)", h)
		}
		choice.headers[k] = v
	}

	switch choice.kind {
	case "":
		return choice, nil
	case "webhook", "redis":
		if choice.url == "" {
			return choice, fmt.Errorf("%s adapter requires --adapter-url", choice.kind)
		}
		return choice, nil
	default:
		return choice, fmt.Errorf("invalid adapter: %s (must be webhook or redis)", choice.kind)
	}
}

// executeRun wires and runs one session, returning the process exit code.
// Messages for the operator go to errOut.
func executeRun(ctx context.Context, opts *runOptions, errOut io.Writer) (int, error) {
	// The terminal front-end owns the screen; its logs are held until it exits.
	var held *lockedBuffer
	logger := log.NewLogger(&opts.meta)
	switch {
	case opts.logFile != "":
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return runtime.ExitCodeConfig, fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logger = logger.WithOutput(f)
	case opts.frontend.kind == "tui":
		held = &lockedBuffer{}
		logger = logger.WithOutput(held)
	}
	defer func() { _ = logger.Sync() }()

	collector := metrics.NewCollector(opts.policy.name, opts.frontend.kind, opts.storage.Backend, opts.meta.SessionID)

	persist := opts.storage.Path != "" || opts.storage.Backend == lode.BackendMemory
	var (
		pol         policy.Policy
		store       runtime.SessionStore
		storagePath string
	)
	if persist {
		factory, err := opts.storage.Factory(ctx)
		if err != nil {
			return runtime.ExitCodeConfig, fmt.Errorf("failed to open storage: %w", err)
		}
		client, err := lode.NewLodeClientWithFactory(lode.ConfigFor(opts.dataset, opts.meta), factory)
		if err != nil {
			return runtime.ExitCodeConfig, fmt.Errorf("failed to create storage client: %w", err)
		}
		defer func() { _ = client.Close() }()

		sink := lode.NewInstrumentedSink(lode.NewSink(client), collector)
		if pol, err = buildPolicy(opts.policy, sink, logger); err != nil {
			return runtime.ExitCodeConfig, fmt.Errorf("failed to create policy: %w", err)
		}
		store = lode.NewStore(client)
		storagePath = opts.storage.Location(lode.ConfigFor(opts.dataset, opts.meta).Dataset, opts.meta.SessionID)
	} else {
		fmt.Fprintln(errOut, "Warning: no --storage-path; the result is kept in memory only")
		pol = policy.NewNoopPolicy()
		opts.policy.name = "noop"
	}

	var pub adapter.Adapter
	if opts.adapter.kind != "" {
		a, err := buildAdapterFunc(opts.adapter)
		if err != nil {
			_ = pol.Close()
			return runtime.ExitCodeConfig, err
		}
		pub = a
	}
	// The orchestrator closes pub after publishing; before that it is ours.
	closePub := func() {
		if pub != nil {
			_ = pub.Close()
		}
	}

	fe, err := startFrontendFunc(ctx, opts, logger, collector)
	if err != nil {
		_ = pol.Close()
		closePub()
		return runtime.ExitCodeConfig, err
	}

	orchestrator, err := runtime.NewSessionOrchestrator(&runtime.SessionConfig{
		Settings:  opts.settings,
		Meta:      opts.meta,
		Frontend:  fe.frontend,
		Connector: buildConnector(opts.device),
		Dispatcher: trigger.DispatcherConfig{
			QueueSize:   opts.device.queueSize,
			SendTimeout: opts.device.sendTimeout,
		},
		Policy:      pol,
		PolicyName:  opts.policy.name,
		Store:       store,
		StoragePath: storagePath,
		Adapter:     pub,
		Collector:   collector,
		Logger:      logger,
		Timing:      opts.timing,
	})
	if err != nil {
		stderr := fe.close()
		_ = pol.Close()
		closePub()
		held.flushTo(errOut)
		if stderr != "" {
			fmt.Fprint(errOut, stderr)
		}
		return runtime.ExitCodeConfig, fmt.Errorf("invalid session: %w", err)
	}

	result, runErr := orchestrator.Execute(ctx)
	stderr := fe.close()
	held.flushTo(errOut)

	code := runtime.ExitCode(result.Outcome.Status, runErr)
	if !opts.quiet {
		printSessionResult(errOut, result, opts.policy.name, storagePath)
	}
	if opts.report != "" {
		report := runtime.BuildSessionReport(result, opts.policy.name, flushTriggers(pol), code)
		report.Stderr = stderr
		if err := runtime.WriteSessionReport(report, opts.report); err != nil {
			fmt.Fprintf(errOut, "Warning: %v\n", err)
		}
	}
	if runErr != nil {
		return code, runErr
	}
	return code, nil
}

// buildPolicy creates the record policy over sink.
func buildPolicy(choice policyChoice, sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch choice.name {
	case "strict":
		return policy.NewStrictPolicy(sink), nil
	case "buffered":
		cfg := policy.DefaultBufferedConfig()
		if choice.bufferRecords > 0 {
			cfg.MaxBufferRecords = choice.bufferRecords
		}
		cfg.FlushThreshold = choice.flushCount
		cfg.Logger = logger
		return policy.NewBufferedPolicy(sink, cfg)
	case "streaming":
		return policy.NewStreamingPolicy(sink, policy.StreamingConfig{
			FlushCount:    choice.flushCount,
			FlushInterval: choice.flushInterval,
			Logger:        logger,
		})
	case "noop":
		return policy.NewNoopPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy: %s", choice.name)
	}
}

// flushTriggers reports per-trigger flush counts for policies that track them.
func flushTriggers(p policy.Policy) map[string]int64 {
	sp, ok := p.(*policy.StreamingPolicy)
	if !ok {
		return nil
	}
	out := make(map[string]int64)
	for k, v := range sp.FlushTriggerStats() {
		out[string(k)] = v
	}
	return out
}

// buildConnector returns nil for "none".
func buildConnector(d deviceChoice) trigger.Connector {
	switch d.kind {
	case "serial":
		return trigger.NewSerialConnector(trigger.SerialConfig{Port: d.port, BaudRate: d.baud})
	case "usb":
		return usb.NewConnector(usb.Config{VendorID: d.vendorID, ProductID: d.productID})
	default:
		return nil
	}
}

// buildAdapterFunc is replaced in tests.
var buildAdapterFunc = buildAdapter

// buildAdapter returns a nil interface on error, never a typed nil.
func buildAdapter(choice adapterChoice) (adapter.Adapter, error) {
	switch choice.kind {
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "redis":
		a, err := redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", choice.kind)
	}
}

// runningFrontend pairs a front-end with its teardown.
type runningFrontend struct {
	frontend timeline.Frontend
	// close releases the front-end and returns captured renderer stderr.
	close func() string
}

// startFrontendFunc is replaced in tests.
var startFrontendFunc = startFrontend

func startFrontend(ctx context.Context, opts *runOptions, logger *log.Logger, collector *metrics.Collector) (*runningFrontend, error) {
	switch opts.frontend.kind {
	case "tui":
		fe := tui.NewFrontend()
		return &runningFrontend{frontend: fe, close: func() string {
			_ = fe.Close()
			return ""
		}}, nil
	case "stdio":
		fe := ipc.NewFrontend(os.Stdin, os.Stdout, ipc.WithLogger(logger), ipc.WithMetrics(collector))
		return &runningFrontend{frontend: fe, close: func() string {
			_ = fe.Close()
			return ""
		}}, nil
	case "process":
		proc := runtime.NewFrontendProcess(runtime.ProcessConfig{
			Command:   opts.frontend.command,
			Args:      opts.frontend.args,
			SessionID: opts.meta.SessionID,
		}, ipc.WithLogger(logger), ipc.WithMetrics(collector))
		if err := proc.Start(ctx); err != nil {
			return nil, err
		}
		return &runningFrontend{frontend: proc, close: func() string {
			_ = proc.Close()
			res, err := proc.Wait()
			if err != nil || res == nil {
				return ""
			}
			if res.ExitCode != 0 {
				logger.Warn("renderer exited with error", map[string]any{"exit_code": res.ExitCode})
			}
			return string(res.Stderr)
		}}, nil
	default:
		return nil, fmt.Errorf("unknown frontend: %s", opts.frontend.kind)
	}
}

func printSessionResult(w io.Writer, result *runtime.SessionResult, policyName, storagePath string) {
	fmt.Fprintf(w, "\nsession_id=%s, outcome=%s, trials=%d, duration=%s\n",
		result.Meta.SessionID,
		result.Outcome.Status,
		result.Outcome.Trials,
		result.Duration.Round(time.Millisecond),
	)
	if result.Outcome.Message != "" {
		fmt.Fprintf(w, "message=%s\n", result.Outcome.Message)
	}
	if result.Outcome.QuitReason != nil {
		fmt.Fprintf(w, "quit_reason=%s\n", *result.Outcome.QuitReason)
	}
	fmt.Fprintf(w, "order=%s,%s seed=%d\n", result.Order[0], result.Order[1], result.Meta.Seed)
	fmt.Fprintf(w, "policy=%s, records=%d, persisted=%d, errors=%d\n",
		policyName,
		result.PolicyStats.TotalRecords,
		result.PolicyStats.RecordsPersisted,
		result.PolicyStats.Errors,
	)
	fmt.Fprintf(w, "triggers: sent=%d, failed=%d, dropped=%d, skipped=%d\n",
		result.TriggerStats.Sent,
		result.TriggerStats.Failed,
		result.TriggerStats.Dropped,
		result.TriggerStats.Skipped,
	)
	if storagePath != "" {
		fmt.Fprintf(w, "storage=%s\n", storagePath)
	}
}

// lockedBuffer collects log output while the terminal front-end runs.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) flushTo(w io.Writer) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = b.buf.WriteTo(w)
}
