// eepromctl reads, writes and verifies 28C256 EEPROMs through the serial
// programmer.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-28c256/devicesim"
	"github.com/moffa90/go-28c256/internal/observability"
	"github.com/moffa90/go-28c256/programmer"
	"github.com/moffa90/go-28c256/transport"
)

const simulatedPort = "simulator"

type app struct {
	configPath  string
	port        string
	logLevel    string
	metricsFile string
	simulate    bool

	cfg     Config
	log     zerolog.Logger
	metrics *observability.Metrics
	sim     *devicesim.Device
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "eepromctl",
		Short:         "28C256 EEPROM programmer",
		Long:          "Read, write, verify, erase and inspect 28C256 EEPROMs through the serial programmer.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "TOML configuration file")
	pf.StringVarP(&a.port, "port", "p", "", "serial port (default: search for the programmer)")
	pf.StringVar(&a.logLevel, "log-level", "", "trace|debug|info|warn|error|off")
	pf.BoolVar(&a.simulate, "simulate", false, "use an in-process simulated programmer")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write prometheus metrics to this file after each operation")

	root.AddCommand(
		a.portsCmd(),
		a.readCmd(),
		a.writeCmd(),
		a.verifyCmd(),
		a.simpleCmd(programmer.OpBlankCheck, "Check that every cell reads 0xFF"),
		a.simpleCmd(programmer.OpErase, "Erase the whole chip"),
		a.simpleCmd(programmer.OpLock, "Enable software data protection"),
		a.simpleCmd(programmer.OpUnlock, "Disable software data protection"),
		a.dumpCmd(),
		a.editCmd(),
		a.convertCmd(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger and metrics.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = a.port
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = a.metricsFile
	}
	a.cfg = cfg

	a.log = observability.InitLogger("eepromctl", observability.LogConfig{
		Level: cfg.LogLevel,
		Out:   cmd.ErrOrStderr(),
	})
	a.metrics = observability.NewMetrics()

	if a.simulate {
		a.sim = devicesim.New()
		a.sim.SetLogger(a.log)
	}
	return nil
}

func (a *app) transportOptions() []transport.Option {
	opts := []transport.Option{
		transport.WithBaudRate(a.cfg.BaudRate),
		transport.WithReadTimeout(a.cfg.ReadTimeout),
		transport.WithSyncAttempts(a.cfg.SyncAttempts),
		transport.WithUSBID(a.cfg.USBVID, a.cfg.USBPID),
		transport.WithLogger(a.log),
	}
	if a.sim != nil {
		opts = append(opts, transport.WithDialer(a.sim.Dialer()))
	}
	return opts
}

// resolvePort returns the configured port, or searches for the programmer.
func (a *app) resolvePort(ctx context.Context) (string, error) {
	if a.sim != nil {
		return simulatedPort, nil
	}
	if a.cfg.Port != "" {
		return a.cfg.Port, nil
	}

	a.log.Info().Msg("no port configured, searching for programmer")
	path, err := transport.FindPort(ctx, a.transportOptions()...)
	if err != nil {
		return "", fmt.Errorf("find programmer: %w (use --port)", err)
	}
	return path, nil
}

func (a *app) newProgrammer(ctx context.Context, verify bool) (*programmer.Programmer, error) {
	path, err := a.resolvePort(ctx)
	if err != nil {
		return nil, err
	}

	return programmer.New(path,
		programmer.WithLogger(a.log),
		programmer.WithResponseTimeout(a.cfg.ResponseTimeout),
		programmer.WithEraseTimeout(a.cfg.EraseTimeout),
		programmer.WithVerifyAfterWrite(verify),
		programmer.WithTransportOptions(a.transportOptions()...),
		programmer.WithResultCallback(func(res programmer.Result) {
			a.recordResult(path, res)
		}),
	), nil
}

func (a *app) recordResult(port string, res programmer.Result) {
	a.metrics.RecordOperation(port, res.Operation.String(), res.Status.String(), res.Elapsed)
	if res.Operation == programmer.OpWrite {
		a.metrics.RecordWrite(port, res.Summary.Written, res.Summary.Skipped)
	}
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		a.log.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("write metrics")
	}
}
