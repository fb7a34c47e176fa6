package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/studentperf/dataset"
	"github.com/YuminosukeSato/studentperf/pipeline"
	"github.com/YuminosukeSato/studentperf/pkg/log"
	"github.com/YuminosukeSato/studentperf/report"
	"github.com/YuminosukeSato/studentperf/selection"
)

type rootOptions struct {
	configPath string
	store      string
	logLevel   string
	quiet      bool
}

type trainOptions struct {
	ingest      bool
	plotPath    string
	metricsFile string
}

type predictOptions struct {
	input  string
	output string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "studentperf",
		Short:         "Train and apply the student performance regression model",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults when empty)")
	root.PersistentFlags().StringVar(&opts.store, "store", "", "artifact store: file or badger (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "log to the run file only")

	root.AddCommand(newTrainCmd(opts), newPredictCmd(opts))
	return root
}

func newTrainCmd(root *rootOptions) *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Split the dataset, fit the preprocessor and select the best model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, root, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.ingest, "ingest", true, "split data_path into the train and test files first")
	cmd.Flags().StringVar(&opts.plotPath, "plot", "", "write a bar chart of the report (png, svg or pdf)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics in text format")
	return cmd
}

func newPredictCmd(root *rootOptions) *cobra.Command {
	opts := &predictOptions{}
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the target for the records of a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "CSV file with the feature columns")
	cmd.Flags().StringVar(&opts.output, "output", "", "output CSV (stdout when empty)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// session bundles what both commands open at start and close at exit.
type session struct {
	cfg    pipeline.Config
	runLog *log.RunLog
	logger log.Logger
}

func openSession(cmd *cobra.Command, root *rootOptions) (*session, error) {
	cfg, err := pipeline.LoadConfigFile(root.configPath)
	if err != nil {
		return nil, err
	}
	if root.store != "" {
		cfg.Store = root.store
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	level, err := log.ToLogLevel(root.logLevel)
	if err != nil {
		return nil, err
	}
	var console io.Writer = cmd.ErrOrStderr()
	if root.quiet {
		console = nil
	}
	runLog, err := log.OpenRunLog(cfg.LogDir, time.Now(), level, console)
	if err != nil {
		return nil, err
	}
	logger := runLog.Logger.With(log.OperationKey, cmd.Name())
	return &session{cfg: cfg, runLog: runLog, logger: logger}, nil
}

func (s *session) close() {
	if err := s.runLog.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close run log:", err)
	}
}

func runTrain(cmd *cobra.Command, root *rootOptions, opts *trainOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	s, err := openSession(cmd, root)
	if err != nil {
		return err
	}
	defer s.close()
	s.logger.Info("Training run started", "log.path", s.runLog.Path)

	if opts.ingest {
		if _, _, err := (&pipeline.DataIngestion{Config: s.cfg, Logger: s.logger}).Run(ctx); err != nil {
			s.logger.Error("Data ingestion failed", err)
			return err
		}
	}

	store, err := s.cfg.OpenStore(s.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	data, err := (&pipeline.DataTransformation{Config: s.cfg, Store: store, Logger: s.logger}).Run(ctx)
	if err != nil {
		s.logger.Error("Data transformation failed", err)
		return err
	}

	trainer := &pipeline.ModelTrainer{Config: s.cfg, Store: store, Logger: s.logger}
	var registry *prometheus.Registry
	if opts.metricsFile != "" {
		registry = prometheus.NewRegistry()
		trainer.Options = append(trainer.Options, selection.WithMetrics(selection.NewMetrics(registry)))
	}

	res, trainErr := trainer.Run(ctx, data)
	if registry != nil {
		// 失敗した実行の計測値も書き出す
		if err := prometheus.WriteToTextfile(opts.metricsFile, registry); err != nil {
			s.logger.Warn("Failed to write metrics", log.ErrorKey, err.Error())
		}
	}
	if trainErr != nil {
		return trainErr
	}
	if opts.plotPath != "" {
		if err := report.SaveBarChart(res.Selection.Report, selection.MinScore, opts.plotPath); err != nil {
			return err
		}
		s.logger.Info("Saved report chart", "plot.path", opts.plotPath)
	}

	return printSummary(cmd.OutOrStdout(), res)
}

func printSummary(w io.Writer, res *pipeline.TrainResult) error {
	if _, err := fmt.Fprintf(w, "run %s\n", res.Artifact.RunID); err != nil {
		return err
	}
	for _, e := range res.Selection.Report {
		marker := " "
		if e.Name == res.Artifact.Name {
			marker = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %-24s %.4f\n", marker, e.Name, e.Score); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "best %s test R² %.4f\n", res.Artifact.Name, res.TestR2)
	return err
}

func runPredict(cmd *cobra.Command, root *rootOptions, opts *predictOptions) error {
	ctx := cmd.Context()
	s, err := openSession(cmd, root)
	if err != nil {
		return err
	}
	defer s.close()

	store, err := s.cfg.OpenStore(s.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	predictor, err := pipeline.LoadPredictor(ctx, s.cfg, store, s.logger)
	if err != nil {
		s.logger.Error("Failed to load artifacts", err)
		return err
	}
	frame, err := dataset.ReadCSV(opts.input)
	if err != nil {
		return err
	}
	pred, err := predictor.Predict(frame)
	if err != nil {
		s.logger.Error("Prediction failed", err)
		return err
	}

	values := make([]string, len(pred))
	for i, v := range pred {
		values[i] = strconv.FormatFloat(v, 'f', 4, 64)
	}
	out, err := frame.WithColumn("predicted_"+s.cfg.Target, values)
	if err != nil {
		return err
	}
	if opts.output == "" {
		return out.WriteCSV(cmd.OutOrStdout())
	}
	return out.SaveCSV(opts.output)
}
