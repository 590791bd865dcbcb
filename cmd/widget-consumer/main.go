package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/widgetops/widget-consumer/archive"
	"github.com/widgetops/widget-consumer/config"
	"github.com/widgetops/widget-consumer/consumer"
	"github.com/widgetops/widget-consumer/dlq"
	"github.com/widgetops/widget-consumer/logging"
	"github.com/widgetops/widget-consumer/sink"
	"github.com/widgetops/widget-consumer/source"
)

var (
	cfgFile string

	flagSourceBucket  string
	flagSourcePrefix  string
	flagDest          string
	flagDestBucket    string
	flagDestPrefix    string
	flagDynamoTable   string
	flagRegion        string
	flagPollInterval  time.Duration
	flagMaxIterations int
	flagLogLevel      string
	flagLogFormat     string
	flagLogFile       string
	flagArchiveBucket string
	flagDLQURL        string
	flagMetricsListen string
)

var rootCmd = &cobra.Command{
	Use:   "widget-consumer",
	Short: "Consume pending widget requests from S3",
	Long: `widget-consumer polls a bucket of pending widget requests, claims each
request by deleting it, and stores created widgets in S3 or DynamoDB.

Configuration comes from defaults, an optional YAML file, WIDGET_*
environment variables, and command-line flags, in that order.`,
	Version:      "0.1.0",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()

	f.StringVar(&cfgFile, "config", "", "config file (default: ./widget-consumer.yaml)")
	f.StringVar(&flagSourceBucket, "source-bucket", "", "bucket holding pending widget requests")
	f.StringVar(&flagSourcePrefix, "source-prefix", "", "key prefix for pending requests")
	f.StringVar(&flagDest, "dest", config.DestKindS3, "destination kind: s3 or dynamo")
	f.StringVar(&flagDestBucket, "dest-bucket", "", "bucket for stored widgets (dest=s3)")
	f.StringVar(&flagDestPrefix, "dest-prefix", "", "key prefix for stored widgets (dest=s3)")
	f.StringVar(&flagDynamoTable, "dynamo-table", "", "table for stored widgets (dest=dynamo)")
	f.StringVar(&flagRegion, "region", "", "AWS region")
	f.DurationVar(&flagPollInterval, "poll-interval", 100*time.Millisecond, "sleep between idle polls")
	f.IntVar(&flagMaxIterations, "max-iterations", 0, "stop after this many loop iterations (0 = run until signaled)")
	f.StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.StringVar(&flagLogFormat, "log-format", "json", "log format: json or text")
	f.StringVar(&flagLogFile, "log-file", "", "also append logs to this file")
	f.StringVar(&flagArchiveBucket, "archive-bucket", "", "enable the audit trail, uploading to this bucket")
	f.StringVar(&flagDLQURL, "dlq-url", "", "enable the dead letter queue, publishing to this SQS queue URL")
	f.StringVar(&flagMetricsListen, "metrics-listen", "", "enable Prometheus metrics on this listen address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	var logger *slog.Logger
	if cfg.Logging.File != "" {
		l, closeLog, err := logging.NewWithFile(level, cfg.Logging.Format, cfg.Logging.File)
		if err != nil {
			return err
		}
		defer closeLog()
		logger = l
	} else {
		logger = logging.New(level, cfg.Logging.Format)
	}
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var awsOpts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	src := source.NewS3(s3Client, cfg.Source.Bucket, cfg.Source.Prefix)

	// The destination is chosen once here; the claim loop never re-decides.
	var snk sink.Sink
	switch cfg.Dest.Kind {
	case config.DestKindS3:
		snk = sink.NewS3(s3Client, cfg.Dest.Bucket, cfg.Dest.Prefix)
	case config.DestKindDynamo:
		snk = sink.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.Dest.Table)
	}

	c, err := consumer.New(src, snk)
	if err != nil {
		return err
	}
	c.SetLogger(logger)
	c.SetPollInterval(cfg.Consumer.PollInterval)
	c.SetMaxIterations(cfg.Consumer.MaxIterations)

	if cfg.Archive.Enabled {
		trail, err := archive.New(s3Client, cfg.Archive.Bucket, cfg.Archive.Prefix, archive.Config{
			MaxEntries:    cfg.Archive.MaxEntries,
			FlushInterval: cfg.Archive.FlushInterval,
		}, logger)
		if err != nil {
			return fmt.Errorf("init audit trail: %w", err)
		}
		c.EnableArchiveTrail(trail)
	}

	if cfg.DLQ.Enabled {
		c.EnableDeadLetterQueue(dlq.NewSQS(sqs.NewFromConfig(awsCfg), cfg.DLQ.QueueURL))
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(logger, cfg.Metrics.Listen)
	}

	logger.Info("widget consumer starting",
		slog.String("source_bucket", cfg.Source.Bucket),
		slog.String("dest", cfg.Dest.Kind),
		slog.Bool("archive", cfg.Archive.Enabled),
		slog.Bool("dlq", cfg.DLQ.Enabled),
	)

	return c.Run(ctx)
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
// Flags that enable a component imply the matching enabled switch.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()

	if f.Changed("source-bucket") {
		cfg.Source.Bucket = flagSourceBucket
	}
	if f.Changed("source-prefix") {
		cfg.Source.Prefix = flagSourcePrefix
	}
	if f.Changed("dest") {
		cfg.Dest.Kind = flagDest
	}
	if f.Changed("dest-bucket") {
		cfg.Dest.Bucket = flagDestBucket
	}
	if f.Changed("dest-prefix") {
		cfg.Dest.Prefix = flagDestPrefix
	}
	if f.Changed("dynamo-table") {
		cfg.Dest.Table = flagDynamoTable
	}
	if f.Changed("region") {
		cfg.AWS.Region = flagRegion
	}
	if f.Changed("poll-interval") {
		cfg.Consumer.PollInterval = flagPollInterval
	}
	if f.Changed("max-iterations") {
		cfg.Consumer.MaxIterations = flagMaxIterations
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = flagLogLevel
	}
	if f.Changed("log-format") {
		cfg.Logging.Format = flagLogFormat
	}
	if f.Changed("log-file") {
		cfg.Logging.File = flagLogFile
	}
	if f.Changed("archive-bucket") {
		cfg.Archive.Enabled = true
		cfg.Archive.Bucket = flagArchiveBucket
	}
	if f.Changed("dlq-url") {
		cfg.DLQ.Enabled = true
		cfg.DLQ.QueueURL = flagDLQURL
	}
	if f.Changed("metrics-listen") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = flagMetricsListen
	}
}

func serveMetrics(log *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Info("metrics listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server failed", slog.String("error", err.Error()))
	}
}
