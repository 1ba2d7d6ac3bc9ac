package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/flagx"
)

var serverFlags = []string{"-a", "-h", "-d", "-s", "-k", "-l", "-u", "-p", "-b", "-g", "-e", "-r", "-m", "-t", "-o", "-i", "-x"}

// parseFlags overlays cfg with the short flags found in args.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-h string   gRPC health bind address (e.g. ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   blob backend: s3 | local
//	-l string   local blob directory
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint
//	-r string   Redis address for the logo cache
//	-m string   comma separated Kafka brokers
//	-t string   Kafka topic
//	-o int      logo resolution timeout, seconds
//	-i int      logo refresh interval, minutes
//	-x int      max attached file size, bytes
//
// Flags other than these are ignored, see flagx.FilterArgs.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("vaultkeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "h", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.BlobBackend, "k", config.BlobBackend, "blob backend (s3|local)")
	fs.StringVar(&config.LocalBlobDir, "l", config.LocalBlobDir, "local blob directory")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address (empty disables the logo cache)")
	brokers := fs.String("m", "", "Kafka brokers, comma separated (empty disables events)")
	fs.StringVar(&config.KafkaTopic, "t", config.KafkaTopic, "Kafka topic")

	logoTimeout := fs.Int("o", int(config.LogoTimeout.Seconds()), "logo timeout (in seconds)")
	refreshInterval := fs.Int("i", int(config.LogoRefreshInterval.Minutes()), "logo refresh interval (in minutes)")
	fs.Int64Var(&config.MaxUploadBytes, "x", config.MaxUploadBytes, "max upload size (in bytes)")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		return err
	}

	// only flags actually given override durations and lists
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "m":
			config.KafkaBrokers = cleanList([]string{*brokers})
		case "o":
			config.LogoTimeout = time.Duration(*logoTimeout) * time.Second
		case "i":
			config.LogoRefreshInterval = time.Duration(*refreshInterval) * time.Minute
		}
	})
	return nil
}
