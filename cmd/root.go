package cmd

import (
	"context"
	"fmt"
	"net"
	u "net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rgrab/rgrab/internal"
	"github.com/rgrab/rgrab/utils"
)

var (
	output        string
	urlListFile   string
	numWorkers    int
	timeout       time.Duration
	maxRetries    int
	throttleKBps  int64
	parallelism   int
	userAgent     string
	proxyAddr     string
	proxyUsername string
	proxyPassword string
	freshOutput   bool
	debug         bool
)

var RgrabVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "rgrab",
	Short:   "rgrab is a resumable, rate-limited CLI downloader",
	Version: RgrabVersion,
	Args:    cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if len(args) == 0 && urlListFile == "" {
			utils.PrintError("No URL or URL list provided")
			os.Exit(1)
		}
		if urlListFile != "" && len(args) > 0 {
			utils.PrintError("Cannot specify url argument and --urllist together, choose one")
			os.Exit(1)
		}
		if userAgent == "randomize" {
			userAgent = utils.GetRandomUserAgent()
		}
		cfg := internal.DefaultConfig()
		cfg.Timeout = timeout
		cfg.MaxRetries = maxRetries
		cfg.ThrottleKBps = throttleKBps
		cfg.Parallelism = parallelism
		cfg.UserAgent = userAgent
		if proxyAddr != "" {
			host, port, err := net.SplitHostPort(proxyAddr)
			if err != nil {
				utils.PrintError("Invalid proxy address, expected host:port")
				os.Exit(1)
			}
			portNum, err := strconv.Atoi(port)
			if err != nil {
				utils.PrintError("Invalid proxy port")
				os.Exit(1)
			}
			cfg.ProxyHost = host
			cfg.ProxyPort = portNum
			cfg.ProxyUsername = proxyUsername
			cfg.ProxyPassword = proxyPassword
		}

		var entries []utils.DownloadEntry
		if len(args) > 0 {
			url := args[0]
			parsed, err := u.Parse(url)
			if err != nil || parsed.Host == "" {
				utils.PrintError("Invalid URL format")
				os.Exit(1)
			}
			outputPath := output
			if outputPath == "" {
				segments := strings.Split(parsed.Path, "/")
				outputPath = segments[len(segments)-1]
				if outputPath == "" {
					outputPath = "download"
				}
			}
			if freshOutput {
				if _, err := os.Stat(outputPath); err == nil {
					outputPath = utils.RenewOutputPath(outputPath)
				}
			}
			entries = []utils.DownloadEntry{{URL: url, OutputPath: outputPath}}
		} else {
			var err error
			entries, err = utils.ReadDownloadList(urlListFile)
			if err != nil {
				utils.PrintError("Failed to read URL list file")
				os.Exit(1)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		results := internal.BatchDownload(ctx, entries, numWorkers, cfg)
		failed := 0
		for _, result := range results {
			if !result.OK {
				failed++
			}
		}
		if failed > 0 {
			fmt.Println()
			utils.PrintError(fmt.Sprintf("Encountered %d failed download(s)", failed))
			os.Exit(1)
		}
		utils.PrintSuccess("All downloads completed")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (inferred from URL if not provided)")
	rootCmd.Flags().StringVarP(&urlListFile, "urllist", "l", "", "Path to YAML file containing URLs and output paths")
	rootCmd.Flags().IntVarP(&numWorkers, "workers", "w", 1, "Number of links to download in parallel")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 2*time.Minute, "Connection timeout (eg. 5s, 10m)")
	rootCmd.Flags().IntVarP(&maxRetries, "retries", "r", 3, "Maximum download attempts per file")
	rootCmd.Flags().Int64Var(&throttleKBps, "throttle", 0, "Total bandwidth cap in KB/s, split across workers (0 disables)")
	rootCmd.Flags().IntVar(&parallelism, "parallelism", 0, "Degree used to partition the bandwidth cap (defaults to --workers)")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "a", utils.ToolUserAgent, "User agent ('randomize' picks a browser UA)")
	rootCmd.Flags().StringVarP(&proxyAddr, "proxy", "p", "", "HTTP/HTTPS proxy address (e.g., proxy.example.com:8080)")
	rootCmd.Flags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username")
	rootCmd.Flags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password")

	// flags without shorthand
	rootCmd.Flags().BoolVar(&freshOutput, "fresh", false, "Never resume; write to a renewed output path if the file exists")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
