// Command hostlookup iteratively resolves CNAME, A, AAAA and MX records
// for one or more domain names and prints them in host(1) style.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/linkdata/hostlookup"
)

type config struct {
	Timeout    time.Duration `yaml:"timeout"`
	DNSPort    uint16        `yaml:"dnsport"`
	QPS        float64       `yaml:"qps"`
	OrderRoots time.Duration `yaml:"orderroots"`
}

func loadConfig(path string) (cfg config, err error) {
	var body []byte
	if body, err = os.ReadFile(path); err == nil {
		err = yaml.Unmarshal(body, &cfg)
	}
	return
}

// dedupe drops repeated names, keeping first-seen order.
func dedupe(names []string) (out []string) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return
}

func main() {
	var verbose bool
	var timeout time.Duration
	var configPath string
	var orderRoots time.Duration

	cmd := &cobra.Command{
		Use:          "hostlookup name...",
		Short:        "Iteratively resolve CNAME, A, AAAA and MX records for domain names",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := hostlookup.New()
			r.Timeout = timeout
			if configPath != "" {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				if cfg.Timeout > 0 {
					r.Timeout = cfg.Timeout
				}
				if cfg.DNSPort > 0 {
					r.DNSPort = cfg.DNSPort
				}
				if cfg.QPS > 0 {
					r.Limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
				}
				if cfg.OrderRoots > 0 && orderRoots == 0 {
					orderRoots = cfg.OrderRoots
				}
			}
			if orderRoots > 0 {
				logrus.WithField("cutoff", orderRoots).Debug("ordering root servers by latency")
				r.OrderRoots(cmd.Context(), orderRoots)
			}
			client := hostlookup.NewClient(r)
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
				client.Trace = cmd.ErrOrStderr()
			}
			for _, name := range dedupe(args) {
				logrus.WithField("name", name).Debug("looking up")
				dr, err := client.LookupDomain(cmd.Context(), name)
				if err != nil {
					logrus.WithError(err).WithField("name", name).Error("lookup failed")
					continue
				}
				for _, line := range dr.Lines() {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log resolution progress to stderr")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "per-server query timeout")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	cmd.Flags().DurationVar(&orderRoots, "order-roots", 0, "sort root servers by connect latency, dropping those slower than this cutoff")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
