// Package text renders the state document as a human-readable summary
// after a phase completes.
package text

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
)

type Config struct {
	NoColor bool
}

type Reporter struct {
	config Config
	writer io.Writer
	logger ports.Logger
}

func NewReporter(cfg Config, logger ports.Logger) (*Reporter, error) {
	if cfg.NoColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}

	return &Reporter{
		config: cfg,
		writer: os.Stdout,
		logger: logger,
	}, nil
}

func isTerminal(f *os.File) bool {
	stat, _ := f.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func (r *Reporter) Report(ctx context.Context, doc *domain.Document) error {
	header := color.New(color.Bold, color.FgCyan).SprintFunc()
	section := color.New(color.Bold).SprintFunc()
	value := color.New(color.FgGreen).SprintFunc()

	var sb strings.Builder
	sb.WriteString(header(fmt.Sprintf("Project %s (%s)", doc.Project, doc.Region)))
	sb.WriteString("\n")

	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	writeRow := func(label, v string) {
		if v == "" {
			return
		}
		fmt.Fprintf(w, "  %s\t%s\n", label, value(v))
	}

	fmt.Fprintf(w, "%s\n", section("Network"))
	writeRow("vpc", doc.Network.VpcID)
	writeRow("public subnets", strings.Join(doc.Network.PublicSubnetIDs, ", "))
	writeRow("private subnets", strings.Join(doc.Network.PrivateSubnetIDs, ", "))
	writeRow("internet gateway", doc.Network.InternetGatewayID)

	fmt.Fprintf(w, "%s\n", section("Firewall"))
	writeRow("edge group", doc.Firewall.EdgeGroupID)
	writeRow("compute group", doc.Firewall.ComputeGroupID)
	writeRow("data group", doc.Firewall.DataGroupID)

	fmt.Fprintf(w, "%s\n", section("Database"))
	writeRow("instance", doc.Database.InstanceID)
	writeRow("endpoint", doc.Database.Endpoint)

	fmt.Fprintf(w, "%s\n", section("Registry"))
	writeRow("repository", doc.Registry.URI)

	fmt.Fprintf(w, "%s\n", section("Cluster"))
	writeRow("cluster", doc.Cluster.ARN)

	fmt.Fprintf(w, "%s\n", section("Load balancer"))
	writeRow("dns name", doc.LoadBalancer.DNSName)
	writeRow("target group", doc.LoadBalancer.TargetGroupARN)

	if doc.Release.ImageURI != "" || doc.Release.ServiceARN != "" {
		fmt.Fprintf(w, "%s\n", section("Release"))
		writeRow("image", doc.Release.ImageURI)
		writeRow("task definition", doc.Release.TaskDefinitionARN)
		writeRow("service", doc.Release.ServiceARN)
		writeRow("log group", doc.Release.LogGroup)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if doc.LoadBalancer.DNSName != "" {
		sb.WriteString(fmt.Sprintf("\nApplication URL: %s\n", value("http://"+doc.LoadBalancer.DNSName)))
	}

	_, err := fmt.Fprint(r.writer, sb.String())
	return err
}
