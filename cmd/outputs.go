package cmd

import (
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/lehigh-university-libraries/datagen/internal/client"
	"github.com/lehigh-university-libraries/datagen/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newOutputsCmd() *cobra.Command {
	var (
		server  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "List datasets generated on a server",
		Example: `  datagen outputs --server http://localhost:8000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(server,
				client.WithHTTPClient(&http.Client{Timeout: timeout}),
				client.WithLogger(log.Logger),
			)
			files, err := c.Outputs(cmd.Context())
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No datasets generated yet")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSIZE\tCREATED\tURL")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.Name, f.Size, f.CreatedAt.Format(time.DateTime), c.DownloadURL(f.Name))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&server, "server", config.DefaultServerURL, "Base URL of the datagen server")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "HTTP timeout")

	return cmd
}
