// ABOUTME: version command
// ABOUTME: Prints the product, version and protocol version
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/voicerec/recmeter/internal/version"
	"github.com/voicerec/recmeter/pkg/protocol"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (protocol v%d)\n", version.String(), protocol.ProtocolVersion)
		return nil
	},
}
