package cli

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := currentBuild()
		if versionJSON {
			return printJSON(cmd, info)
		}
		cmd.Printf("memex version %s\n", info.Version)
		if info.Revision != "" {
			cmd.Printf("  revision %s\n", info.Revision)
		}
		cmd.Printf("  %s %s/%s\n", info.GoVersion, info.OS, info.Arch)
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)
}

type buildInfo struct {
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// currentBuild reports the injected version plus the VCS revision the
// toolchain stamped into the binary, if any.
func currentBuild() buildInfo {
	info := buildInfo{
		Version:   version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 12 {
				info.Revision = s.Value[:12]
			}
		}
	}
	return info
}
