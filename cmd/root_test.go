// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/conductor/internal/config"
	"github.com/xkilldash9x/conductor/internal/observability"
)

// newPristineRootCmd builds a clean root command so tests do not leak state
// through the package-level rootCmd.
func newPristineRootCmd(t *testing.T) *cobra.Command {
	t.Helper()

	viper.Reset()
	viper.SetConfigName("a-config-file-that-does-not-exist")
	cfgFile = ""
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})

	cmd := &cobra.Command{
		Use:     "conductor",
		Short:   "Conductor is an LLM agent orchestration service.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			appCfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	return cmd
}

func TestRootCmd_VersionFlag(t *testing.T) {
	testRootCmd := newPristineRootCmd(t)
	var out bytes.Buffer
	testRootCmd.SetOut(&out)
	testRootCmd.SetErr(&out)
	testRootCmd.SetArgs([]string{"--version"})

	err := testRootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	testRootCmd := newPristineRootCmd(t)
	var out bytes.Buffer
	testRootCmd.SetOut(&out)
	testRootCmd.SetErr(&out)
	testRootCmd.SetArgs([]string{})

	err := testRootCmd.ExecuteContext(context.Background())

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Conductor is an LLM agent orchestration service.")
}

func TestInitializeConfig_DefaultsWhenNoConfigFile(t *testing.T) {
	viper.Reset()
	cfgFile = ""
	viper.SetConfigName("a-config-file-that-does-not-exist")

	require.NoError(t, initializeConfig())

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Agent.MaxIterations)
	assert.Equal(t, ":8720", cfg.Server.ListenAddr)
}
