package main

import (
	"flag"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

var (
	cfgFile string
	cfg     *viper.Viper
)

// NewRootCmd builds the command tree. Global settings resolve through
// viper: flags first, then TOKENIZERS_* environment variables, then an
// optional config file.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tokenizers",
		Short:         "Train, inspect and run text tokenizers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional config file (yaml|toml|json)")
	cmd.PersistentFlags().String("tokenizer", "", "path to a serialized tokenizer file")

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(newTrainCmd())
	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newInspectCmd())
	return cmd
}

func loadConfig(cmd *cobra.Command) error {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix("TOKENIZERS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}
	cfg = v
	return nil
}
