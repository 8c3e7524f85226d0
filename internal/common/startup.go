package common

import (
	"os"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LoadConfig reads application configuration into config. The file is taken from
// userSpecifiedConfig when set, otherwise config.yaml under defaultPath.
// Durations may be given as strings such as "30s".
func LoadConfig(config interface{}, defaultPath string, userSpecifiedConfig string) {
	if userSpecifiedConfig != "" {
		viper.SetConfigFile(userSpecifiedConfig)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(defaultPath)
	}
	if err := viper.ReadInConfig(); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
	err := viper.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

func BindCommandlineArguments() {
	err := viper.BindPFlags(pflag.CommandLine)
	if err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}
