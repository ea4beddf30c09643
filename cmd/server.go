/*
Copyright © 2022 Edmond Cotterell

*/
package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ecotterell/carelink/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start a carelink server",
	Long: `The carelink server matches assistance requests with nearby available carers,
owns the exclusive pairing between two users, and relays events between them
via push notification.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(serverConfig(), isDevEnv)
	},
}

var serverConfigFile string

func init() {
	rootCmd.AddCommand(serverCmd)

	// TODO: Make this required, when not in dev mode
	serverCmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
}

func serverConfig() *viper.Viper {
	config := viper.New()

	if isDevEnv {
		serverConfigFile = devConfigFilePath()
	}

	config.SetConfigFile(serverConfigFile)
	config.BindEnv("google.applicationCredentials", "GOOGLE_APPLICATION_CREDENTIALS")
	config.BindEnv("twilio.accountSid", "TWILIO_ACCOUNT_SID")
	config.BindEnv("twilio.authToken", "TWILIO_AUTH_TOKEN")
	config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		log.Panic(fmt.Sprintf("error reading server config file: %v", err))
	}

	return config
}

func devConfigFilePath() string {
	configDir, err := os.Getwd()
	if err != nil {
		log.Panic(err)
	}

	return filepath.Join(configDir, "dev", "config", "server.yml")
}
