package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-identify",
	Short: "Identify known people in uploaded photos",
	Long: `face-identify detects faces in an image, identifies them against a trained
person group of the Face API and maps every recognized person to an external
profile ID.

Run "face-identify serve" for the HTTP service, or use the group, person and
face list commands to manage the recognizer's data.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional
	_ = godotenv.Load()
}
