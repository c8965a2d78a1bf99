package main

import "os"

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
