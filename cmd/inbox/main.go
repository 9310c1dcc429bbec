package main

import (
	"fmt"
	"os"

	"waba-admin/internal/cli"
	"waba-admin/internal/logger"
)

func main() {
	logger.InitLogger()
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
